package authorize

import (
	"context"
	"errors"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/payguard/internal/payrequest"
)

type gate bool

func (g gate) CanAuthorize() bool { return bool(g) }

type failingSubmitter struct{}

func (failingSubmitter) Submit(context.Context, payrequest.Request) ([]byte, error) {
	return nil, errors.New("rpc unavailable")
}

var request = payrequest.Request{Kind: payrequest.TransactionRequest, Link: "https://example.com/pay"}

func TestParseAction(t *testing.T) {
	for _, s := range []string{"approve", "approve_submit_failed", "decline", "reject"} {
		a, err := ParseAction(s)
		require.NoError(t, err)
		assert.Equal(t, Action(s), a)
	}
	_, err := ParseAction("APPROVE")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestAuthorizeApprove(t *testing.T) {
	svc := NewService(nil, nil)

	out, err := svc.Authorize(context.Background(), gate(true), request, Approve)
	require.NoError(t, err)
	assert.Equal(t, ResultOK, out.Code)

	sig, err := base58.Decode(out.Signature)
	require.NoError(t, err)
	assert.Len(t, sig, 64)

	again, err := svc.Authorize(context.Background(), gate(true), request, Approve)
	require.NoError(t, err)
	assert.NotEqual(t, out.Signature, again.Signature)
}

func TestAuthorizeApproveSubmitFailed(t *testing.T) {
	out, err := NewService(nil, nil).Authorize(context.Background(), gate(true), request, ApproveSubmitFailed)
	require.NoError(t, err)
	assert.Equal(t, ResultFailed, out.Code)
	assert.NotEmpty(t, out.Signature)
}

func TestAuthorizeGateClosed(t *testing.T) {
	svc := NewService(nil, nil)
	for _, a := range []Action{Approve, ApproveSubmitFailed} {
		_, err := svc.Authorize(context.Background(), gate(false), request, a)
		assert.ErrorIs(t, err, ErrNotPermitted)
	}
}

func TestAuthorizeDeclineAndRejectIgnoreGate(t *testing.T) {
	svc := NewService(nil, nil)

	out, err := svc.Authorize(context.Background(), gate(false), request, Decline)
	require.NoError(t, err)
	assert.Equal(t, Outcome{Code: ResultDeclined}, out)

	out, err = svc.Authorize(context.Background(), gate(false), request, Reject)
	require.NoError(t, err)
	assert.Equal(t, Outcome{Code: ResultNotVerified}, out)
}

func TestAuthorizeSubmitterError(t *testing.T) {
	out, err := NewService(failingSubmitter{}, nil).Authorize(context.Background(), gate(true), request, Approve)
	require.NoError(t, err)
	assert.Equal(t, Outcome{Code: ResultFailed}, out)
}

func TestAuthorizeUnknownAction(t *testing.T) {
	_, err := NewService(nil, nil).Authorize(context.Background(), gate(true), request, Action("maybe"))
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestResultCodes(t *testing.T) {
	assert.Equal(t, -1, int(ResultOK))
	assert.Equal(t, 0, int(ResultCanceled))
	assert.Equal(t, 501, int(ResultNotVerified))
	assert.Equal(t, 502, int(ResultFailed))
	assert.Equal(t, 503, int(ResultDeclined))
	assert.Equal(t, "DECLINED", ResultDeclined.String())
	assert.Equal(t, Outcome{Code: ResultCanceled}, Canceled())
}
