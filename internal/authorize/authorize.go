// Package authorize implements the user decision that follows trust resolution.
package authorize

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mr-tron/base58"

	"github.com/congo-pay/payguard/internal/logging"
	"github.com/congo-pay/payguard/internal/payrequest"
)

// ErrNotPermitted is returned when an approval is attempted while the
// authorization gate is closed.
var ErrNotPermitted = errors.New("authorization not permitted in current verification state")

// ErrUnknownAction is returned for unrecognised actions.
var ErrUnknownAction = errors.New("unknown authorization action")

// Action is the decision taken for a request.
type Action string

const (
	// Approve authorizes and submits the transaction.
	Approve Action = "approve"
	// ApproveSubmitFailed authorizes the transaction but reports a submission failure.
	ApproveSubmitFailed Action = "approve_submit_failed"
	// Decline records that the user refused to authorize.
	Decline Action = "decline"
	// Reject records that the wallet found the transaction invalid.
	Reject Action = "reject"
)

// ParseAction validates s.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case Approve, ApproveSubmitFailed, Decline, Reject:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
}

// Gated reports whether a requires the authorization gate to be open.
func (a Action) Gated() bool {
	return a == Approve || a == ApproveSubmitFailed
}

// ResultCode is the outcome reported back to the requesting app.
type ResultCode int

const (
	ResultOK          ResultCode = -1
	ResultCanceled    ResultCode = 0
	ResultNotVerified ResultCode = 501
	ResultFailed      ResultCode = 502
	ResultDeclined    ResultCode = 503
)

func (c ResultCode) String() string {
	switch c {
	case ResultOK:
		return "OK"
	case ResultCanceled:
		return "CANCELED"
	case ResultNotVerified:
		return "NOT_VERIFIED"
	case ResultFailed:
		return "FAILED"
	case ResultDeclined:
		return "DECLINED"
	default:
		return fmt.Sprintf("ResultCode(%d)", int(c))
	}
}

// Outcome is the result of an authorization. Signature is the base58 encoded
// transaction id when one was produced.
type Outcome struct {
	Code      ResultCode
	Signature string
}

// Canceled is the outcome of a request abandoned before a decision.
func Canceled() Outcome {
	return Outcome{Code: ResultCanceled}
}

// Gate is the trust check an approval depends on.
type Gate interface {
	CanAuthorize() bool
}

// Submitter signs and submits a transaction, returning its signature.
type Submitter interface {
	Submit(ctx context.Context, req payrequest.Request) ([]byte, error)
}

// FakeSubmitter produces random 64 byte signatures without touching a network.
type FakeSubmitter struct{}

// Submit returns a random signature.
func (FakeSubmitter) Submit(context.Context, payrequest.Request) ([]byte, error) {
	sig := make([]byte, 64)
	if _, err := rand.Read(sig); err != nil {
		return nil, err
	}
	return sig, nil
}

// Service applies authorization actions.
type Service struct {
	submitter Submitter
	logger    *slog.Logger
}

// NewService builds an authorization service. A nil submitter uses FakeSubmitter.
func NewService(submitter Submitter, logger *slog.Logger) *Service {
	if submitter == nil {
		submitter = FakeSubmitter{}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{submitter: submitter, logger: logger}
}

// Authorize applies action to req. Approvals are refused with ErrNotPermitted
// unless gate.CanAuthorize reports true at the time of the call.
func (s *Service) Authorize(ctx context.Context, gate Gate, req payrequest.Request, action Action) (Outcome, error) {
	if action.Gated() && !gate.CanAuthorize() {
		return Outcome{}, ErrNotPermitted
	}

	switch action {
	case Approve, ApproveSubmitFailed:
		sig, err := s.submitter.Submit(ctx, req)
		if err != nil {
			s.logger.Warn("transaction submission failed", slog.String("kind", req.Kind.String()), slog.Any("error", err))
			return Outcome{Code: ResultFailed}, nil
		}
		code := ResultOK
		if action == ApproveSubmitFailed {
			code = ResultFailed
		}
		out := Outcome{Code: code, Signature: base58.Encode(sig)}
		s.logger.Info("transaction authorized",
			slog.String("kind", req.Kind.String()),
			slog.String("result", code.String()),
			slog.String("signature", out.Signature),
		)
		return out, nil
	case Decline:
		s.logger.Info("transaction declined", slog.String("kind", req.Kind.String()))
		return Outcome{Code: ResultDeclined}, nil
	case Reject:
		s.logger.Info("transaction rejected", slog.String("kind", req.Kind.String()))
		return Outcome{Code: ResultNotVerified}, nil
	default:
		return Outcome{}, fmt.Errorf("%w: %q", ErrUnknownAction, string(action))
	}
}
