package payrequest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const recipient = "84npKJKZy8ixjdq8UChZULDUea2Twt8ThxjiqKd7QZ54"

func TestParseSimpleTransfer(t *testing.T) {
	raw := "solana:" + recipient + "?amount=100&memo=Test%20xfer"

	req, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, Transfer, req.Kind)
	assert.Equal(t, recipient, req.Recipient)
	assert.Equal(t, "100", req.Amount)
	assert.Equal(t, "Test xfer", req.Memo)
	assert.Equal(t, raw, req.URI)
	assert.False(t, req.IsTransactionRequest())
}

func TestParseComplexTransfer(t *testing.T) {
	raw := "solana:" + recipient +
		"?amount=0.100" +
		"&spl-token=EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v" +
		"&reference=GUdsgKBn9vQ9HyEmZHqJgVv3Ced1tSGNzfrFtMSyHSgm" +
		"&reference=C3xh5q61LtJatywjXwJ1Gh3yyUjEDmpNpDmEcxyCunPU" +
		"&label=%21%20%2A%20%27%20%28%20%29%20%3B%20%3A%20%40%20%26%20%3D%20%2B%20%24%20%2C%20%2F%20%3F%20%25%20%23%20%5B%20%5D" +
		"&message=message" +
		"&memo=Test%20xfer"

	req, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, Transfer, req.Kind)
	assert.Equal(t, "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", req.SPLToken)
	assert.Len(t, req.References, 2)
	assert.Equal(t, "! * ' ( ) ; : @ & = + $ , / ? % # [ ]", req.Label)
	assert.Equal(t, "message", req.Message)
}

func TestParseTransferWithoutQuery(t *testing.T) {
	req, err := Parse("solana:" + recipient)
	require.NoError(t, err)
	assert.Equal(t, Transfer, req.Kind)
	assert.Empty(t, req.Amount)
}

func TestParseRejectsInvalidTransfers(t *testing.T) {
	tests := map[string]string{
		"non-base58 recipient":  "solana:O4npKJKZy8ixjdq8UChZULDUea2Twt8ThxjiqKd7QZ54?amount=100",
		"amount without zero":   "solana:" + recipient + "?amount=.100",
		"non-numeric amount":    "solana:" + recipient + "?amount=1.0Z",
		"short spl token":       "solana:" + recipient + "?spl-token=ABCDEF",
		"long reference":        "solana:" + recipient + "?reference=AGUdsgKBn9vQ9HyEmZHqJgVv3Ced1tSGNzfrFtMSyHSgm",
		"amount twice":          "solana:" + recipient + "?amount=100?amount=100&memo=Test%20xfer",
		"spl token twice":       "solana:" + recipient + "?spl-token=EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v&spl-token=EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		"label twice":           "solana:" + recipient + "?label=label&label=label",
		"message twice":         "solana:" + recipient + "?message=message&message=message",
		"memo twice":            "solana:" + recipient + "?memo=a&memo=b",
		"wrong scheme":          "bitcoin:" + recipient,
		"hierarchical solana":   "solana://" + recipient,
		"empty":                 "",
		"http transaction link": "solana:http%3A%2F%2Fwww.test.com",
		"non-url link":          "solana:abc%3ATEST",
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRequest))
		})
	}
}

func TestParseTransactionRequest(t *testing.T) {
	req, err := Parse("solana:https%3A%2F%2Fwww.test.com")
	require.NoError(t, err)
	assert.Equal(t, TransactionRequest, req.Kind)
	assert.Equal(t, "https://www.test.com", req.Link)
	assert.True(t, req.IsTransactionRequest())
}

func TestParseTransactionRequestWithLinkQuery(t *testing.T) {
	raw := "solana:https%3A%2F%2Fwww.test.com%3Fqty%3D6%26reason%3Dtest?label=Shop"
	req, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, TransactionRequest, req.Kind)
	assert.Equal(t, "https://www.test.com?qty=6&reason=test", req.Link)
	assert.Equal(t, "Shop", req.Label)
}

func TestParseTransactionRequestLabelTwice(t *testing.T) {
	_, err := Parse("solana:https%3A%2F%2Fwww.test.com?label=a&label=b")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
