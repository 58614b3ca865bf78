package entrypoint

import "strings"

// Entrypoint identifies the activation channel a payment request arrived through.
type Entrypoint int

const (
	URI Entrypoint = iota
	NFC
	Internal
)

const (
	// HandlerNFC is the activation component that only the system NFC dispatcher can reach.
	HandlerNFC = ".SolanaPayActivityViaNFC"
	// HandlerInternal is the activation component used for same-process calls.
	HandlerInternal = ".SolanaPayActivityViaInternal"
)

// Classify maps the handler label of an activation to its Entrypoint.
// Unknown and empty labels are treated as plain URI activations.
func Classify(hint string) Entrypoint {
	switch hint {
	case HandlerNFC:
		return NFC
	case HandlerInternal:
		return Internal
	default:
		return URI
	}
}

func (e Entrypoint) String() string {
	switch e {
	case NFC:
		return "NFC"
	case Internal:
		return "INTERNAL"
	default:
		return "URI"
	}
}

// Parse is the inverse of String. It is lenient about case and used by
// callers that persist or transmit the classification.
func Parse(s string) (Entrypoint, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "URI":
		return URI, true
	case "NFC":
		return NFC, true
	case "INTERNAL":
		return Internal, true
	}
	return URI, false
}
