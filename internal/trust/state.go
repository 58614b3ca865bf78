package trust

// State is the verification state of a Resolution.
type State int

const (
	// InProgress means an asynchronous verification task is outstanding.
	InProgress State = iota + 1
	// Failed means verification ran and did not establish trust.
	Failed
	// Verified means the origin is trusted.
	Verified
	// NotVerifiable means no check is possible; the request may proceed at low trust.
	NotVerifiable
)

func (s State) String() string {
	switch s {
	case InProgress:
		return "VERIFICATION_IN_PROGRESS"
	case Failed:
		return "VERIFICATION_FAILED"
	case Verified:
		return "VERIFIED"
	case NotVerifiable:
		return "NOT_VERIFIABLE"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == Failed || s == Verified || s == NotVerifiable
}

// CanAuthorize is the only gate downstream authorization may rely on.
func CanAuthorize(s State) bool {
	return s == Verified || s == NotVerifiable
}
