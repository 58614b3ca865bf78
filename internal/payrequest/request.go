package payrequest

// Scheme is the URI scheme of every payment request reference.
const Scheme = "solana"

// Query parameter names understood by the parser.
const (
	ParamAmount    = "amount"
	ParamSPLToken  = "spl-token"
	ParamReference = "reference"
	ParamLabel     = "label"
	ParamMessage   = "message"
	ParamMemo      = "memo"
)

// Kind distinguishes the two shapes of payment request.
type Kind int

const (
	// Transfer is a self-contained request; it carries no remote origin metadata.
	Transfer Kind = iota
	// TransactionRequest points at a remote link that produces the transaction.
	TransactionRequest
)

func (k Kind) String() string {
	if k == TransactionRequest {
		return "transaction_request"
	}
	return "transfer"
}

// Request is a parsed payment request reference. It is immutable after Parse.
type Request struct {
	URI  string
	Kind Kind

	// Link is set for transaction requests only.
	Link string

	// Transfer fields.
	Recipient  string
	Amount     string
	SPLToken   string
	References []string
	Memo       string

	Label   string
	Message string
}

// IsTransactionRequest reports whether the request names a remote link.
func (r Request) IsTransactionRequest() bool {
	return r.Kind == TransactionRequest
}
