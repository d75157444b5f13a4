package rfq

// Reject reasons carried on CommandRejected replies. These strings are part
// of the replicated contract: clients and conformance scenarios match on
// them verbatim.
const (
	ReasonUnknownCusip         = "Unknown CUSIP"
	ReasonInstrumentNotEnabled = "Instrument not enabled"
	ReasonQuantityBelowMin     = "Quantity below minimum size"
	ReasonInvalidSide          = "Invalid side"
	ReasonCapacity             = "System at capacity"
	ReasonUnknownRfq           = "Unknown RFQ"
	ReasonIllegalTransition    = "Illegal transition"

	ReasonCannotAccept            = "Cannot accept RFQ"
	ReasonCannotAcceptNoRelation  = "Cannot accept RFQ, no relation to user"
	ReasonCannotReject            = "Cannot reject RFQ"
	ReasonCannotRejectNoRelation  = "Cannot reject RFQ, no relation to user"
	ReasonCannotCounter           = "Cannot counter RFQ"
	ReasonCannotCounterNoRelation = "Cannot counter RFQ, no relation to user"
	ReasonCannotCancelNoRelation  = "Cannot cancel RFQ, no relation to user"
)

// Event is the sealed interface over all outbound events. Events are
// serialized through canon.Marshal before reaching the Responder, so every
// replica emits bit-identical bytes.
type Event interface {
	// EventName is the wire type tag.
	EventName() string

	event() // sealed
}

// CommandRejected is the reply-only error event. RfqID is NilRfqID where
// no id applies (e.g. a failed CreateRfq).
type CommandRejected struct {
	Correlation string `json:"correlation"`
	RfqID       int64  `json:"rfq_id"`
	Reason      string `json:"reason"`
}

func (CommandRejected) EventName() string { return "CommandRejected" }
func (CommandRejected) event()            {}

// InstrumentAdded acknowledges an AddInstrument command. AlreadyExists is
// true when the cusip was present and the add no-opped.
type InstrumentAdded struct {
	Correlation   string `json:"correlation"`
	Cusip         string `json:"cusip"`
	SecurityID    int64  `json:"security_id"`
	Enabled       bool   `json:"enabled"`
	MinSize       int64  `json:"min_size"`
	AlreadyExists bool   `json:"already_exists"`
}

func (InstrumentAdded) EventName() string { return "InstrumentAdded" }
func (InstrumentAdded) event()            {}

// InstrumentEnabledSet acknowledges a SetInstrumentEnabled command.
type InstrumentEnabledSet struct {
	Correlation string `json:"correlation"`
	Cusip       string `json:"cusip"`
	Enabled     bool   `json:"enabled"`
}

func (InstrumentEnabledSet) EventName() string { return "InstrumentEnabledSet" }
func (InstrumentEnabledSet) event()            {}

// InstrumentList carries the catalog in insertion order. Reply-only.
type InstrumentList struct {
	Correlation string       `json:"correlation"`
	Instruments []Instrument `json:"instruments"`
}

func (InstrumentList) EventName() string { return "InstrumentList" }
func (InstrumentList) event()            {}

// RfqCreated is broadcast when a new RFQ opens.
type RfqCreated struct {
	RfqID           int64  `json:"rfq_id"`
	RequesterUserID int64  `json:"requester_user_id"`
	Cusip           string `json:"cusip"`
	SecurityID      int64  `json:"security_id"`
	Side            Side   `json:"side"`
	Quantity        int64  `json:"quantity"`
	ExpireTimeMs    int64  `json:"expire_time_ms"`
	Correlation     string `json:"correlation"`
}

func (RfqCreated) EventName() string { return "RfqCreated" }
func (RfqCreated) event()            {}

// RfqQuoted is broadcast for the opening quote and for every counter.
// QuoteSequence identifies the new outstanding offer.
type RfqQuoted struct {
	RfqID           int64  `json:"rfq_id"`
	QuoteSequence   int64  `json:"quote_sequence"`
	Price           int64  `json:"price"`
	RequesterUserID int64  `json:"requester_user_id"`
	ResponderUserID int64  `json:"responder_user_id"`
	Correlation     string `json:"correlation"`
}

func (RfqQuoted) EventName() string { return "RfqQuoted" }
func (RfqQuoted) event()            {}

// RfqAccepted is broadcast when an outstanding offer is accepted.
type RfqAccepted struct {
	RfqID            int64  `json:"rfq_id"`
	QuoteSequence    int64  `json:"quote_sequence"`
	Price            int64  `json:"price"`
	AcceptedByUserID int64  `json:"accepted_by_user_id"`
	RequesterUserID  int64  `json:"requester_user_id"`
	ResponderUserID  int64  `json:"responder_user_id"`
	Correlation      string `json:"correlation"`
}

func (RfqAccepted) EventName() string { return "RfqAccepted" }
func (RfqAccepted) event()            {}

// RfqRejected is broadcast when an outstanding offer is rejected.
type RfqRejected struct {
	RfqID            int64  `json:"rfq_id"`
	QuoteSequence    int64  `json:"quote_sequence"`
	Price            int64  `json:"price"`
	RejectedByUserID int64  `json:"rejected_by_user_id"`
	RequesterUserID  int64  `json:"requester_user_id"`
	ResponderUserID  int64  `json:"responder_user_id"`
	Correlation      string `json:"correlation"`
}

func (RfqRejected) EventName() string { return "RfqRejected" }
func (RfqRejected) event()            {}

// RfqCanceled is broadcast when the requester withdraws before any quote.
type RfqCanceled struct {
	RfqID           int64  `json:"rfq_id"`
	RequesterUserID int64  `json:"requester_user_id"`
	Correlation     string `json:"correlation"`
}

func (RfqCanceled) EventName() string { return "RfqCanceled" }
func (RfqCanceled) event()            {}

// RfqExpired is broadcast when the deadline passes on an unresolved RFQ.
type RfqExpired struct {
	RfqID           int64  `json:"rfq_id"`
	RequesterUserID int64  `json:"requester_user_id"`
	ResponderUserID int64  `json:"responder_user_id"`
	Correlation     string `json:"correlation"`
}

func (RfqExpired) EventName() string { return "RfqExpired" }
func (RfqExpired) event()            {}
