package rfq

// Command is the sealed interface over all inbound commands. The wire
// envelope is decoded by an external demultiplexer; by the time a command
// reaches the core it is a flat record of primitive fields plus the
// client-supplied correlation token.
type Command interface {
	// Name identifies the command for journaling and logging.
	Name() string

	// CorrelationID returns the client-supplied token echoed on replies.
	CorrelationID() string

	command() // sealed
}

// AddInstrument registers a tradable instrument. Re-adding an existing
// cusip is accepted as a no-op success.
type AddInstrument struct {
	Cusip       string `json:"cusip"`
	SecurityID  int64  `json:"security_id"`
	Enabled     bool   `json:"enabled"`
	MinSize     int64  `json:"min_size"`
	Correlation string `json:"correlation"`
}

func (AddInstrument) Name() string            { return "AddInstrument" }
func (c AddInstrument) CorrelationID() string { return c.Correlation }
func (AddInstrument) command()                {}

// SetInstrumentEnabled toggles an instrument's enabled flag.
type SetInstrumentEnabled struct {
	Cusip       string `json:"cusip"`
	Enabled     bool   `json:"enabled"`
	Correlation string `json:"correlation"`
}

func (SetInstrumentEnabled) Name() string            { return "SetInstrumentEnabled" }
func (c SetInstrumentEnabled) CorrelationID() string { return c.Correlation }
func (SetInstrumentEnabled) command()                {}

// ListInstruments requests the catalog in insertion order. Reply-only.
type ListInstruments struct {
	Correlation string `json:"correlation"`
}

func (ListInstruments) Name() string            { return "ListInstruments" }
func (c ListInstruments) CorrelationID() string { return c.Correlation }
func (ListInstruments) command()                {}

// CreateRfq opens a new negotiation. ExpireTimeMs is the absolute deadline
// (cluster time) after which the RFQ expires if unresolved.
type CreateRfq struct {
	Cusip           string `json:"cusip"`
	Side            Side   `json:"side"`
	Quantity        int64  `json:"quantity"`
	RequesterUserID int64  `json:"requester_user_id"`
	ExpireTimeMs    int64  `json:"expire_time_ms"`
	Correlation     string `json:"correlation"`
}

func (CreateRfq) Name() string            { return "CreateRfq" }
func (c CreateRfq) CorrelationID() string { return c.Correlation }
func (CreateRfq) command()                {}

// CancelRfq withdraws an RFQ. Valid only before the first quote, and only
// for the requester.
type CancelRfq struct {
	RfqID       int64  `json:"rfq_id"`
	UserID      int64  `json:"user_id"`
	Correlation string `json:"correlation"`
}

func (CancelRfq) Name() string            { return "CancelRfq" }
func (c CancelRfq) CorrelationID() string { return c.Correlation }
func (CancelRfq) command()                {}

// QuoteRfq is the responder's opening offer. Sets the responder and moves
// the quote sequence to 1.
type QuoteRfq struct {
	RfqID           int64  `json:"rfq_id"`
	ResponderUserID int64  `json:"responder_user_id"`
	Price           int64  `json:"price"`
	Correlation     string `json:"correlation"`
}

func (QuoteRfq) Name() string            { return "QuoteRfq" }
func (c QuoteRfq) CorrelationID() string { return c.Correlation }
func (QuoteRfq) command()                {}

// CounterRfq is a counter-offer by the party whose turn it is to respond.
type CounterRfq struct {
	RfqID       int64  `json:"rfq_id"`
	UserID      int64  `json:"user_id"`
	Price       int64  `json:"price"`
	Correlation string `json:"correlation"`
}

func (CounterRfq) Name() string            { return "CounterRfq" }
func (c CounterRfq) CorrelationID() string { return c.Correlation }
func (CounterRfq) command()                {}

// AcceptRfq accepts the outstanding offer. QuoteSequence must match the
// RFQ's current sequence exactly; a stale reference is rejected.
type AcceptRfq struct {
	RfqID         int64  `json:"rfq_id"`
	UserID        int64  `json:"user_id"`
	QuoteSequence int64  `json:"quote_sequence"`
	Correlation   string `json:"correlation"`
}

func (AcceptRfq) Name() string            { return "AcceptRfq" }
func (c AcceptRfq) CorrelationID() string { return c.Correlation }
func (AcceptRfq) command()                {}

// RejectRfq rejects the outstanding offer. Same sequencing rules as Accept.
type RejectRfq struct {
	RfqID         int64  `json:"rfq_id"`
	UserID        int64  `json:"user_id"`
	QuoteSequence int64  `json:"quote_sequence"`
	Correlation   string `json:"correlation"`
}

func (RejectRfq) Name() string            { return "RejectRfq" }
func (c RejectRfq) CorrelationID() string { return c.Correlation }
func (RejectRfq) command()                {}
