package rfq

// Side is the direction of the requested trade, from the requester's
// point of view.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether the side is one of the two known values.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// State is the lifecycle state of an RFQ.
//
// CREATED → QUOTED ⇄ COUNTERED → {ACCEPTED, REJECTED, CANCELED, EXPIRED}
//
// The four right-hand states are terminal. QUOTED and COUNTERED both mean
// "has an outstanding offer"; whose turn it is to respond follows from the
// parity of the quote sequence.
type State string

const (
	StateCreated   State = "CREATED"
	StateQuoted    State = "QUOTED"
	StateCountered State = "COUNTERED"
	StateAccepted  State = "ACCEPTED"
	StateRejected  State = "REJECTED"
	StateCanceled  State = "CANCELED"
	StateExpired   State = "EXPIRED"
)

// Terminal reports whether the state permits no further transitions.
func (s State) Terminal() bool {
	switch s {
	case StateAccepted, StateRejected, StateCanceled, StateExpired:
		return true
	}
	return false
}

// Negotiable reports whether the RFQ carries an outstanding offer that can
// be accepted, rejected, or countered.
func (s State) Negotiable() bool {
	return s == StateQuoted || s == StateCountered
}

// NilUserID is the sentinel for an unset user reference (e.g. the responder
// before the first quote arrives).
const NilUserID int64 = -1

// NilRfqID is the sentinel echoed on rejection replies where an RFQ id
// would otherwise appear.
const NilRfqID int64 = -1

// Instrument is a tradable instrument. Created once, mutated only by
// enable/disable, never deleted.
type Instrument struct {
	Cusip      string `json:"cusip"`
	SecurityID int64  `json:"security_id"`
	Enabled    bool   `json:"enabled"`
	MinSize    int64  `json:"min_size"`
}

// Rfq is one bilateral negotiation record. Terminal RFQs are retained for
// audit and idempotent replay; records are never physically deleted.
type Rfq struct {
	// ID is assigned sequentially starting at 1 and never reused.
	ID int64 `json:"id"`

	RequesterUserID int64 `json:"requester_user_id"`

	// ResponderUserID is NilUserID until the first quote.
	ResponderUserID int64 `json:"responder_user_id"`

	Cusip      string `json:"cusip"`
	SecurityID int64  `json:"security_id"`
	Side       Side   `json:"side"`
	Quantity   int64  `json:"quantity"`

	// Correlation is the requester's opaque token, echoed on every event
	// for this RFQ so the requesting client can match replies to requests.
	Correlation string `json:"correlation"`

	State State `json:"state"`

	// QuoteSequence identifies the current outstanding offer. Starts at 0,
	// incremented once per Quote or Counter. Accept/Reject/Counter must
	// reference it exactly.
	QuoteSequence int64 `json:"quote_sequence"`

	// Price is the latest quoted or countered price, in ticks.
	Price int64 `json:"price"`

	ExpireTimeMs int64 `json:"expire_time_ms"`
	CreatedAtMs  int64 `json:"created_at_ms"`
}

// LastOfferUserID returns the user who made the current outstanding offer.
// Odd quote sequences are responder offers (the responder always opens with
// sequence 1), even ones are requester counters.
//
// Returns NilUserID when no offer is outstanding.
func (r *Rfq) LastOfferUserID() int64 {
	if r.QuoteSequence == 0 {
		return NilUserID
	}
	if r.QuoteSequence%2 == 1 {
		return r.ResponderUserID
	}
	return r.RequesterUserID
}

// CounterpartyOf returns the other party of the negotiation, or NilUserID
// if the given user is not a party to this RFQ.
func (r *Rfq) CounterpartyOf(userID int64) int64 {
	switch userID {
	case r.RequesterUserID:
		return r.ResponderUserID
	case r.ResponderUserID:
		return r.RequesterUserID
	}
	return NilUserID
}

// IsParty reports whether the user is the requester or responder.
func (r *Rfq) IsParty(userID int64) bool {
	return userID == r.RequesterUserID || (r.ResponderUserID != NilUserID && userID == r.ResponderUserID)
}
