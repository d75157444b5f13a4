package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/quotewire/quotewire/internal/arena"
	"github.com/quotewire/quotewire/internal/rfq"
)

// applyCreateRfq validates the request against the instrument catalog and
// the store capacity, then opens a new negotiation.
//
// On any failure the reply carries rfq_id -1 and no broadcast is emitted.
func (e *Engine) applyCreateRfq(c rfq.CreateRfq, nowMs int64) error {
	if e.rfqs.Count() >= e.rfqs.Capacity() {
		return reject(CodeValidation, rfq.ReasonCapacity, rfq.NilRfqID)
	}
	if !c.Side.Valid() {
		return reject(CodeValidation, rfq.ReasonInvalidSide, rfq.NilRfqID)
	}

	inst, known := e.instruments.Get(c.Cusip)
	if !known {
		return reject(CodeValidation, rfq.ReasonUnknownCusip, rfq.NilRfqID)
	}
	if !inst.Enabled {
		return reject(CodeValidation, rfq.ReasonInstrumentNotEnabled, rfq.NilRfqID)
	}
	if c.Quantity < inst.MinSize {
		return reject(CodeValidation, rfq.ReasonQuantityBelowMin, rfq.NilRfqID)
	}

	id := e.nextRfqID
	offset, _, err := e.rfqs.AppendWithKey(id)
	if err != nil {
		// Count was checked above; a failure here is an engine fault.
		return fmt.Errorf("create rfq %d: %w", id, err)
	}
	e.nextRfqID++

	err = e.rfqs.Mutate(offset, func(r *rfq.Rfq) {
		r.ID = id
		r.RequesterUserID = c.RequesterUserID
		r.ResponderUserID = rfq.NilUserID
		r.Cusip = c.Cusip
		r.SecurityID = inst.SecurityID
		r.Side = c.Side
		r.Quantity = c.Quantity
		r.Correlation = c.Correlation
		r.State = rfq.StateCreated
		r.QuoteSequence = 0
		r.ExpireTimeMs = c.ExpireTimeMs
		r.CreatedAtMs = nowMs
	})
	if err != nil {
		return fmt.Errorf("create rfq %d: %w", id, err)
	}

	slog.Info("rfq created",
		"rfq_id", id,
		"cusip", c.Cusip,
		"side", c.Side,
		"quantity", c.Quantity,
		"requester", c.RequesterUserID,
		"expire_time_ms", c.ExpireTimeMs,
	)

	e.timers.Schedule(c.ExpireTimeMs, id)

	return e.broadcast(rfq.RfqCreated{
		RfqID:           id,
		RequesterUserID: c.RequesterUserID,
		Cusip:           c.Cusip,
		SecurityID:      inst.SecurityID,
		Side:            c.Side,
		Quantity:        c.Quantity,
		ExpireTimeMs:    c.ExpireTimeMs,
		Correlation:     c.Correlation,
	})
}

func (e *Engine) applyQuoteRfq(c rfq.QuoteRfq) error {
	offset, r, err := e.lookup(c.RfqID)
	if err != nil {
		return err
	}

	if r.State != rfq.StateCreated {
		return reject(CodeSequencing, rfq.ReasonIllegalTransition, c.RfqID)
	}

	err = e.rfqs.Mutate(offset, func(r *rfq.Rfq) {
		r.ResponderUserID = c.ResponderUserID
		r.Price = c.Price
		r.QuoteSequence = 1
		r.State = rfq.StateQuoted
	})
	if err != nil {
		return fmt.Errorf("quote rfq %d: %w", c.RfqID, err)
	}

	slog.Info("rfq quoted",
		"rfq_id", c.RfqID,
		"responder", c.ResponderUserID,
		"price", c.Price,
		"quote_sequence", r.QuoteSequence,
	)

	e.timers.Schedule(r.ExpireTimeMs, c.RfqID)

	return e.broadcast(rfq.RfqQuoted{
		RfqID:           r.ID,
		QuoteSequence:   r.QuoteSequence,
		Price:           r.Price,
		RequesterUserID: r.RequesterUserID,
		ResponderUserID: r.ResponderUserID,
		Correlation:     r.Correlation,
	})
}

func (e *Engine) applyCounterRfq(c rfq.CounterRfq) error {
	offset, r, err := e.lookup(c.RfqID)
	if err != nil {
		return err
	}

	if !r.State.Negotiable() {
		return reject(CodeSequencing, rfq.ReasonIllegalTransition, c.RfqID)
	}
	if !r.IsParty(c.UserID) {
		return reject(CodeAuthorization, rfq.ReasonCannotCounterNoRelation, c.RfqID)
	}
	if c.UserID == r.LastOfferUserID() {
		// The last offer is theirs; it is the counterparty's turn.
		return reject(CodeSequencing, rfq.ReasonCannotCounter, c.RfqID)
	}

	err = e.rfqs.Mutate(offset, func(r *rfq.Rfq) {
		r.QuoteSequence++
		r.Price = c.Price
		r.State = rfq.StateCountered
	})
	if err != nil {
		return fmt.Errorf("counter rfq %d: %w", c.RfqID, err)
	}

	slog.Info("rfq countered",
		"rfq_id", c.RfqID,
		"user", c.UserID,
		"price", c.Price,
		"quote_sequence", r.QuoteSequence,
	)

	e.timers.Schedule(r.ExpireTimeMs, c.RfqID)

	return e.broadcast(rfq.RfqQuoted{
		RfqID:           r.ID,
		QuoteSequence:   r.QuoteSequence,
		Price:           r.Price,
		RequesterUserID: r.RequesterUserID,
		ResponderUserID: r.ResponderUserID,
		Correlation:     r.Correlation,
	})
}

func (e *Engine) applyAcceptRfq(c rfq.AcceptRfq) error {
	offset, r, err := e.lookup(c.RfqID)
	if err != nil {
		return err
	}

	if !r.State.Negotiable() {
		return reject(CodeSequencing, rfq.ReasonIllegalTransition, c.RfqID)
	}
	if c.QuoteSequence != r.QuoteSequence {
		return reject(CodeSequencing, rfq.ReasonCannotAccept, c.RfqID)
	}
	if !r.IsParty(c.UserID) || c.UserID == r.LastOfferUserID() {
		// Only the counterparty to the outstanding offer may accept it.
		return reject(CodeAuthorization, rfq.ReasonCannotAcceptNoRelation, c.RfqID)
	}

	err = e.rfqs.Mutate(offset, func(r *rfq.Rfq) {
		r.State = rfq.StateAccepted
	})
	if err != nil {
		return fmt.Errorf("accept rfq %d: %w", c.RfqID, err)
	}

	slog.Info("rfq accepted",
		"rfq_id", c.RfqID,
		"user", c.UserID,
		"price", r.Price,
		"quote_sequence", r.QuoteSequence,
	)

	e.timers.Clear(c.RfqID)

	return e.broadcast(rfq.RfqAccepted{
		RfqID:            r.ID,
		QuoteSequence:    r.QuoteSequence,
		Price:            r.Price,
		AcceptedByUserID: c.UserID,
		RequesterUserID:  r.RequesterUserID,
		ResponderUserID:  r.ResponderUserID,
		Correlation:      r.Correlation,
	})
}

func (e *Engine) applyRejectRfq(c rfq.RejectRfq) error {
	offset, r, err := e.lookup(c.RfqID)
	if err != nil {
		return err
	}

	if !r.State.Negotiable() {
		return reject(CodeSequencing, rfq.ReasonIllegalTransition, c.RfqID)
	}
	if c.QuoteSequence != r.QuoteSequence {
		return reject(CodeSequencing, rfq.ReasonCannotReject, c.RfqID)
	}
	if !r.IsParty(c.UserID) || c.UserID == r.LastOfferUserID() {
		return reject(CodeAuthorization, rfq.ReasonCannotRejectNoRelation, c.RfqID)
	}

	err = e.rfqs.Mutate(offset, func(r *rfq.Rfq) {
		r.State = rfq.StateRejected
	})
	if err != nil {
		return fmt.Errorf("reject rfq %d: %w", c.RfqID, err)
	}

	slog.Info("rfq rejected",
		"rfq_id", c.RfqID,
		"user", c.UserID,
		"quote_sequence", r.QuoteSequence,
	)

	e.timers.Clear(c.RfqID)

	return e.broadcast(rfq.RfqRejected{
		RfqID:            r.ID,
		QuoteSequence:    r.QuoteSequence,
		Price:            r.Price,
		RejectedByUserID: c.UserID,
		RequesterUserID:  r.RequesterUserID,
		ResponderUserID:  r.ResponderUserID,
		Correlation:      r.Correlation,
	})
}

// applyCancelRfq withdraws an RFQ. Valid only from CREATED - once a quote
// exists, only Accept/Reject/Counter apply.
func (e *Engine) applyCancelRfq(c rfq.CancelRfq) error {
	offset, r, err := e.lookup(c.RfqID)
	if err != nil {
		return err
	}

	if r.State != rfq.StateCreated {
		return reject(CodeSequencing, rfq.ReasonIllegalTransition, c.RfqID)
	}
	if c.UserID != r.RequesterUserID {
		return reject(CodeAuthorization, rfq.ReasonCannotCancelNoRelation, c.RfqID)
	}

	err = e.rfqs.Mutate(offset, func(r *rfq.Rfq) {
		r.State = rfq.StateCanceled
	})
	if err != nil {
		return fmt.Errorf("cancel rfq %d: %w", c.RfqID, err)
	}

	slog.Info("rfq canceled", "rfq_id", c.RfqID, "user", c.UserID)

	e.timers.Clear(c.RfqID)

	return e.broadcast(rfq.RfqCanceled{
		RfqID:           r.ID,
		RequesterUserID: r.RequesterUserID,
		Correlation:     r.Correlation,
	})
}

// expire transitions an unresolved RFQ to EXPIRED. Already-terminal RFQs
// are a silent no-op: a timer may legitimately fire after the RFQ was
// resolved, and a second broadcast would diverge replicas from clients
// that already saw the settlement.
func (e *Engine) expire(rfqID, nowMs int64) {
	offset, r, err := e.lookup(rfqID)
	if err != nil {
		slog.Debug("expiry for unknown rfq, dropping", "rfq_id", rfqID)
		return
	}
	if r.State.Terminal() {
		return
	}

	if err := e.rfqs.Mutate(offset, func(r *rfq.Rfq) {
		r.State = rfq.StateExpired
	}); err != nil {
		slog.Error("expire rfq failed", "rfq_id", rfqID, "error", err)
		return
	}

	slog.Info("rfq expired", "rfq_id", rfqID, "now_ms", nowMs)

	if err := e.broadcast(rfq.RfqExpired{
		RfqID:           r.ID,
		RequesterUserID: r.RequesterUserID,
		ResponderUserID: r.ResponderUserID,
		Correlation:     r.Correlation,
	}); err != nil {
		slog.Error("broadcast expiry failed", "rfq_id", rfqID, "error", err)
	}
}

// lookup resolves an RFQ id to its record, mapping a miss to the
// "Unknown RFQ" reference rejection.
func (e *Engine) lookup(rfqID int64) (int, *rfq.Rfq, error) {
	offset, r, err := e.rfqs.GetByKey(rfqID)
	if err != nil {
		if errors.Is(err, arena.ErrNotFound) {
			return 0, nil, reject(CodeReference, rfq.ReasonUnknownRfq, rfqID)
		}
		return 0, nil, fmt.Errorf("lookup rfq %d: %w", rfqID, err)
	}
	return offset, r, nil
}
