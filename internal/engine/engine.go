package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/quotewire/quotewire/internal/arena"
	"github.com/quotewire/quotewire/internal/canon"
	"github.com/quotewire/quotewire/internal/instrument"
	"github.com/quotewire/quotewire/internal/rfq"
)

// Default store capacities. The arena is sized once at construction; hitting
// the limit is a normal, typed rejection, not a fault.
const (
	DefaultInstrumentCapacity = 256
	DefaultRfqCapacity        = 1024
)

// Engine is the single-writer RFQ negotiation state machine.
//
// INVARIANTS:
//   - RFQ ids are assigned sequentially starting at 1 and never reused
//   - All mutations happen inside Apply/OnTimerFire, one command at a time
//   - Terminal RFQs are retained for audit and idempotent replay
type Engine struct {
	instruments *instrument.Registry
	rfqs        *arena.Store[int64, rfq.Rfq]
	timers      *TimerCoordinator
	responder   Responder

	nextRfqID int64

	// restoring suppresses client-facing replies and broadcasts while the
	// snapshot codec re-applies records through the normal paths.
	restoring bool
}

// Option configures engine construction.
type Option func(*config)

type config struct {
	instrumentCapacity int
	rfqCapacity        int
}

// WithInstrumentCapacity sets the instrument catalog capacity.
func WithInstrumentCapacity(n int) Option {
	return func(c *config) { c.instrumentCapacity = n }
}

// WithRfqCapacity sets the RFQ store capacity.
func WithRfqCapacity(n int) Option {
	return func(c *config) { c.rfqCapacity = n }
}

// indexState is the secondary-index name for the RFQ state field.
const indexState = "state"

// New creates an engine with the given Responder. Capacities are fixed at
// construction; see WithInstrumentCapacity and WithRfqCapacity.
func New(responder Responder, opts ...Option) *Engine {
	cfg := &config{
		instrumentCapacity: DefaultInstrumentCapacity,
		rfqCapacity:        DefaultRfqCapacity,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	rfqs := arena.New[int64, rfq.Rfq](cfg.rfqCapacity, encodeRfq)
	// AddIndex cannot fail on an empty store.
	_ = rfqs.AddIndex(indexState, func(r *rfq.Rfq) string { return string(r.State) })

	return &Engine{
		instruments: instrument.NewRegistry(cfg.instrumentCapacity),
		rfqs:        rfqs,
		timers:      NewTimerCoordinator(responder),
		responder:   responder,
		nextRfqID:   1,
	}
}

// Apply processes one inbound command at the given cluster time. Rejections
// are delivered as reply events and reported as *RejectError; a non-reject
// error indicates an internal fault (an encoding bug, not a client mistake).
func (e *Engine) Apply(cmd rfq.Command, nowMs int64) error {
	var err error
	switch c := cmd.(type) {
	case rfq.AddInstrument:
		err = e.applyAddInstrument(c)
	case rfq.SetInstrumentEnabled:
		err = e.applySetInstrumentEnabled(c)
	case rfq.ListInstruments:
		err = e.applyListInstruments(c)
	case rfq.CreateRfq:
		err = e.applyCreateRfq(c, nowMs)
	case rfq.CancelRfq:
		err = e.applyCancelRfq(c)
	case rfq.QuoteRfq:
		err = e.applyQuoteRfq(c)
	case rfq.CounterRfq:
		err = e.applyCounterRfq(c)
	case rfq.AcceptRfq:
		err = e.applyAcceptRfq(c)
	case rfq.RejectRfq:
		err = e.applyRejectRfq(c)
	default:
		return fmt.Errorf("unknown command type: %T", cmd)
	}

	var re *RejectError
	if errors.As(err, &re) {
		slog.Info("command rejected",
			"command", cmd.Name(),
			"correlation", cmd.CorrelationID(),
			"code", re.Code,
			"reason", re.Reason,
			"rfq_id", re.RfqID,
		)
		if replyErr := e.reply(rfq.CommandRejected{
			Correlation: cmd.CorrelationID(),
			RfqID:       re.RfqID,
			Reason:      re.Reason,
		}); replyErr != nil {
			return replyErr
		}
		return err
	}

	return err
}

// OnTimerFire is the entry point for expiry callbacks from the replicated
// timer facility. Never invoked directly by clients.
func (e *Engine) OnTimerFire(rfqID, nowMs int64) {
	e.timers.OnFire(rfqID, nowMs, e.expire)
}

// Instruments exposes the catalog for the snapshot codec and read paths.
func (e *Engine) Instruments() *instrument.Registry {
	return e.instruments
}

// Rfqs exposes the RFQ store for the snapshot codec and read paths.
func (e *Engine) Rfqs() *arena.Store[int64, rfq.Rfq] {
	return e.rfqs
}

// Timers exposes the timer coordinator, used by the snapshot codec to
// re-establish deadlines after a restore.
func (e *Engine) Timers() *TimerCoordinator {
	return e.timers
}

// Checksum returns the CRC-32 of the RFQ store's canonical byte image.
// Together with the instrument registry checksum it is the cross-replica
// state comparison handle.
func (e *Engine) Checksum() uint32 {
	return e.rfqs.Checksum()
}

// NextRfqID returns the id the next successful CreateRfq will be assigned.
func (e *Engine) NextRfqID() int64 {
	return e.nextRfqID
}

func (e *Engine) applyAddInstrument(c rfq.AddInstrument) error {
	exists, err := e.instruments.Add(c.Cusip, c.SecurityID, c.Enabled, c.MinSize)
	if err != nil {
		if errors.Is(err, arena.ErrAtCapacity) {
			return reject(CodeValidation, rfq.ReasonCapacity, rfq.NilRfqID)
		}
		return fmt.Errorf("add instrument %s: %w", c.Cusip, err)
	}

	if !exists {
		slog.Info("instrument added",
			"cusip", c.Cusip,
			"security_id", c.SecurityID,
			"enabled", c.Enabled,
			"min_size", c.MinSize,
		)
	}

	inst, _ := e.instruments.Get(c.Cusip)
	return e.reply(rfq.InstrumentAdded{
		Correlation:   c.Correlation,
		Cusip:         inst.Cusip,
		SecurityID:    inst.SecurityID,
		Enabled:       inst.Enabled,
		MinSize:       inst.MinSize,
		AlreadyExists: exists,
	})
}

func (e *Engine) applySetInstrumentEnabled(c rfq.SetInstrumentEnabled) error {
	if err := e.instruments.SetEnabled(c.Cusip, c.Enabled); err != nil {
		return reject(CodeValidation, rfq.ReasonUnknownCusip, rfq.NilRfqID)
	}

	slog.Info("instrument enabled flag set", "cusip", c.Cusip, "enabled", c.Enabled)

	return e.reply(rfq.InstrumentEnabledSet{
		Correlation: c.Correlation,
		Cusip:       c.Cusip,
		Enabled:     c.Enabled,
	})
}

func (e *Engine) applyListInstruments(c rfq.ListInstruments) error {
	return e.reply(rfq.InstrumentList{
		Correlation: c.Correlation,
		Instruments: e.instruments.List(),
	})
}

// reply encodes and delivers a reply-only event, suppressed during restore.
func (e *Engine) reply(ev rfq.Event) error {
	if e.restoring {
		return nil
	}
	data, err := rfq.EncodeEvent(ev)
	if err != nil {
		return fmt.Errorf("encode reply %s: %w", ev.EventName(), err)
	}
	e.responder.Reply(data)
	return nil
}

// broadcast encodes and delivers a broadcast event, suppressed during
// restore.
func (e *Engine) broadcast(ev rfq.Event) error {
	if e.restoring {
		return nil
	}
	data, err := rfq.EncodeEvent(ev)
	if err != nil {
		return fmt.Errorf("encode broadcast %s: %w", ev.EventName(), err)
	}
	e.responder.Broadcast(data)
	return nil
}

// encodeRfq is the deterministic record image used for checksums.
func encodeRfq(r *rfq.Rfq) []byte {
	data, err := canon.Marshal(canon.Obj{
		"id":                canon.Int(r.ID),
		"requester_user_id": canon.Int(r.RequesterUserID),
		"responder_user_id": canon.Int(r.ResponderUserID),
		"cusip":             canon.Str(r.Cusip),
		"security_id":       canon.Int(r.SecurityID),
		"side":              canon.Str(string(r.Side)),
		"quantity":          canon.Int(r.Quantity),
		"correlation":       canon.Str(r.Correlation),
		"state":             canon.Str(string(r.State)),
		"quote_sequence":    canon.Int(r.QuoteSequence),
		"price":             canon.Int(r.Price),
		"expire_time_ms":    canon.Int(r.ExpireTimeMs),
		"created_at_ms":     canon.Int(r.CreatedAtMs),
	})
	if err != nil {
		// RFQ fields are strings and ints; canonical marshaling of them
		// cannot fail.
		panic(err)
	}
	return data
}
