package engine

import (
	"fmt"
	"log/slog"

	"github.com/quotewire/quotewire/internal/rfq"
)

// BeginRestore enters restore mode: snapshotted records are re-applied
// through the normal construction paths, but client-facing replies and
// broadcasts are suppressed.
func (e *Engine) BeginRestore() {
	e.restoring = true
}

// EndRestore leaves restore mode.
func (e *Engine) EndRestore() {
	e.restoring = false
}

// RestoreInstrument re-applies a snapshotted instrument through the same
// construction path used by AddInstrument.
func (e *Engine) RestoreInstrument(inst rfq.Instrument) error {
	exists, err := e.instruments.Add(inst.Cusip, inst.SecurityID, inst.Enabled, inst.MinSize)
	if err != nil {
		return fmt.Errorf("restore instrument %s: %w", inst.Cusip, err)
	}
	if exists {
		// A snapshot carries each instrument exactly once; a duplicate
		// means the stream is malformed.
		return fmt.Errorf("restore instrument %s: duplicate record", inst.Cusip)
	}
	return nil
}

// RestoreRfq re-applies a snapshotted RFQ record and re-establishes its
// expiry timer. Outstanding deadlines still in the future (relative to the
// restored cluster time) are re-scheduled; past-due RFQs are expired
// immediately rather than silently dropped.
func (e *Engine) RestoreRfq(rec rfq.Rfq, nowMs int64) error {
	offset, _, err := e.rfqs.AppendWithKey(rec.ID)
	if err != nil {
		return fmt.Errorf("restore rfq %d: %w", rec.ID, err)
	}

	if err := e.rfqs.Mutate(offset, func(r *rfq.Rfq) {
		*r = rec
	}); err != nil {
		return fmt.Errorf("restore rfq %d: %w", rec.ID, err)
	}

	// The id generator resumes past the highest restored id.
	if rec.ID >= e.nextRfqID {
		e.nextRfqID = rec.ID + 1
	}

	if rec.State.Terminal() {
		return nil
	}

	if rec.ExpireTimeMs <= nowMs {
		slog.Info("restored rfq already past deadline, expiring",
			"rfq_id", rec.ID,
			"expire_time_ms", rec.ExpireTimeMs,
			"now_ms", nowMs,
		)
		e.expire(rec.ID, nowMs)
		return nil
	}

	e.timers.Schedule(rec.ExpireTimeMs, rec.ID)
	return nil
}
