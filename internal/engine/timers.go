package engine

import (
	"log/slog"
	"slices"
)

// TimerCoordinator tracks one pending expiry deadline per RFQ and mediates
// between the engine and the external replicated timer facility.
//
// Timer identity is not snapshotted: after a restore the owning engine
// re-derives outstanding deadlines from restored RFQ state and re-issues
// Schedule calls.
type TimerCoordinator struct {
	responder Responder
	deadlines map[int64]int64 // rfqID -> absolute deadline (cluster ms)
}

// NewTimerCoordinator creates a coordinator that registers timers through
// the Responder's ScheduleExpiry capability.
func NewTimerCoordinator(responder Responder) *TimerCoordinator {
	return &TimerCoordinator{
		responder: responder,
		deadlines: make(map[int64]int64),
	}
}

// Schedule registers (or re-registers) the expiry deadline for an RFQ.
// Quote and Counter reschedule the same deadline; the latest call wins.
func (t *TimerCoordinator) Schedule(deadlineMs, rfqID int64) {
	t.deadlines[rfqID] = deadlineMs
	t.responder.ScheduleExpiry(deadlineMs, rfqID)
}

// Clear forgets the pending deadline for an RFQ. The external timer may
// still fire; OnFire treats an unknown handle as a stale duplicate.
func (t *TimerCoordinator) Clear(rfqID int64) {
	delete(t.deadlines, rfqID)
}

// Pending returns the tracked deadline for an RFQ, if any.
func (t *TimerCoordinator) Pending(rfqID int64) (int64, bool) {
	deadline, ok := t.deadlines[rfqID]
	return deadline, ok
}

// Due returns the RFQ ids whose tracked deadline is at or before nowMs,
// in ascending id order. Deadlines stay tracked until OnFire consumes
// them, so callers fire each returned id through OnFire.
func (t *TimerCoordinator) Due(nowMs int64) []int64 {
	var ids []int64
	for rfqID, deadline := range t.deadlines {
		if deadline <= nowMs {
			ids = append(ids, rfqID)
		}
	}
	slices.Sort(ids)
	return ids
}

// OnFire dispatches a timer callback to the expiry handler. A fire for an
// RFQ with no tracked deadline, or before the tracked deadline, is a stale
// or early duplicate and is dropped - timers may legitimately fire after
// the RFQ was otherwise resolved.
func (t *TimerCoordinator) OnFire(rfqID, nowMs int64, expire func(rfqID, nowMs int64)) {
	deadline, ok := t.deadlines[rfqID]
	if !ok {
		slog.Debug("timer fire for untracked rfq, dropping", "rfq_id", rfqID)
		return
	}
	if nowMs < deadline {
		// A reschedule moved the deadline after this timer was registered.
		slog.Debug("early timer fire, dropping",
			"rfq_id", rfqID,
			"deadline_ms", deadline,
			"now_ms", nowMs,
		)
		return
	}

	delete(t.deadlines, rfqID)
	expire(rfqID, nowMs)
}
