package cli

import (
	"log/slog"
	"slices"

	"github.com/quotewire/quotewire/internal/canon"
)

// discardResponder swallows all engine output. Used when rebuilding state
// from a journal or snapshot, where replies and broadcasts were already
// delivered in the original run.
type discardResponder struct{}

func (discardResponder) Reply([]byte)                {}
func (discardResponder) Broadcast([]byte)            {}
func (discardResponder) ScheduleExpiry(int64, int64) {}

// loopResponder is the run command's egress: events are logged, and expiry
// requests are collected so the command loop can fire them once cluster
// time passes the deadline. It stands in for the cluster session fan-out
// and the replicated timer facility.
type loopResponder struct {
	log     *slog.Logger
	pending map[int64]int64 // rfqID -> earliest fire time
}

func newLoopResponder(log *slog.Logger) *loopResponder {
	return &loopResponder{log: log, pending: make(map[int64]int64)}
}

func (r *loopResponder) Reply(data []byte) {
	r.log.Info("reply", "type", eventType(data), "bytes", len(data))
}

func (r *loopResponder) Broadcast(data []byte) {
	r.log.Info("broadcast", "type", eventType(data), "bytes", len(data))
}

func (r *loopResponder) ScheduleExpiry(notBeforeMs, rfqID int64) {
	r.pending[rfqID] = notBeforeMs
}

// due returns the RFQ ids whose expiry deadline has passed, in ascending
// id order, removing them from the pending set. The order is part of the
// replicated state machine's input, so it must not depend on map
// iteration. The timer coordinator drops fires for deadlines that were
// since cleared or rescheduled, so over-delivery is harmless.
func (r *loopResponder) due(nowMs int64) []int64 {
	var ids []int64
	for id, at := range r.pending {
		if at <= nowMs {
			ids = append(ids, id)
			delete(r.pending, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// eventType extracts the "type" tag from encoded event bytes for logging.
func eventType(data []byte) string {
	v, err := canon.Unmarshal(data)
	if err != nil {
		return "unknown"
	}
	obj, ok := v.(canon.Obj)
	if !ok {
		return "unknown"
	}
	if t, ok := obj["type"].(canon.Str); ok {
		return string(t)
	}
	return "unknown"
}
