package journal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quotewire/quotewire/internal/engine"
)

// ReplayStats summarizes a journal replay.
type ReplayStats struct {
	Applied  int
	Rejected int
	Expired  int
	LastSeq  int64
}

// Replay re-applies journaled commands with seq greater than afterSeq to
// the engine, each at its recorded cluster timestamp. The engine should be
// in restore mode for crash recovery (suppressing replies and broadcasts);
// the verify tooling replays into a live fake instead.
//
// Expiry fires are not journaled. They are re-derived here: before and
// after each command applies, every deadline at or before that command's
// cluster timestamp fires, in ascending RFQ id order. This matches the
// live command loop, which drains due timers around each command at the
// same cluster time.
//
// Command rejections during replay are expected - the original run rejected
// them too - and are counted, not treated as failures. Any other error
// aborts the replay: it means the log and the engine disagree about
// something structural.
func Replay(ctx context.Context, j *Journal, e *engine.Engine, afterSeq int64) (ReplayStats, error) {
	entries, err := j.ReadFrom(ctx, afterSeq)
	if err != nil {
		return ReplayStats{}, fmt.Errorf("replay: %w", err)
	}

	stats := ReplayStats{LastSeq: afterSeq}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("replay: %w", err)
		}

		stats.Expired += fireDue(e, entry.ClusterTsMs)
		err := e.Apply(entry.Command, entry.ClusterTsMs)
		switch {
		case err == nil:
			stats.Applied++
		case engine.IsReject(err):
			stats.Rejected++
		default:
			return stats, fmt.Errorf("replay: seq %d (%s): %w",
				entry.Seq, entry.Command.Name(), err)
		}
		stats.Expired += fireDue(e, entry.ClusterTsMs)
		stats.LastSeq = entry.Seq
	}

	slog.Info("journal replay complete",
		"after_seq", afterSeq,
		"applied", stats.Applied,
		"rejected", stats.Rejected,
		"expired", stats.Expired,
		"last_seq", stats.LastSeq,
	)
	return stats, nil
}

// fireDue fires every tracked deadline at or before nowMs, lowest RFQ id
// first, and reports how many fired.
func fireDue(e *engine.Engine, nowMs int64) int {
	due := e.Timers().Due(nowMs)
	for _, rfqID := range due {
		e.OnTimerFire(rfqID, nowMs)
	}
	return len(due)
}
