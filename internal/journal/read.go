package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/quotewire/quotewire/internal/rfq"
)

// Entry is one journaled command with its log position.
type Entry struct {
	Seq         int64
	ClusterTsMs int64
	Command     rfq.Command
}

// ReadAll returns every journaled command in seq order.
func (j *Journal) ReadAll(ctx context.Context) ([]Entry, error) {
	return j.ReadFrom(ctx, 0)
}

// ReadFrom returns journaled commands with seq strictly greater than
// afterSeq, in seq order. Used to resume replay past a snapshot point.
func (j *Journal) ReadFrom(ctx context.Context, afterSeq int64) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, cluster_ts_ms, payload
		FROM commands
		WHERE seq > ?
		ORDER BY seq ASC
	`, afterSeq)
	if err != nil {
		return nil, fmt.Errorf("read commands: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry   Entry
			payload string
		)
		if err := rows.Scan(&entry.Seq, &entry.ClusterTsMs, &payload); err != nil {
			return nil, fmt.Errorf("read commands: scan: %w", err)
		}
		cmd, err := rfq.DecodeCommand([]byte(payload))
		if err != nil {
			return nil, fmt.Errorf("read commands: seq %d: %w", entry.Seq, err)
		}
		entry.Command = cmd
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read commands: %w", err)
	}

	return entries, nil
}

// LastSeq returns the highest assigned seq, or 0 on an empty journal.
func (j *Journal) LastSeq(ctx context.Context) (int64, error) {
	// MAX over an empty table yields NULL.
	var seq sql.NullInt64
	if err := j.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM commands`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}

// LastClusterTs returns the cluster timestamp of the newest journaled
// command, or 0 on an empty journal. This is the cluster time the journal
// head represents; snapshot restores that should line up with a full
// replay load at this time.
func (j *Journal) LastClusterTs(ctx context.Context) (int64, error) {
	var ts sql.NullInt64
	if err := j.db.QueryRowContext(ctx,
		`SELECT cluster_ts_ms FROM commands ORDER BY seq DESC LIMIT 1`,
	).Scan(&ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("last cluster ts: %w", err)
	}
	if !ts.Valid {
		return 0, nil
	}
	return ts.Int64, nil
}

// Count returns the number of journaled commands.
func (j *Journal) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM commands`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count commands: %w", err)
	}
	return n, nil
}
