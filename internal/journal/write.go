package journal

import (
	"context"
	"fmt"

	"github.com/quotewire/quotewire/internal/canon"
	"github.com/quotewire/quotewire/internal/rfq"
)

// Append journals a command at the given cluster time. Returns the assigned
// seq and whether a new row was inserted.
//
// The row id is the content-addressed hash of the payload plus cluster
// timestamp; a redelivered command (identical payload, identical cluster
// time) hits ON CONFLICT(id) DO NOTHING and reports inserted=false with the
// existing seq.
func (j *Journal) Append(ctx context.Context, cmd rfq.Command, clusterTsMs int64) (seq int64, inserted bool, err error) {
	payload, err := rfq.EncodeCommand(cmd)
	if err != nil {
		return 0, false, fmt.Errorf("append command: %w", err)
	}

	id, err := canon.HashCommand(canon.Obj{
		"cluster_ts_ms": canon.Int(clusterTsMs),
		"payload":       canon.Str(string(payload)),
	})
	if err != nil {
		return 0, false, fmt.Errorf("append command: %w", err)
	}

	// Insert-or-select inside one transaction so the returned seq is
	// consistent under redelivery.
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("append command: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO commands (id, name, cluster_ts_ms, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, cmd.Name(), clusterTsMs, string(payload))
	if err != nil {
		return 0, false, fmt.Errorf("append command: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("append command: rows affected: %w", err)
	}

	if affected > 0 {
		seq, err = result.LastInsertId()
		if err != nil {
			return 0, false, fmt.Errorf("append command: last insert id: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return 0, false, fmt.Errorf("append command: commit: %w", err)
		}
		return seq, true, nil
	}

	// Duplicate delivery: look up the existing row's seq.
	if err := tx.QueryRowContext(ctx,
		`SELECT seq FROM commands WHERE id = ?`, id,
	).Scan(&seq); err != nil {
		return 0, false, fmt.Errorf("append command: select existing: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("append command: commit: %w", err)
	}
	return seq, false, nil
}
