package postgres

import (
	"context"
	"fmt"

	"github.com/and161185/passkit-server/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// LogRepo implements LogRepository using PostgreSQL.
type LogRepo struct{ db *DB }

// NewLogRepo constructs a device log repository.
func NewLogRepo(db *DB) *LogRepo { return &LogRepo{db: db} }

// SaveLogs inserts all entries in one transaction; the bigserial key keeps submission order.
func (r *LogRepo) SaveLogs(ctx context.Context, entries []model.LogEntry) (err error) {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const ins = `INSERT INTO device_logs (entry_id, message) VALUES ($1,$2)`
	for i := range entries {
		if entries[i].ID == uuid.Nil {
			if entries[i].ID, err = uuid.NewV4(); err != nil {
				return err
			}
		}
		if _, err = tx.Exec(ctx, ins, entries[i].ID, entries[i].Message); err != nil {
			return fmt.Errorf("log[%d]: %w", i, err)
		}
	}
	return nil
}

// RecentLogs returns the newest entries in submission order.
func (r *LogRepo) RecentLogs(ctx context.Context, limit int) ([]model.LogEntry, error) {
	const q = `
SELECT entry_id, message, created_at FROM (
  SELECT id, entry_id, message, created_at FROM device_logs ORDER BY id DESC LIMIT $1
) t ORDER BY id ASC`
	rows, err := r.db.Pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.LogEntry
	for rows.Next() {
		var e model.LogEntry
		if err = rows.Scan(&e.ID, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
