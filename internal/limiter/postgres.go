package limiter

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// PG is a PostgreSQL-backed fixed-window limiter.
type PG struct {
	pool    pgxQuerier
	window  time.Duration
	maxHits int
	now     func() time.Time
}

type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPG constructs a limiter allowing maxHits requests per window per client.
func NewPG(q pgxQuerier, window time.Duration, maxHits int) *PG {
	return &PG{pool: q, window: window, maxHits: maxHits, now: time.Now}
}

// Allow counts the hit and checks it against the budget in one statement, so
// concurrent requests from one client cannot both slip under the limit.
func (l *PG) Allow(ctx context.Context, clientHash []byte) (bool, time.Duration, error) {
	const q = `
INSERT INTO log_limiter (client_hash, window_start, hits)
VALUES ($1, now(), 1)
ON CONFLICT (client_hash) DO UPDATE
SET
  window_start = CASE WHEN now() - log_limiter.window_start > $2::interval THEN now() ELSE log_limiter.window_start END,
  hits = CASE WHEN now() - log_limiter.window_start > $2::interval THEN 1 ELSE log_limiter.hits + 1 END
RETURNING hits, window_start`
	var (
		hits  int
		start time.Time
	)
	if err := l.pool.QueryRow(ctx, q, clientHash, l.window).Scan(&hits, &start); err != nil {
		return false, 0, err
	}
	if hits <= l.maxHits {
		return true, 0, nil
	}
	retry := start.Add(l.window).Sub(l.now())
	if retry < 0 {
		retry = 0
	}
	return false, retry, nil
}
