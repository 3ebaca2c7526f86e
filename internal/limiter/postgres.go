package limiter

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PG is the shared counter store backed by PostgreSQL, giving correct limits
// across multiple server processes.
type PG struct {
	pool pgxQuerier
}

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// NewPG constructs a PostgreSQL-backed counter store.
func NewPG(pool *pgxpool.Pool) *PG {
	return &PG{pool: pool}
}

// NewPGWithQuerier constructs a PostgreSQL-backed counter store over an
// abstract querier (used in tests).
func NewPGWithQuerier(q pgxQuerier) *PG {
	return &PG{pool: q}
}

// Incr upserts the attempt counter for (origin, bucket) and returns the new
// count in one round trip.
func (s *PG) Incr(ctx context.Context, originHash []byte, bucket int64) (int64, error) {
	const q = `
INSERT INTO login_attempts (origin_hash, bucket, attempts, updated_at)
VALUES ($1, $2, 1, now())
ON CONFLICT (origin_hash, bucket)
DO UPDATE SET attempts = login_attempts.attempts + 1, updated_at = now()
RETURNING attempts`
	var n int64
	if err := s.pool.QueryRow(ctx, q, originHash, bucket).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Healthy pings the database with a short deadline.
func (s *PG) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return s.pool.Ping(ctx) == nil
}

// PruneBefore deletes counters from buckets older than the given bucket.
// Called periodically so the table does not grow without bound.
func (s *PG) PruneBefore(ctx context.Context, bucket int64) error {
	const q = `DELETE FROM login_attempts WHERE bucket < $1`
	_, err := s.pool.Exec(ctx, q, bucket)
	return err
}
