// Package limiter implements per-origin login rate limiting with a shared
// primary counter store and a best-effort in-process fallback.
package limiter

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/custodialabs/custodia/internal/errs"
)

// Store counts login attempts per (origin, time bucket).
type Store interface {
	// Incr adds one attempt for the hashed origin in the given bucket and
	// returns the new count.
	Incr(ctx context.Context, originHash []byte, bucket int64) (int64, error)
	// Healthy reports whether the store is currently usable.
	Healthy(ctx context.Context) bool
}

// HashOrigin returns a stable hash for a client origin so raw addresses are
// never persisted.
func HashOrigin(origin string) []byte {
	h := sha256.Sum256([]byte(origin))
	return h[:]
}

// Limiter is the two-tier brute-force guard: the shared store is preferred
// for multi-process correctness; the in-process fallback keeps protection
// best-effort when the shared store is down. Fallback counters reset on
// process restart; that degradation is accepted.
type Limiter struct {
	primary  Store
	fallback Store
	limit    int64
	window   time.Duration
	log      *zap.Logger
}

// New constructs a limiter. fallback must always be healthy (the in-memory
// store is); primary may be nil when no shared store is configured.
func New(primary, fallback Store, limit int, window time.Duration, log *zap.Logger) *Limiter {
	return &Limiter{
		primary:  primary,
		fallback: fallback,
		limit:    int64(limit),
		window:   window,
		log:      log,
	}
}

// Allow counts one login attempt for origin and rejects it with
// ErrRateLimited once the active window's count exceeds the limit. Every
// attempt is counted, regardless of credential correctness.
func (l *Limiter) Allow(ctx context.Context, origin string) error {
	if l.limit <= 0 || l.window <= 0 {
		return nil
	}
	hash := HashOrigin(origin)
	// Nanosecond arithmetic keeps sub-second windows valid.
	bucket := time.Now().UnixNano() / int64(l.window)

	store := l.pick(ctx)
	n, err := store.Incr(ctx, hash, bucket)
	if err != nil && store == l.primary {
		// Shared store failed mid-call; degrade to the fallback counter.
		l.log.Warn("rate limit store unavailable, using in-process fallback", zap.Error(err))
		n, err = l.fallback.Incr(ctx, hash, bucket)
	}
	if err != nil {
		return fmt.Errorf("rate limit counter: %w", err)
	}
	if n > l.limit {
		return errs.ErrRateLimited
	}
	return nil
}

// pick selects the store for this call by health check.
func (l *Limiter) pick(ctx context.Context) Store {
	if l.primary != nil && l.primary.Healthy(ctx) {
		return l.primary
	}
	return l.fallback
}
