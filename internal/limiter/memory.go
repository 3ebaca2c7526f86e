package limiter

import (
	"context"
	"sync"
)

// Memory is the in-process fallback counter store. It is always healthy and
// its counters vanish on restart; it exists so brute-force protection
// degrades instead of disappearing when the shared store is down.
type Memory struct {
	mu     sync.Mutex
	counts map[memKey]int64
}

type memKey struct {
	hash   string
	bucket int64
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{counts: make(map[memKey]int64)}
}

// Incr bumps the counter for (origin, bucket). Stale buckets for the same
// origin are dropped opportunistically.
func (m *Memory) Incr(_ context.Context, originHash []byte, bucket int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memKey{hash: string(originHash), bucket: bucket}
	for k := range m.counts {
		if k.hash == key.hash && k.bucket < bucket {
			delete(m.counts, k)
		}
	}
	m.counts[key]++
	return m.counts[key], nil
}

// Healthy always reports true for the in-process store.
func (m *Memory) Healthy(context.Context) bool { return true }
