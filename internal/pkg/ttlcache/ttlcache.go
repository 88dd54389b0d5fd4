// Package ttlcache is a small in-process read-through cache with a
// fixed time-to-live per entry. It backs the dataset and tile caches of
// the query layer; concurrent requests racing to populate the same key
// may each perform a redundant load, which is accepted (last write
// wins, loads are idempotent per backing file).
package ttlcache

import (
	"context"
	"sync"
	"time"
)

type entry[V any] struct {
	value    V
	loadedAt time.Time
}

// Cache maps string keys to values of type V with a shared TTL.
type Cache[V any] struct {
	ttl time.Duration

	mu      sync.RWMutex
	entries map[string]entry[V]

	now func() time.Time // overridable in tests
}

// New creates a cache whose entries expire after ttl.
func New[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		ttl:     ttl,
		entries: make(map[string]entry[V]),
		now:     time.Now,
	}
}

// GetOrLoad returns the cached value for key, or calls load to fetch
// and store it when the entry is absent or expired. A load error is
// returned as-is and nothing is cached.
func (c *Cache[V]) GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) (V, error)) (V, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && c.now().Sub(e.loadedAt) < c.ttl {
		return e.value, nil
	}

	value, err := load(ctx)
	if err != nil {
		var zero V
		return zero, err
	}

	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, loadedAt: c.now()}
	c.mu.Unlock()

	return value, nil
}

// Invalidate drops all entries, forcing reloads on next access.
func (c *Cache[V]) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]entry[V])
	c.mu.Unlock()
}

// Len returns the number of resident entries, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
