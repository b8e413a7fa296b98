// Package valuation resolves best-effort USD prices and display symbols
// for assets. Lookups never fail: every layer has a fallback, because a
// notification with an imperfect price is still useful.
package valuation

import (
	"sync"
	"time"
)

// Cache is the injected get/set abstraction used by the resolvers. The
// default is an in-process TTL map; a shared external cache can be swapped
// in for multi-instance deployments.
type Cache[V any] interface {
	Get(key string) (V, bool)
	Set(key string, value V)
}

// TTLCache is a mutex-guarded map whose entries expire after a fixed TTL.
// Safe for concurrent use. The persisted fallback layer is the source of
// truth on miss, so instances never need to coordinate.
type TTLCache[V any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]ttlEntry[V]
}

type ttlEntry[V any] struct {
	value      V
	observedAt time.Time
}

// NewTTLCache creates a TTLCache with the given entry lifetime.
func NewTTLCache[V any](ttl time.Duration) *TTLCache[V] {
	return &TTLCache[V]{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]ttlEntry[V]),
	}
}

// Get returns the cached value if present and not expired.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.now().Sub(entry.observedAt) > c.ttl {
		var zero V
		return zero, false
	}
	return entry.value, true
}

// Set stores a value with the current timestamp.
func (c *TTLCache[V]) Set(key string, value V) {
	c.mu.Lock()
	c.entries[key] = ttlEntry[V]{value: value, observedAt: c.now()}
	c.mu.Unlock()
}
