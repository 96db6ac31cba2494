package refresh

import (
	"sync"
	"time"

	"stock-dashboard/observability"
)

type cacheEntry[V any] struct {
	value     V
	fetchedAt time.Time
}

// Cache is a process-local keyed cache whose entries expire after a fixed
// TTL. A TTL of 0 disables caching.
type Cache[V any] struct {
	mu      sync.RWMutex
	name    string
	ttl     time.Duration
	entries map[string]cacheEntry[V]
	now     func() time.Time
}

// NewCache creates a Cache. name labels the hit and miss metrics.
func NewCache[V any](name string, ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		name:    name,
		ttl:     ttl,
		entries: make(map[string]cacheEntry[V]),
		now:     time.Now,
	}
}

// Get returns the cached value for key if it is still within TTL
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		observability.GetMetrics().RecordCacheHit(c.name)
		return entry.value, true
	}
	observability.GetMetrics().RecordCacheMiss(c.name)
	var zero V
	return zero, false
}

// Set stores value under key, stamped with the current time
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry[V]{value: value, fetchedAt: c.now()}
}

// Purge drops every expired entry
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, e := range c.entries {
		if now.Sub(e.fetchedAt) >= c.ttl {
			delete(c.entries, k)
		}
	}
}

// Clear drops every entry
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry[V])
}
