// Package cache provides a bounded, TTL-based result cache shared by
// concurrent readers of the treasury aggregation pipeline.
package cache

import (
	"strings"
	"sync"
	"time"

	"brainark-core/internal/observability"
)

// Default cache parameters.
const (
	DefaultTTL      = 2 * time.Minute
	DefaultCapacity = 100
)

type entry[V any] struct {
	value      V
	insertedAt time.Time
	hits       int64
}

// Cache is a bounded TTL cache keyed by operation-specific strings.
// At capacity it evicts the entry with the lowest hit count, not the
// least recently used one: a frequently read snapshot survives a burst
// of one-off keys.
type Cache[V any] struct {
	mu       sync.Mutex
	data     map[string]*entry[V]
	ttl      time.Duration
	capacity int
	now      func() time.Time
}

// Option configures a Cache.
type Option[V any] func(*Cache[V])

// WithTTL sets the entry time-to-live.
func WithTTL[V any](ttl time.Duration) Option[V] {
	return func(c *Cache[V]) {
		c.ttl = ttl
	}
}

// WithCapacity sets the maximum number of entries.
func WithCapacity[V any](n int) Option[V] {
	return func(c *Cache[V]) {
		c.capacity = n
	}
}

// WithClock sets the time source. Used by tests.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *Cache[V]) {
		c.now = now
	}
}

// New creates a cache with the given options.
func New[V any](opts ...Option[V]) *Cache[V] {
	c := &Cache[V]{
		data:     make(map[string]*entry[V]),
		ttl:      DefaultTTL,
		capacity: DefaultCapacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached value for key. A stale entry is evicted and
// reported as a miss. A hit increments the entry's hit count.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, exists := c.data[key]
	if !exists {
		return zero, false
	}

	if c.now().Sub(e.insertedAt) > c.ttl {
		delete(c.data, key)
		return zero, false
	}

	e.hits++
	return e.value, true
}

// Set stores value under key. If the cache is full, the entry with the
// lowest hit count is evicted first (ties broken arbitrarily).
// Concurrent writers to the same key resolve last-write-wins.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.data[key]; !exists && len(c.data) >= c.capacity {
		c.evictColdest()
	}

	c.data[key] = &entry[V]{
		value:      value,
		insertedAt: c.now(),
		hits:       1,
	}
}

// evictColdest removes the entry with the lowest hit count.
// Caller must hold the lock.
func (c *Cache[V]) evictColdest() {
	var coldKey string
	first := true
	var minHits int64

	for key, e := range c.data {
		if first || e.hits < minHits {
			first = false
			minHits = e.hits
			coldKey = key
		}
	}

	if !first {
		delete(c.data, coldKey)
		observability.RecordCacheEviction()
	}
}

// Invalidate removes all keys containing pattern, or every key when
// pattern is empty.
func (c *Cache[V]) Invalidate(pattern string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pattern == "" {
		c.data = make(map[string]*entry[V])
		return
	}

	for key := range c.data {
		if strings.Contains(key, pattern) {
			delete(c.data, key)
		}
	}
}

// Len returns the number of live entries, counting stale ones not yet
// evicted by a Get.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.data)
}
