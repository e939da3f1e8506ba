package cache

import (
	"sync"
	"time"
)

// Cache is a keyed lookup with per-entry expiry
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V, ttl time.Duration)
	Delete(key K)
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache stores values in memory until their TTL lapses. A zero TTL never expires.
type TTLCache[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]entry[V]
	now   func() time.Time
}

// NewTTLCache creates an empty cache
func NewTTLCache[K comparable, V any]() *TTLCache[K, V] {
	return NewTTLCacheWithClock[K, V](time.Now)
}

// NewTTLCacheWithClock creates an empty cache that reads time from now
func NewTTLCacheWithClock[K comparable, V any](now func() time.Time) *TTLCache[K, V] {
	return &TTLCache[K, V]{items: make(map[K]entry[V]), now: now}
}

var _ Cache[string, int] = (*TTLCache[string, int])(nil)

// Get returns a live value; expired entries are evicted on read
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	var zero V
	if c == nil {
		return zero, false
	}
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return zero, false
	}
	if c.expired(e) {
		c.Delete(key)
		return zero, false
	}
	return e.value, true
}

func (c *TTLCache[K, V]) Set(key K, value V, ttl time.Duration) {
	if c == nil {
		return
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.items[key] = entry[V]{value: value, expiresAt: expiresAt}
	c.mu.Unlock()
}

func (c *TTLCache[K, V]) Delete(key K) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Purge drops every expired entry and returns how many were removed
func (c *TTLCache[K, V]) Purge() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, e := range c.items {
		if c.expired(e) {
			delete(c.items, key)
			removed++
		}
	}
	return removed
}

// Len counts stored entries, including expired ones not yet purged
func (c *TTLCache[K, V]) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *TTLCache[K, V]) expired(e entry[V]) bool {
	return !e.expiresAt.IsZero() && c.now().After(e.expiresAt)
}

// Noop never stores anything
type Noop[K comparable, V any] struct{}

func (Noop[K, V]) Get(K) (V, bool) {
	var zero V
	return zero, false
}

func (Noop[K, V]) Set(K, V, time.Duration) {}

func (Noop[K, V]) Delete(K) {}
