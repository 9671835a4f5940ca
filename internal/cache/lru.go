package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LRUCache is a size-bounded cache whose entries expire after a fixed TTL.
// It is safe for concurrent use.
type LRUCache[T any] struct {
	lru *expirable.LRU[string, T]
	counters
}

var _ Cache[int] = (*LRUCache[int])(nil)

// NewLRUCache creates a new LRU cache with TTL
func NewLRUCache[T any](maxSize int, ttl time.Duration) *LRUCache[T] {
	if maxSize < 1 {
		maxSize = 1
	}
	c := &LRUCache[T]{}
	c.lru = expirable.NewLRU[string, T](maxSize, func(string, T) {
		c.evictions.Add(1)
	}, ttl)
	return c
}

// Get retrieves a value from the cache
func (c *LRUCache[T]) Get(key string) (T, bool) {
	v, ok := c.lru.Get(key)
	c.record(ok)
	return v, ok
}

// Set stores a value in the cache
func (c *LRUCache[T]) Set(key string, data T) {
	c.lru.Add(key, data)
}

// GetOrCompute returns the cached value for key, computing and storing it on
// a miss. Concurrent misses may compute the value more than once; the last
// write wins, which is harmless for values derived from immutable data.
func (c *LRUCache[T]) GetOrCompute(key string, compute func() T) (T, bool) {
	if v, ok := c.Get(key); ok {
		return v, true
	}
	v := compute()
	c.Set(key, v)
	return v, false
}

// Delete removes a key from the cache
func (c *LRUCache[T]) Delete(key string) {
	c.lru.Remove(key)
}

// Purge drops every entry.
func (c *LRUCache[T]) Purge() {
	c.lru.Purge()
}

// Size returns the current number of items in the cache
func (c *LRUCache[T]) Size() int {
	return c.lru.Len()
}

func (c *LRUCache[T]) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Size:      c.lru.Len(),
	}
}
