// Package cache provides a bounded in-memory result cache with
// insertion-order (FIFO) eviction. Recency of access does not extend an
// entry's lifetime.
package cache

import "sync"

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 100

// Cache is a bounded key/value store. Safe for concurrent use.
type Cache[V any] struct {
	mu       sync.Mutex
	capacity int
	values   map[string]V
	order    []string
}

// New creates a cache holding at most capacity entries.
func New[V any](capacity int) *Cache[V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache[V]{
		capacity: capacity,
		values:   make(map[string]V, capacity),
	}
}

// Get returns the value stored under key, if any.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok
}

// Put stores value under key. If the key already exists its value is
// replaced without disturbing insertion order. Otherwise, when the cache
// is full, the earliest-inserted surviving entry is evicted first.
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.values[key]; ok {
		c.values[key] = value
		return
	}

	if len(c.values) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.values, oldest)
	}

	c.values[key] = value
	c.order = append(c.order, key)
}

// Len reports the number of entries currently stored.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.values)
}
