// Package cache provides thread-safe caching utilities with time-based expiration.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Stats counts cache activity.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
	MaxSize   int   `json:"max_size"`
}

type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// TTLCache is a thread-safe cache in which every entry expires ttl after it
// was last Set. When maxSize is positive the least recently used entry is
// evicted once the cache grows past it.
type TTLCache[K comparable, V any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	maxSize int
	entries map[K]*list.Element
	order   *list.List // front is most recently used
	stats   Stats

	now func() time.Time
}

// New creates an empty TTLCache. A non-positive maxSize leaves it unbounded.
func New[K comparable, V any](ttl time.Duration, maxSize int) *TTLCache[K, V] {
	if maxSize < 0 {
		maxSize = 0
	}
	return &TTLCache[K, V]{
		ttl:     ttl,
		maxSize: maxSize,
		entries: make(map[K]*list.Element),
		order:   list.New(),
		now:     time.Now,
	}
}

// Get retrieves a value from the cache.
// Returns zero value and ok=false if the key doesn't exist or has expired.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		var zero V
		return zero, false
	}

	e := el.Value.(*entry[K, V])
	if !c.now().Before(e.expiresAt) {
		c.remove(el)
		c.stats.Misses++
		var zero V
		return zero, false
	}

	c.order.MoveToFront(el)
	c.stats.Hits++
	return e.value, true
}

// Set stores a value and restarts its TTL.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(c.ttl)
	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry[K, V])
		e.value = value
		e.expiresAt = expiresAt
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&entry[K, V]{key: key, value: value, expiresAt: expiresAt})
	if c.maxSize > 0 && c.order.Len() > c.maxSize {
		c.remove(c.order.Back())
		c.stats.Evictions++
	}
}

// Delete removes key if present.
func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.remove(el)
	}
}

// Purge drops every expired entry and returns how many were dropped.
func (c *TTLCache[K, V]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if !now.Before(el.Value.(*entry[K, V]).expiresAt) {
			c.remove(el)
			n++
		}
		el = prev
	}
	return n
}

// Invalidate clears all cached data.
func (c *TTLCache[K, V]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[K]*list.Element)
	c.order.Init()
}

// Len returns the number of items currently in the cache.
// This does not check expiration - it returns the count even if expired.
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.order.Len()
}

// Stats returns a snapshot of the cache counters.
func (c *TTLCache[K, V]) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.stats
	s.Size = c.order.Len()
	s.MaxSize = c.maxSize
	return s
}

// remove MUST be called with the write lock held.
func (c *TTLCache[K, V]) remove(el *list.Element) {
	c.order.Remove(el)
	delete(c.entries, el.Value.(*entry[K, V]).key)
}
