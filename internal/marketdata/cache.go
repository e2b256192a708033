package marketdata

import (
	"sync"
	"time"
)

type cacheEntry struct {
	response *UnifiedSeriesResponse
	storedAt time.Time
}

// ResponseCache is an in-memory, time-bounded response cache used by the
// adapters. Eviction is FIFO by insertion order, not LRU: when capacity
// is exceeded the oldest-inserted key goes first. Hits bypass the
// network entirely and are tagged CacheHit=true.
type ResponseCache struct {
	mu       sync.Mutex
	entries  map[string]cacheEntry
	order    []string
	ttl      time.Duration
	capacity int
}

// NewResponseCache creates a cache with the given TTL and capacity.
// A zero or negative capacity disables the capacity bound.
func NewResponseCache(ttl time.Duration, capacity int) *ResponseCache {
	return &ResponseCache{
		entries:  make(map[string]cacheEntry),
		ttl:      ttl,
		capacity: capacity,
	}
}

// Get returns the cached response for key if present and fresh. The
// returned response is a shallow copy with CacheHit set.
func (c *ResponseCache) Get(key string) (*UnifiedSeriesResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Since(entry.storedAt) > c.ttl {
		delete(c.entries, key)
		c.removeFromOrder(key)
		return nil, false
	}

	hit := *entry.response
	hit.CacheHit = true
	return &hit, true
}

// Put stores a response under key, evicting the oldest-inserted entry
// when capacity is exceeded. Last write wins for concurrent writers.
func (c *ResponseCache) Put(key string, response *UnifiedSeriesResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = cacheEntry{response: response, storedAt: time.Now()}

	for c.capacity > 0 && len(c.entries) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// Len returns the number of cached entries, including stale ones not
// yet evicted by a lookup.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops all entries.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
	c.order = nil
}

func (c *ResponseCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
