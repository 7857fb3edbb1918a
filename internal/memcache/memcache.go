package memcache

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	DefaultTTL      = 5 * time.Minute
	DefaultCapacity = 100
)

type entry struct {
	payload   json.RawMessage
	fetchedAt time.Time
}

// Cache is a process-wide TTL cache for upstream metadata responses, keyed
// by the credential-scrubbed request URL. When full, the oldest inserted
// entry is evicted; reads do not bump recency.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]entry
	order    []string
	ttl      time.Duration
	capacity int
	now      func() time.Time
}

func New() *Cache {
	return NewWithConfig(DefaultTTL, DefaultCapacity)
}

func NewWithConfig(ttl time.Duration, capacity int) *Cache {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Cache{
		entries:  make(map[string]entry),
		ttl:      ttl,
		capacity: capacity,
		now:      time.Now,
	}
}

// Get returns the cached payload for key, or nil if absent or expired.
func (c *Cache) Get(key string) json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil
	}
	if c.now().Sub(e.fetchedAt) >= c.ttl {
		delete(c.entries, key)
		return nil
	}
	return e.payload
}

// Set inserts or replaces the payload for key, evicting the oldest inserted
// entry if the cache is at capacity.
func (c *Cache) Set(key string, payload json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		if len(c.entries) >= c.capacity {
			c.evictOldestLocked()
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = entry{payload: payload, fetchedAt: c.now()}
}

func (c *Cache) evictOldestLocked() {
	for len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		if _, ok := c.entries[oldest]; ok {
			delete(c.entries, oldest)
			return
		}
	}
}

// Len reports the number of stored entries, including any not yet expired.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
