package cache

import (
	"strings"
	"sync"
	"time"
)

// Cache is a process-wide key/value store with per-entry TTL. Entries are
// not authoritative: a miss always falls back to storage, so staleness is
// bounded by the TTL rather than by invalidation events. Every verification
// request shares one instance; reads and writes are safe concurrently.
//
// A stored nil is a valid entry. Negative lookups (resource not found) are
// cached the same way as positive ones.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
}

type entry struct {
	value     interface{}
	expiresAt time.Time
}

func New() *Cache {
	return &Cache{entries: make(map[string]entry)}
}

// Key builds a namespaced cache key from its parts.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// Set stores value under key for ttl. A non-positive ttl is a no-op.
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
}

// Get returns the stored value and whether a live entry exists. Expired
// entries read as misses; eviction of the stale slot is left to Sweep so the
// read path never takes the write lock.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Sweep evicts expired entries and returns how many were removed.
func (c *Cache) Sweep() int {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries, including not-yet-swept expired ones.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
