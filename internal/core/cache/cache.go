package cache

import (
	"sync"
	"time"
)

// DefaultTTL applies when Set is called without an explicit TTL.
const DefaultTTL = 5 * time.Minute

// sweepEvery is the Set-call interval between full expiry sweeps. Sweeping
// bounds growth from keys that are written but never read again; correctness
// does not depend on it, every Get re-checks expiry.
const sweepEvery = 100

// Config tunes a cache instance. Zero values fall back to defaults.
type Config struct {
	TTL time.Duration
}

// Stats is a point-in-time snapshot for the diagnostics endpoint. Keys only
// contains live (unexpired) entries; Stats runs an eager sweep first.
type Stats struct {
	Size int      `json:"size"`
	Keys []string `json:"keys"`
}

type entry struct {
	value     any
	expiresAt time.Time
}

// TTLCache is an in-process key/value store with per-entry expiry. A read
// past expiry is equivalent to absence. Constructed once per process and
// passed explicitly to whoever needs it.
type TTLCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	sets    int
}

func New(c Config) *TTLCache {
	if c.TTL == 0 {
		c.TTL = DefaultTTL
	}
	return &TTLCache{
		entries: make(map[string]entry),
		ttl:     c.TTL,
	}
}

// Set stores value under key with the default TTL, overwriting any existing
// entry unconditionally.
func (c *TTLCache) Set(key string, value any) {
	c.SetTTL(key, value, c.ttl)
}

// SetTTL stores value under key with an explicit TTL.
func (c *TTLCache) SetTTL(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
	c.sets++
	if c.sets%sweepEvery == 0 {
		c.sweepLocked()
	}
	c.mu.Unlock()
}

// Get returns the value for key if present and not expired. An expired entry
// is deleted on access and reported as absent.
func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		c.Delete(key)
		return nil, false
	}
	return e.value, true
}

// Delete removes key unconditionally; no-op if absent.
func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear removes all entries.
func (c *TTLCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// Len returns the current entry count, expired entries included.
func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats sweeps expired entries eagerly and reports the live key set.
func (c *TTLCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return Stats{Size: len(c.entries), Keys: keys}
}

// sweepLocked drops every expired entry. Caller holds the write lock.
func (c *TTLCache) sweepLocked() {
	now := time.Now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}
