// Package cache provides a small TTL cache for avoiding redundant expensive
// lookups (customer profiles, asset records) within a bounded staleness window.
//
// The default implementation is TTLCache, a mutex-guarded map with lazy
// expiry. The Cache interface lets callers swap in other backends (see the
// ristretto subpackage); a cache must never fail a caller's request path, so
// every backend degrades failures to miss behavior.
package cache

import (
	"math"
	"sync"
	"time"
)

// Cache is the minimal capability contract shared by all cache backends.
type Cache interface {
	// Get returns the cached value for key, or ok=false on a miss.
	Get(key string) (value any, ok bool)

	// Set inserts or overwrites the entry for key.
	Set(key string, value any)

	// Invalidate removes a single entry unconditionally; no-op if absent.
	Invalidate(key string)

	// Clear removes all entries.
	Clear()
}

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	Hits           uint64  `json:"hits"`
	Misses         uint64  `json:"misses"`
	TotalRequests  uint64  `json:"totalRequests"`
	HitRatePercent float64 `json:"hitRatePercent"`
	Size           int     `json:"cacheSize"`
	TTLSeconds     float64 `json:"ttlSeconds"`
}

type entry struct {
	value      any
	insertedAt time.Time
}

// TTLCache is a thread-safe cache with a uniform time-to-live applied to all
// entries. Expiry is lazy: an expired entry is dropped on the Get that
// observes it. SweepExpired can be called to proactively bound memory.
//
// A single coarse mutex serializes all operations. Usage is low-contention
// (request handlers deduplicating profile fetches), so sharded locking would
// be over-engineering.
var _ Cache = (*TTLCache)(nil)

type TTLCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry
	hits    uint64
	misses  uint64
	now     func() time.Time
}

// Option configures a TTLCache.
type Option func(*TTLCache)

// WithClock overrides the cache's time source. Tests use this to simulate
// the passage of time without sleeping.
func WithClock(now func() time.Time) Option {
	return func(c *TTLCache) {
		c.now = now
	}
}

// New creates a TTLCache whose entries remain visible for ttl after insertion.
func New(ttl time.Duration, opts ...Option) *TTLCache {
	c := &TTLCache{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached value for key if it is present and younger than the
// TTL. An expired entry is removed and reported as a miss.
func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if c.now().Sub(e.insertedAt) > c.ttl {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}
	c.hits++
	return e.value, true
}

// Set inserts or overwrites the entry for key, stamping it with the current time.
func (c *TTLCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, insertedAt: c.now()}
}

// Invalidate removes a single entry unconditionally.
func (c *TTLCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes all entries and resets the hit/miss counters.
func (c *TTLCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
	c.hits = 0
	c.misses = 0
}

// SweepExpired removes every entry older than the TTL and returns the number
// removed. Get self-expires lazily, so sweeping is a maintenance operation,
// not a correctness requirement.
func (c *TTLCache) SweepExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if now.Sub(e.insertedAt) > c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Stats returns a snapshot of the cache's counters. HitRatePercent is rounded
// to two decimals and is 0 when no requests have been made.
func (c *TTLCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = math.Round(float64(c.hits)/float64(total)*100*100) / 100
	}
	return Stats{
		Hits:           c.hits,
		Misses:         c.misses,
		TotalRequests:  total,
		HitRatePercent: rate,
		Size:           len(c.entries),
		TTLSeconds:     c.ttl.Seconds(),
	}
}
