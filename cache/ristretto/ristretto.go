// Package ristretto adapts dgraph-io/ristretto to the cache.Cache contract.
// It suits deployments where the profile cache is large enough that admission
// control and cost-based eviction matter; for small working sets the plain
// TTLCache is simpler and its stats are exact.
package ristretto

import (
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/fleetmind/memtier/cache"
)

// Cache wraps a ristretto cache with a uniform TTL.
//
// Ristretto admits entries asynchronously and may drop a Set under pressure;
// that is acceptable here because a cache miss only costs a refetch. Wait
// flushes pending writes when deterministic visibility is needed.
type Cache struct {
	inner *ristretto.Cache
	ttl   time.Duration
}

// Config sizes the underlying ristretto cache.
type Config struct {
	// TTL applied to every entry.
	TTL time.Duration

	// MaxEntries bounds the number of cached values. Default: 10_000.
	MaxEntries int64
}

// New creates a ristretto-backed cache. Every entry costs 1, so MaxEntries
// is an entry count rather than a byte budget.
func New(cfg Config) (*Cache, error) {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10_000
	}
	inner, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.MaxEntries * 10,
		MaxCost:     cfg.MaxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{inner: inner, ttl: cfg.TTL}, nil
}

var _ cache.Cache = (*Cache)(nil)

// Get returns the cached value for key, or ok=false on a miss.
func (c *Cache) Get(key string) (any, bool) {
	return c.inner.Get(key)
}

// Set inserts or overwrites the entry for key. The write is applied
// asynchronously and may be dropped by admission control.
func (c *Cache) Set(key string, value any) {
	c.inner.SetWithTTL(key, value, 1, c.ttl)
}

// Invalidate removes a single entry unconditionally.
func (c *Cache) Invalidate(key string) {
	c.inner.Del(key)
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.inner.Clear()
}

// Wait blocks until pending writes are applied.
func (c *Cache) Wait() {
	c.inner.Wait()
}

// Close releases the cache's internal goroutines.
func (c *Cache) Close() {
	c.inner.Close()
}
