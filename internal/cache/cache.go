// Package cache holds short-lived copies of expensive read models such as the
// dashboard counters, invalidated whenever a claim changes.
package cache

import (
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	DeletePrefix(prefix string) error
	Clear() error
}

const keyPrefix = "fratlas:v1:"

// Claim read-model keys
var (
	StatsKey     = Key("claims", "stats")
	AnalyticsKey = Key("claims", "analytics")
	ClaimsPrefix = Key("claims")
)

// Key joins parts into a namespaced cache key
func Key(parts ...string) string {
	return keyPrefix + strings.Join(parts, ":")
}

// Generation counts invalidations. Writers call Bump before dropping cached
// entries; LoadVersioned uses it to avoid caching a value read before a write.
type Generation struct {
	n atomic.Uint64
}

// Current returns the invalidation count
func (g *Generation) Current() uint64 {
	return g.n.Load()
}

// Bump records an invalidation
func (g *Generation) Bump() {
	g.n.Add(1)
}

// Load returns the cached JSON value under key, or calls load and caches its
// result for ttl. A corrupt entry is treated as a miss.
func Load[T any](c Cache, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	return LoadVersioned(c, key, ttl, nil, load)
}

// LoadVersioned is Load guarded by gen: when an invalidation happens while
// load runs, the result is returned but not kept in the cache.
func LoadVersioned[T any](c Cache, key string, ttl time.Duration, gen *Generation, load func() (T, error)) (T, error) {
	if data, ok := c.Get(key); ok {
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			return v, nil
		}
	}

	var start uint64
	if gen != nil {
		start = gen.Current()
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	if data, err := json.Marshal(v); err == nil {
		_ = c.Set(key, data, ttl)
		// A writer that bumped after our Set also deletes the entry itself
		if gen != nil && gen.Current() != start {
			_ = c.Delete(key)
		}
	}
	return v, nil
}
