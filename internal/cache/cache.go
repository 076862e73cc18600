// Package cache memoises results that are expensive to recompute and fine
// to serve slightly stale.
package cache

import (
	"context"
	"sync"
	"time"
)

// LoadFunc produces a fresh value.
type LoadFunc[V any] func(ctx context.Context) (V, error)

// TTL holds one loaded value for a fixed duration. The whole value expires
// at once; the next Get after that reloads it. Failed loads are not cached.
type TTL[V any] struct {
	mu     sync.Mutex
	load   LoadFunc[V]
	ttl    time.Duration
	now    func() time.Time
	val    V
	loaded time.Time
	valid  bool
}

// NewTTL returns an empty cache over load. A ttl of zero or less disables
// caching.
func NewTTL[V any](ttl time.Duration, load LoadFunc[V]) *TTL[V] {
	return &TTL[V]{load: load, ttl: ttl, now: time.Now}
}

// Get returns the cached value, loading it when missing or expired.
// Concurrent callers wait for a single load.
func (c *TTL[V]) Get(ctx context.Context) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.freshLocked() {
		return c.val, nil
	}
	v, err := c.load(ctx)
	if err != nil {
		var zero V
		return zero, err
	}
	if c.ttl > 0 {
		c.val, c.loaded, c.valid = v, c.now(), true
	}
	return v, nil
}

// Invalidate drops the cached value.
func (c *TTL[V]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero V
	c.val, c.loaded, c.valid = zero, time.Time{}, false
}

// Expired reports whether the next Get will load.
func (c *TTL[V]) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.freshLocked()
}

// freshLocked must be called with mu held.
func (c *TTL[V]) freshLocked() bool {
	return c.valid && c.now().Sub(c.loaded) < c.ttl
}
