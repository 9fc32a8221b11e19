// Package cache deduplicates expensive embedding computations. Entries are
// keyed by the query image bytes together with the detector and model
// versions, so a version bump naturally invalidates old entries without any
// explicit flush.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultCapacity = 1024
	defaultTTL      = 24 * time.Hour
)

// Key identifies a cached computation.
type Key [sha256.Size]byte

func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// NewKey hashes the image bytes and the pipeline versions. Fields are length
// prefixed so that no two field combinations can collide by concatenation.
func NewKey(image []byte, detectorVersion, modelVersion string) Key {
	h := sha256.New()
	var prefix [8]byte
	field := func(b []byte) {
		binary.BigEndian.PutUint64(prefix[:], uint64(len(b)))
		h.Write(prefix[:])
		h.Write(b)
	}
	field(image)
	field([]byte(detectorVersion))
	field([]byte(modelVersion))

	var key Key
	h.Sum(key[:0])
	return key
}

// Stats is a point-in-time snapshot of cache effectiveness counters.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Entries   int    `json:"entries"`
	Capacity  int    `json:"capacity"`
	InFlight  int    `json:"in_flight"`
}

// flight is a computation in progress. All callers for the same key share
// its result. waiters counts callers still blocked on done; when the last
// one gives up the computation context is cancelled.
type flight[V any] struct {
	done    chan struct{}
	val     V
	err     error
	waiters int
	cancel  context.CancelFunc
}

// Cache is a TTL-bounded LRU with single-flight semantics: at most one
// computation runs per key at any time, concurrent callers wait for it.
// Only successful results are stored, errors are shared with the waiters
// of the failed computation and never cached.
type Cache[V any] struct {
	mu      sync.Mutex
	lru     *expirable.LRU[Key, V]
	flights map[Key]*flight[V]

	capacity  int
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// New creates a cache holding up to capacity entries for at most ttl each.
// Zero values select the defaults (1024 entries, 24 hours).
func New[V any](capacity int, ttl time.Duration) *Cache[V] {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}

	c := &Cache[V]{
		flights:  make(map[Key]*flight[V]),
		capacity: capacity,
	}
	c.lru = expirable.NewLRU[Key, V](capacity, func(Key, V) {
		c.evictions.Add(1)
	}, ttl)
	return c
}

// Get returns the cached value for key, if present.
func (c *Cache[V]) Get(key Key) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	val, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	}
	return val, ok
}

// GetOrCompute returns the cached value for key, or runs compute to produce
// it. Concurrent callers for the same key share a single computation and a
// single result. The computation runs on a context detached from any caller;
// it is cancelled only when every waiting caller has gone away. A caller
// whose own context expires gets its context error back while the
// computation keeps running for the remaining waiters.
func (c *Cache[V]) GetOrCompute(ctx context.Context, key Key, compute func(context.Context) (V, error)) (V, error) {
	c.mu.Lock()

	if val, ok := c.lru.Get(key); ok {
		c.hits.Add(1)
		c.mu.Unlock()
		return val, nil
	}

	if f, ok := c.flights[key]; ok {
		f.waiters++
		c.hits.Add(1)
		c.mu.Unlock()
		return c.wait(ctx, f)
	}

	c.misses.Add(1)
	fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f := &flight[V]{done: make(chan struct{}), cancel: cancel, waiters: 1}
	c.flights[key] = f
	c.mu.Unlock()

	go c.run(fctx, key, f, compute)
	return c.wait(ctx, f)
}

func (c *Cache[V]) run(ctx context.Context, key Key, f *flight[V], compute func(context.Context) (V, error)) {
	val, err := compute(ctx)

	c.mu.Lock()
	f.val, f.err = val, err
	if err == nil {
		c.lru.Add(key, val)
	}
	delete(c.flights, key)
	c.mu.Unlock()

	f.cancel()
	close(f.done)
}

func (c *Cache[V]) wait(ctx context.Context, f *flight[V]) (V, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
	}

	c.mu.Lock()
	// The flight may have completed while the caller was timing out.
	select {
	case <-f.done:
		c.mu.Unlock()
		return f.val, f.err
	default:
	}
	f.waiters--
	if f.waiters == 0 {
		f.cancel()
	}
	c.mu.Unlock()

	var zero V
	return zero, ctx.Err()
}

// Purge drops every cached entry. In-flight computations are not affected.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// Stats reports counters since the cache was created.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	entries := c.lru.Len()
	inFlight := len(c.flights)
	c.mu.Unlock()

	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   entries,
		Capacity:  c.capacity,
		InFlight:  inFlight,
	}
}
