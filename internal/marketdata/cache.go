package marketdata

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Source tags recorded on cache entries when they are produced.
const (
	SourceLive     = "live"
	SourceEstimate = "estimate"
	SourceDefault  = "default"
)

// Serving tags describing how an entry was served relative to its TTL.
const (
	SourceCache    = "cache"
	SourceFallback = "fallback"
)

// Entry is one cached market value with its fetch metadata.
type Entry[T any] struct {
	Value     T
	Source    string
	FetchedAt time.Time
}

// FetchFunc retrieves a fresh value from the upstream market source.
type FetchFunc[T any] func(ctx context.Context) (Entry[T], error)

// Freshness describes the state of a served entry.
type Freshness int

const (
	// Fresh means the entry is within its TTL.
	Fresh Freshness = iota
	// Stale means the entry outlived its TTL and a refresh is underway.
	Stale
	// Fallback means the entry outlived its TTL and the most recent
	// refresh attempt failed.
	Fallback
)

// String returns the metric label for the freshness state.
func (f Freshness) String() string {
	switch f {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "fallback"
	}
}

// MetricsRecorder receives cache and fetch outcome counts. Implemented by
// observability.Metrics; a nil recorder disables instrumentation.
type MetricsRecorder interface {
	RecordFetch(ctx context.Context, provider, outcome string)
	RecordCacheRead(ctx context.Context, provider, freshness string)
}

// Cache is a single-value TTL cache with last-good fallback. Expired entries
// are still served while a single-flight refresh runs in the background;
// a caller only blocks when the cache holds nothing at all.
type Cache[T any] struct {
	name   string
	ttl    time.Duration
	fetch  FetchFunc[T]
	now    func() time.Time
	logger *zap.Logger

	metrics MetricsRecorder
	onStore func(ctx context.Context, entry Entry[T])

	group singleflight.Group

	mu        sync.RWMutex
	entry     Entry[T]
	hasEntry  bool
	lastErrAt time.Time
}

// CacheOption customises Cache behaviour.
type CacheOption[T any] func(*Cache[T])

// WithClock injects a custom time source (useful for TTL tests).
func WithClock[T any](now func() time.Time) CacheOption[T] {
	return func(c *Cache[T]) {
		if now != nil {
			c.now = now
		}
	}
}

// WithCacheLogger sets the logger used for refresh diagnostics.
func WithCacheLogger[T any](logger *zap.Logger) CacheOption[T] {
	return func(c *Cache[T]) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics[T any](metrics MetricsRecorder) CacheOption[T] {
	return func(c *Cache[T]) {
		c.metrics = metrics
	}
}

// WithStoreHook registers a callback invoked after every successful store.
// Used to persist snapshots and emit refresh events.
func WithStoreHook[T any](hook func(ctx context.Context, entry Entry[T])) CacheOption[T] {
	return func(c *Cache[T]) {
		c.onStore = hook
	}
}

// NewCache constructs a cache around the supplied fetch function.
func NewCache[T any](name string, ttl time.Duration, fetch FetchFunc[T], opts ...CacheOption[T]) *Cache[T] {
	cache := &Cache[T]{
		name:   name,
		ttl:    ttl,
		fetch:  fetch,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cache)
		}
	}
	return cache
}

// Seed installs an entry without invoking the fetch or store hook. Used at
// startup to restore a persisted snapshot.
func (c *Cache[T]) Seed(entry Entry[T]) {
	c.mu.Lock()
	c.entry = entry
	c.hasEntry = true
	c.mu.Unlock()
}

// Peek returns the current entry without triggering a refresh.
func (c *Cache[T]) Peek() (Entry[T], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entry, c.hasEntry
}

// Get returns the freshest known value. A fresh entry is returned directly.
// An expired entry is returned immediately while a background refresh runs.
// With no entry at all the call blocks on a single-flight fetch; concurrent
// cold reads collapse into one upstream request.
func (c *Cache[T]) Get(ctx context.Context) (Entry[T], Freshness, error) {
	now := c.now()

	c.mu.RLock()
	entry := c.entry
	hasEntry := c.hasEntry
	lastErrAt := c.lastErrAt
	c.mu.RUnlock()

	if hasEntry {
		if now.Sub(entry.FetchedAt) < c.ttl {
			c.recordRead(ctx, Fresh)
			return entry, Fresh, nil
		}

		c.refreshAsync(ctx)
		freshness := Stale
		if lastErrAt.After(entry.FetchedAt) {
			freshness = Fallback
		}
		c.recordRead(ctx, freshness)
		return entry, freshness, nil
	}

	refreshed, err := c.Refresh(ctx)
	if err != nil {
		return Entry[T]{}, Fallback, err
	}
	c.recordRead(ctx, Fresh)
	return refreshed, Fresh, nil
}

// Refresh performs a single-flight fetch and stores the result. On failure
// the previous entry is kept and returned alongside the error.
func (c *Cache[T]) Refresh(ctx context.Context) (Entry[T], error) {
	result, err, _ := c.group.Do("refresh", func() (any, error) {
		entry, fetchErr := c.fetch(ctx)
		if fetchErr != nil {
			c.mu.Lock()
			c.lastErrAt = c.now()
			c.mu.Unlock()
			c.recordFetch(ctx, "error")
			return Entry[T]{}, fetchErr
		}

		if entry.FetchedAt.IsZero() {
			entry.FetchedAt = c.now()
		}
		c.store(ctx, entry)
		c.recordFetch(ctx, "success")
		return entry, nil
	})
	if err != nil {
		c.logger.Warn("market data refresh failed", zap.String("cache", c.name), zap.Error(err))
		if previous, ok := c.Peek(); ok {
			return previous, err
		}
		return Entry[T]{}, err
	}
	return result.(Entry[T]), nil
}

// Store installs an entry and runs the store hook. Providers use it to cache
// synthesized estimates so downstream consumers never hard-fail.
func (c *Cache[T]) Store(ctx context.Context, entry Entry[T]) {
	if entry.FetchedAt.IsZero() {
		entry.FetchedAt = c.now()
	}
	c.store(ctx, entry)
}

func (c *Cache[T]) store(ctx context.Context, entry Entry[T]) {
	c.mu.Lock()
	c.entry = entry
	c.hasEntry = true
	c.mu.Unlock()

	if c.onStore != nil {
		c.onStore(ctx, entry)
	}
}

// refreshAsync launches a background refresh decoupled from the caller's
// deadline. The single-flight group keeps concurrent triggers collapsed.
func (c *Cache[T]) refreshAsync(ctx context.Context) {
	detached := context.WithoutCancel(ctx)
	go func() {
		_, _ = c.Refresh(detached)
	}()
}

func (c *Cache[T]) recordFetch(ctx context.Context, outcome string) {
	if c.metrics != nil {
		c.metrics.RecordFetch(ctx, c.name, outcome)
	}
}

func (c *Cache[T]) recordRead(ctx context.Context, freshness Freshness) {
	if c.metrics != nil {
		c.metrics.RecordCacheRead(ctx, c.name, freshness.String())
	}
}
