package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Producer computes a fresh value for a cache entry
type Producer[T any] func(ctx context.Context) (T, error)

// Option configures an Entry or Group
type Option func(*entryOptions)

type entryOptions struct {
	now          func() time.Time
	singleFlight bool
	recorder     Recorder
	label        string
}

func defaultEntryOptions() entryOptions {
	return entryOptions{
		now:          time.Now,
		singleFlight: true,
		recorder:     nopRecorder{},
	}
}

// WithClock overrides the clock used for freshness checks
func WithClock(now func() time.Time) Option {
	return func(o *entryOptions) { o.now = now }
}

// WithSingleFlight toggles sharing one producer call between concurrent
// misses. When off, every concurrent miss runs the producer and the last
// one to finish wins.
func WithSingleFlight(enabled bool) Option {
	return func(o *entryOptions) { o.singleFlight = enabled }
}

// WithRecorder reports hits and misses under the entry key
func WithRecorder(r Recorder) Option {
	return func(o *entryOptions) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithLabel sets the metrics label; defaults to the entry key
func WithLabel(label string) Option {
	return func(o *entryOptions) { o.label = label }
}

// Entry caches the last successful result of a producer for ttl.
//
// A value is served while now-computedAt < ttl. Otherwise the producer runs
// in the caller's request path; there is no background refresh. A failed
// producer leaves the entry untouched and the error goes to the callers
// waiting on that invocation only.
type Entry[T any] struct {
	key      string
	ttl      time.Duration
	producer Producer[T]
	opts     entryOptions
	flight   singleflight.Group

	mu         sync.RWMutex
	value      T
	computedAt time.Time
	valid      bool
}

// NewEntry wraps producer in a cache entry named key
func NewEntry[T any](key string, ttl time.Duration, producer Producer[T], opts ...Option) *Entry[T] {
	o := defaultEntryOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.label == "" {
		o.label = key
	}
	return &Entry[T]{
		key:      key,
		ttl:      ttl,
		producer: producer,
		opts:     o,
	}
}

// Get returns the cached value if fresh, otherwise runs the producer
func (e *Entry[T]) Get(ctx context.Context) (T, error) {
	if v, ok := e.fresh(); ok {
		e.opts.recorder.RecordCacheHit(ctx, e.opts.label)
		return v, nil
	}
	e.opts.recorder.RecordCacheMiss(ctx, e.opts.label)

	if !e.opts.singleFlight {
		return e.refresh(ctx)
	}

	// The shared call must outlive any single caller's cancellation
	shared := context.WithoutCancel(ctx)
	ch := e.flight.DoChan(e.key, func() (interface{}, error) {
		if v, ok := e.fresh(); ok {
			return v, nil
		}
		return e.refresh(shared)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			var zero T
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Invalidate forces the next Get to run the producer
func (e *Entry[T]) Invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.valid = false
}

// Warmup runs the producer unconditionally and stores its result.
// It lets the entry be registered with a Warmer.
func (e *Entry[T]) Warmup(ctx context.Context) error {
	_, err := e.refresh(ctx)
	return err
}

// Name implements WarmupProvider
func (e *Entry[T]) Name() string {
	return e.key
}

func (e *Entry[T]) fresh() (T, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.valid && e.opts.now().Sub(e.computedAt) < e.ttl {
		return e.value, true
	}
	var zero T
	return zero, false
}

func (e *Entry[T]) refresh(ctx context.Context) (T, error) {
	v, err := e.producer(ctx)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("cache %s: %w", e.key, err)
	}

	e.mu.Lock()
	e.value = v
	e.computedAt = e.opts.now()
	e.valid = true
	e.mu.Unlock()

	return v, nil
}

// Group is a set of entries sharing a TTL, one per key, created on first use.
// At most maxKeys entries are retained; the least recently used is dropped.
type Group[T any] struct {
	name    string
	ttl     time.Duration
	factory func(key string) Producer[T]
	opts    []Option

	mu      sync.Mutex
	entries *lru.Cache[string, *Entry[T]]
}

// NewGroup creates a keyed entry group
func NewGroup[T any](name string, ttl time.Duration, maxKeys int, factory func(key string) Producer[T], opts ...Option) (*Group[T], error) {
	if maxKeys <= 0 {
		maxKeys = defaultMemoryMaxSize
	}
	entries, err := lru.New[string, *Entry[T]](maxKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache group %s: %w", name, err)
	}
	return &Group[T]{
		name:    name,
		ttl:     ttl,
		factory: factory,
		opts:    opts,
		entries: entries,
	}, nil
}

// Get returns the value for key through its entry
func (g *Group[T]) Get(ctx context.Context, key string) (T, error) {
	return g.entry(key).Get(ctx)
}

// Len returns the number of tracked keys
func (g *Group[T]) Len() int {
	return g.entries.Len()
}

func (g *Group[T]) entry(key string) *Entry[T] {
	g.mu.Lock()
	defer g.mu.Unlock()

	if e, ok := g.entries.Get(key); ok {
		return e
	}
	opts := append([]Option{WithLabel(g.name)}, g.opts...)
	e := NewEntry(g.name+":"+key, g.ttl, g.factory(key), opts...)
	g.entries.Add(key, e)
	return e
}
