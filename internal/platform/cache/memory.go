package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// DefaultMemoryTTL applies when Set is called with a non-positive TTL
	DefaultMemoryTTL = 5 * time.Second

	defaultMemoryMaxSize = 1000
)

type memoryItem[V any] struct {
	value     V
	expiresAt time.Time
}

// MemoryCache is a bounded in-process cache with per-entry expiry.
// Expired entries are evicted when read; there is no background sweep.
// MemoryCache[[]byte] satisfies Cache.
type MemoryCache[V any] struct {
	items *lru.Cache[string, memoryItem[V]]
	now   func() time.Time
}

// MemoryOption configures a MemoryCache
type MemoryOption func(*memoryOptions)

type memoryOptions struct {
	now func() time.Time
}

// WithMemoryClock overrides the clock used for expiry
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(o *memoryOptions) { o.now = now }
}

// NewMemoryCache creates a new in-memory cache holding at most maxSize entries
func NewMemoryCache[V any](maxSize int, opts ...MemoryOption) (*MemoryCache[V], error) {
	if maxSize <= 0 {
		maxSize = defaultMemoryMaxSize
	}

	o := memoryOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	items, err := lru.New[string, memoryItem[V]](maxSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	return &MemoryCache[V]{items: items, now: o.now}, nil
}

// Get returns the value for key, or ErrNotFound if absent or expired
func (c *MemoryCache[V]) Get(_ context.Context, key string) (V, error) {
	var zero V

	item, ok := c.items.Get(key)
	if !ok {
		return zero, ErrNotFound
	}

	if !c.now().Before(item.expiresAt) {
		c.items.Remove(key)
		return zero, ErrNotFound
	}

	return item.value, nil
}

// Set stores value under key until now+ttl; ttl <= 0 means DefaultMemoryTTL
func (c *MemoryCache[V]) Set(_ context.Context, key string, value V, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultMemoryTTL
	}
	c.items.Add(key, memoryItem[V]{value: value, expiresAt: c.now().Add(ttl)})
	return nil
}

// Delete removes a key from cache
func (c *MemoryCache[V]) Delete(_ context.Context, key string) error {
	c.items.Remove(key)
	return nil
}

// Close drops all entries
func (c *MemoryCache[V]) Close() error {
	c.items.Purge()
	return nil
}

// Len returns the number of stored entries, including expired ones not yet read
func (c *MemoryCache[V]) Len() int {
	return c.items.Len()
}
