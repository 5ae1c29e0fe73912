// Package cache provides the in-process and shared caches used by the
// frames service: a per-dataset TTL producer cache, a short-lived memory
// cache and a memory+Redis layered cache for rendered HTTP responses.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key is absent or expired
var ErrNotFound = errors.New("cache: key not found")

// Cache is a byte-oriented cache shared by the HTTP response layer
type Cache interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with TTL
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key from cache
	Delete(ctx context.Context, key string) error

	// Close closes the cache connection
	Close() error
}

// Recorder receives hit/miss notifications. *observability.Metrics satisfies it.
type Recorder interface {
	RecordCacheHit(ctx context.Context, layer string)
	RecordCacheMiss(ctx context.Context, layer string)
}

type nopRecorder struct{}

func (nopRecorder) RecordCacheHit(context.Context, string)  {}
func (nopRecorder) RecordCacheMiss(context.Context, string) {}

