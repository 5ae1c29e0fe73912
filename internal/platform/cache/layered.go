package cache

import (
	"context"
	"errors"
	"time"
)

// DefaultL1MaxTTL caps how long L1 keeps a value written through to L2
const DefaultL1MaxTTL = time.Minute

// LayeredCache implements a two-tier cache (L1: memory, L2: Redis).
// Either layer may be nil.
type LayeredCache struct {
	l1       Cache
	l2       Cache
	l1MaxTTL time.Duration
	recorder Recorder
}

// LayeredCacheConfig configures a LayeredCache
type LayeredCacheConfig struct {
	L1       Cache
	L2       Cache
	L1MaxTTL time.Duration // defaults to DefaultL1MaxTTL
	Recorder Recorder
}

// NewLayeredCache creates a new layered cache
func NewLayeredCache(l1, l2 Cache, recorder Recorder) *LayeredCache {
	return NewLayeredCacheWithConfig(LayeredCacheConfig{L1: l1, L2: l2, Recorder: recorder})
}

// NewLayeredCacheWithConfig creates a layered cache from a config
func NewLayeredCacheWithConfig(cfg LayeredCacheConfig) *LayeredCache {
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}
	if cfg.L1MaxTTL <= 0 {
		cfg.L1MaxTTL = DefaultL1MaxTTL
	}
	return &LayeredCache{
		l1:       cfg.L1,
		l2:       cfg.L2,
		l1MaxTTL: cfg.L1MaxTTL,
		recorder: cfg.Recorder,
	}
}

// Get retrieves a value from cache (L1 → L2 → miss)
func (lc *LayeredCache) Get(ctx context.Context, key string) ([]byte, error) {
	if lc.l1 != nil {
		if val, err := lc.l1.Get(ctx, key); err == nil {
			lc.recorder.RecordCacheHit(ctx, "l1")
			return val, nil
		}
		lc.recorder.RecordCacheMiss(ctx, "l1")
	}

	if lc.l2 != nil {
		val, err := lc.l2.Get(ctx, key)
		if err == nil {
			lc.recorder.RecordCacheHit(ctx, "l2")
			if lc.l1 != nil {
				_ = lc.l1.Set(ctx, key, val, lc.l1MaxTTL)
			}
			return val, nil
		}
		lc.recorder.RecordCacheMiss(ctx, "l2")
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	return nil, ErrNotFound
}

// Set stores a value in both cache layers (write-through)
func (lc *LayeredCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var l1Err, l2Err error

	if lc.l1 != nil {
		l1TTL := ttl
		if ttl > lc.l1MaxTTL {
			l1TTL = lc.l1MaxTTL
		}
		l1Err = lc.l1.Set(ctx, key, value, l1TTL)
	}

	if lc.l2 != nil {
		l2Err = lc.l2.Set(ctx, key, value, ttl)
	}

	// Only fail when no layer accepted the value
	switch {
	case lc.l1 == nil:
		return l2Err
	case lc.l2 == nil:
		return l1Err
	case l1Err != nil && l2Err != nil:
		return l2Err
	}
	return nil
}

// Delete removes a key from both cache layers
func (lc *LayeredCache) Delete(ctx context.Context, key string) error {
	var err error
	if lc.l1 != nil {
		err = lc.l1.Delete(ctx, key)
	}
	if lc.l2 != nil {
		if l2Err := lc.l2.Delete(ctx, key); err == nil {
			err = l2Err
		}
	}
	return err
}

// Close closes both cache layers
func (lc *LayeredCache) Close() error {
	var err error
	if lc.l1 != nil {
		err = lc.l1.Close()
	}
	if lc.l2 != nil {
		if l2Err := lc.l2.Close(); err == nil {
			err = l2Err
		}
	}
	return err
}
