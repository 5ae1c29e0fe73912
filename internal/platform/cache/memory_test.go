package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryCache_DefaultTTL(t *testing.T) {
	clock := newFakeClock()
	c, err := NewMemoryCache[string](10, WithMemoryClock(clock.Now))
	if err != nil {
		t.Fatalf("NewMemoryCache failed: %v", err)
	}
	ctx := context.Background()

	_ = c.Set(ctx, "frame:42", "rendered", 0)

	clock.Advance(4999 * time.Millisecond)
	if v, err := c.Get(ctx, "frame:42"); err != nil || v != "rendered" {
		t.Fatalf("expected value before 5s, got %q %v", v, err)
	}

	clock.Advance(time.Millisecond)
	if _, err := c.Get(ctx, "frame:42"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound at 5s, got %v", err)
	}

	t.Log("✓ Default 5s TTL applied")
}

func TestMemoryCache_LazyEviction(t *testing.T) {
	clock := newFakeClock()
	c, _ := NewMemoryCache[int](10, WithMemoryClock(clock.Now))
	ctx := context.Background()

	_ = c.Set(ctx, "a", 1, time.Second)
	_ = c.Set(ctx, "b", 2, time.Minute)
	clock.Advance(2 * time.Second)

	if c.Len() != 2 {
		t.Fatalf("expired entries stay until read, expected 2, got %d", c.Len())
	}
	if _, err := c.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if c.Len() != 1 {
		t.Errorf("expired entry should be evicted on read, got %d entries", c.Len())
	}

	t.Log("✓ Expired entries evicted on read")
}

func TestMemoryCache_Bounded(t *testing.T) {
	c, _ := NewMemoryCache[int](2)
	ctx := context.Background()

	_ = c.Set(ctx, "a", 1, time.Minute)
	_ = c.Set(ctx, "b", 2, time.Minute)
	_, _ = c.Get(ctx, "a") // a is now most recently used
	_ = c.Set(ctx, "c", 3, time.Minute)

	if _, err := c.Get(ctx, "b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected least recently used key to be evicted")
	}
	if v, err := c.Get(ctx, "a"); err != nil || v != 1 {
		t.Errorf("expected a to survive, got %d %v", v, err)
	}
}

func TestMemoryCache_SatisfiesCache(t *testing.T) {
	mc, _ := NewMemoryCache[[]byte](10)
	var c Cache = mc

	ctx := context.Background()
	_ = c.Set(ctx, "k", []byte("v"), time.Minute)
	_ = c.Delete(ctx, "k")
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after Delete, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
