// Package parallel runs independent fetches concurrently and joins them
// fail-fast: the first error is returned immediately, the shared context is
// cancelled and every partial result is discarded.
package parallel

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Fetcher produces one named value
type Fetcher[T any] func(ctx context.Context) (T, error)

// Group joins fetchers of different result types. Use Go to start each one
// and Wait once.
type Group struct {
	eg       *errgroup.Group
	failed   chan struct{}
	finished chan struct{}
	once     sync.Once
	err      error
}

// New returns a Group and the context its fetchers run under. The context
// is cancelled as soon as any fetcher fails.
func New(ctx context.Context) (*Group, context.Context) {
	eg, gctx := errgroup.WithContext(ctx)
	return &Group{
		eg:       eg,
		failed:   make(chan struct{}),
		finished: make(chan struct{}),
	}, gctx
}

// Result holds the value of one fetcher, valid only after Wait returned nil.
type Result[T any] struct {
	value T
}

// Value returns the fetched value
func (r *Result[T]) Value() T {
	return r.value
}

// Go starts fn on g under ctx (the context returned by New).
func Go[T any](ctx context.Context, g *Group, name string, fn Fetcher[T]) *Result[T] {
	r := &Result[T]{}
	g.eg.Go(func() error {
		v, err := fn(ctx)
		if err != nil {
			err = fmt.Errorf("%s: %w", name, err)
			g.once.Do(func() {
				g.err = err
				close(g.failed)
			})
			return err
		}
		r.value = v
		return nil
	})
	return r
}

// Wait returns nil once every fetcher succeeded, or the first error as soon
// as it happens without waiting for the remaining fetchers.
func (g *Group) Wait() error {
	go func() {
		_ = g.eg.Wait()
		close(g.finished)
	}()

	select {
	case <-g.failed:
		return g.err
	case <-g.finished:
		// A failure may have raced with the last completion
		select {
		case <-g.failed:
			return g.err
		default:
			return nil
		}
	}
}

// All runs every fetcher concurrently and returns their values keyed by the
// same names.
func All[T any](ctx context.Context, fetchers map[string]Fetcher[T]) (map[string]T, error) {
	g, gctx := New(ctx)

	results := make(map[string]*Result[T], len(fetchers))
	for name, fn := range fetchers {
		results[name] = Go(gctx, g, name, fn)
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]T, len(results))
	for name, r := range results {
		out[name] = r.Value()
	}
	return out, nil
}
