package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubProvider struct {
	name string
	err  error
	runs int
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Warmup(ctx context.Context) error {
	p.runs++
	return p.err
}

func TestWarmer_Parallel(t *testing.T) {
	w := NewWarmer(nil, DefaultWarmupConfig())

	riddle := NewEntry("riddle", time.Minute, func(ctx context.Context) (int, error) { return 1, nil })
	failing := &stubProvider{name: "leaderboard", err: errors.New("rpc down")}
	w.RegisterProvider(riddle, failing)

	results := w.Warmup(context.Background())

	if len(results.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results.Results))
	}
	if results.Results[0].Provider != "riddle" || results.Results[0].Err != nil {
		t.Errorf("unexpected riddle result: %+v", results.Results[0])
	}
	if !results.HasErrors() || results.Errors != 1 {
		t.Errorf("expected 1 error, got %d", results.Errors)
	}
	if _, ok := riddle.fresh(); !ok {
		t.Error("warmed entry should be fresh")
	}

	t.Log("✓ Warmup fills entries and reports failures")
}

func TestWarmer_SequentialStopsOnError(t *testing.T) {
	w := NewWarmer(nil, WarmupConfig{Timeout: time.Second, ContinueOnError: false})

	first := &stubProvider{name: "a", err: errors.New("boom")}
	second := &stubProvider{name: "b"}
	w.RegisterProvider(first, second)

	results := w.Warmup(context.Background())
	if len(results.Results) != 1 || second.runs != 0 {
		t.Errorf("expected to stop after first failure, got %d results, second ran %d times", len(results.Results), second.runs)
	}
}

func TestWarmer_NoProviders(t *testing.T) {
	results := NewWarmer(nil, DefaultWarmupConfig()).Warmup(context.Background())
	if results.HasErrors() || len(results.Results) != 0 {
		t.Errorf("expected empty results, got %+v", results)
	}
}
