package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/observability"
)

// WarmupProvider fills one cached dataset before the service takes traffic.
// Entry[T] implements it.
type WarmupProvider interface {
	Name() string

	// Warmup must be idempotent.
	Warmup(ctx context.Context) error
}

// WarmupConfig configures the cache warming behavior.
type WarmupConfig struct {
	// Timeout bounds the whole warmup
	Timeout time.Duration

	// Parallel warms all providers at once; otherwise in registration order
	Parallel bool

	// ContinueOnError keeps going after a failed provider in sequential mode
	ContinueOnError bool
}

// DefaultWarmupConfig returns the startup defaults.
func DefaultWarmupConfig() WarmupConfig {
	return WarmupConfig{
		Timeout:         20 * time.Second,
		Parallel:        true,
		ContinueOnError: true,
	}
}

// WarmupResult contains the result of warming a single provider.
type WarmupResult struct {
	Provider string
	Duration time.Duration
	Err      error
}

// WarmupResults contains the aggregate results of cache warming.
type WarmupResults struct {
	Results   []WarmupResult
	TotalTime time.Duration
	Errors    int
}

// HasErrors returns true if any provider failed during warmup.
func (wr *WarmupResults) HasErrors() bool {
	return wr.Errors > 0
}

// Warmer runs registered providers at startup. Failures are reported, never
// fatal: a cold entry is simply filled by the first request.
type Warmer struct {
	providers []WarmupProvider
	logger    *observability.Logger
	config    WarmupConfig
}

// NewWarmer creates a new cache warmer.
func NewWarmer(logger *observability.Logger, config WarmupConfig) *Warmer {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultWarmupConfig().Timeout
	}
	return &Warmer{
		logger: logger.Component("cache-warmer"),
		config: config,
	}
}

// RegisterProvider adds a warmup provider to the warmer.
func (w *Warmer) RegisterProvider(providers ...WarmupProvider) {
	w.providers = append(w.providers, providers...)
}

// Warmup executes all registered providers and returns per-provider results
// in registration order.
func (w *Warmer) Warmup(ctx context.Context) *WarmupResults {
	start := time.Now()
	results := &WarmupResults{}

	if len(w.providers) == 0 {
		return results
	}

	warmupCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	if w.config.Parallel {
		results.Results = w.warmupParallel(warmupCtx)
	} else {
		results.Results = w.warmupSequential(warmupCtx)
	}

	for _, r := range results.Results {
		if r.Err != nil {
			results.Errors++
		}
	}
	results.TotalTime = time.Since(start)

	if results.Errors > 0 {
		w.logger.LogWarn(ctx, "cache warmup completed with errors",
			slog.Int("failed", results.Errors),
			slog.Int("providers", len(w.providers)),
			slog.Duration("took", results.TotalTime),
		)
	} else {
		w.logger.LogInfo(ctx, "cache warmup completed",
			slog.Int("providers", len(w.providers)),
			slog.Duration("took", results.TotalTime),
		)
	}

	return results
}

func (w *Warmer) warmupParallel(ctx context.Context) []WarmupResult {
	results := make([]WarmupResult, len(w.providers))

	var wg sync.WaitGroup
	for i, provider := range w.providers {
		wg.Add(1)
		go func(i int, p WarmupProvider) {
			defer wg.Done()
			results[i] = w.warmupProvider(ctx, p)
		}(i, provider)
	}
	wg.Wait()

	return results
}

func (w *Warmer) warmupSequential(ctx context.Context) []WarmupResult {
	results := make([]WarmupResult, 0, len(w.providers))

	for _, provider := range w.providers {
		result := w.warmupProvider(ctx, provider)
		results = append(results, result)

		if result.Err != nil && !w.config.ContinueOnError {
			break
		}
	}

	return results
}

func (w *Warmer) warmupProvider(ctx context.Context, provider WarmupProvider) WarmupResult {
	start := time.Now()
	name := provider.Name()

	err := provider.Warmup(ctx)
	duration := time.Since(start)

	if err != nil {
		w.logger.LogWarn(ctx, "cache warmup failed",
			slog.String("dataset", name),
			slog.Duration("took", duration),
			slog.Any("error", err),
		)
	} else {
		w.logger.LogDebug(ctx, "cache warmed",
			slog.String("dataset", name),
			slog.Duration("took", duration),
		)
	}

	return WarmupResult{Provider: name, Duration: duration, Err: err}
}
