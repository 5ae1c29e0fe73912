package resilience

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// AdaptiveLimiterConfig configures the adaptive limiter.
type AdaptiveLimiterConfig struct {
	// BaseRate is the starting and maximum rate in requests per second
	BaseRate float64

	// MinRate is the floor for backoff (default: BaseRate/10)
	MinRate float64

	Burst int

	// BackoffFactor multiplies the rate on a rate-limit error (default: 0.5)
	BackoffFactor float64

	// RecoveryFactor multiplies the rate after RecoveryWindow successes (default: 1.2)
	RecoveryFactor float64
	RecoveryWindow int

	// OnChange is called with the new rate after every adjustment
	OnChange func(rps float64)
}

// AdaptiveLimiter is a token bucket that halves its rate when the RPC
// provider answers 429 and climbs back after a run of successes.
type AdaptiveLimiter struct {
	limiter *rate.Limiter
	cfg     AdaptiveLimiterConfig

	mu        sync.Mutex
	current   float64
	successes int
}

// NewAdaptiveLimiter creates a new adaptive rate limiter.
func NewAdaptiveLimiter(cfg AdaptiveLimiterConfig) *AdaptiveLimiter {
	if cfg.BaseRate <= 0 {
		cfg.BaseRate = 10
	}
	if cfg.MinRate <= 0 || cfg.MinRate > cfg.BaseRate {
		cfg.MinRate = cfg.BaseRate / 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.BackoffFactor <= 0 || cfg.BackoffFactor >= 1 {
		cfg.BackoffFactor = 0.5
	}
	if cfg.RecoveryFactor <= 1 {
		cfg.RecoveryFactor = 1.2
	}
	if cfg.RecoveryWindow <= 0 {
		cfg.RecoveryWindow = 20
	}

	return &AdaptiveLimiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.BaseRate), cfg.Burst),
		cfg:     cfg,
		current: cfg.BaseRate,
	}
}

// Wait blocks until a request may proceed or ctx ends
func (l *AdaptiveLimiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Observe adjusts the rate from the outcome of a request
func (l *AdaptiveLimiter) Observe(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if IsRateLimited(err) {
		l.successes = 0
		l.setRate(l.current * l.cfg.BackoffFactor)
		return
	}
	if err != nil {
		return
	}

	l.successes++
	if l.successes >= l.cfg.RecoveryWindow && l.current < l.cfg.BaseRate {
		l.successes = 0
		l.setRate(l.current * l.cfg.RecoveryFactor)
	}
}

// setRate must be called with mu held
func (l *AdaptiveLimiter) setRate(rps float64) {
	if rps < l.cfg.MinRate {
		rps = l.cfg.MinRate
	}
	if rps > l.cfg.BaseRate {
		rps = l.cfg.BaseRate
	}
	if rps == l.current {
		return
	}
	l.current = rps
	l.limiter.SetLimit(rate.Limit(rps))

	if l.cfg.OnChange != nil {
		l.cfg.OnChange(rps)
	}
}

// Rate returns the current rate in requests per second
func (l *AdaptiveLimiter) Rate() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}
