package resilience

import (
	"context"
	"errors"
	"testing"
)

func TestAdaptiveLimiter_BacksOffAndRecovers(t *testing.T) {
	var changes []float64
	l := NewAdaptiveLimiter(AdaptiveLimiterConfig{
		BaseRate:       20,
		MinRate:        2,
		Burst:          5,
		RecoveryWindow: 3,
		RecoveryFactor: 2,
		OnChange:       func(rps float64) { changes = append(changes, rps) },
	})

	rateLimited := errors.New("429 Too Many Requests")

	l.Observe(rateLimited)
	if l.Rate() != 10 {
		t.Fatalf("expected rate halved to 10, got %v", l.Rate())
	}
	l.Observe(rateLimited)
	l.Observe(rateLimited)
	l.Observe(rateLimited)
	if l.Rate() != 2 {
		t.Fatalf("expected rate floored at 2, got %v", l.Rate())
	}

	// Other errors do not move the rate
	l.Observe(errors.New("execution reverted"))
	if l.Rate() != 2 {
		t.Fatalf("non rate-limit error changed rate to %v", l.Rate())
	}

	for i := 0; i < 3; i++ {
		l.Observe(nil)
	}
	if l.Rate() != 4 {
		t.Fatalf("expected recovery to 4 after 3 successes, got %v", l.Rate())
	}

	for i := 0; i < 30; i++ {
		l.Observe(nil)
	}
	if l.Rate() != 20 {
		t.Fatalf("expected recovery capped at base rate 20, got %v", l.Rate())
	}

	if len(changes) == 0 || changes[len(changes)-1] != 20 {
		t.Errorf("OnChange should report the latest rate, got %v", changes)
	}

	t.Log("✓ Adaptive limiter backs off on 429 and recovers")
}

func TestAdaptiveLimiter_WaitRespectsContext(t *testing.T) {
	l := NewAdaptiveLimiter(AdaptiveLimiterConfig{BaseRate: 0.001, MinRate: 0.001, Burst: 1})
	ctx := context.Background()

	if err := l.Wait(ctx); err != nil {
		t.Fatalf("first token should be available, got %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := l.Wait(cancelled); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
