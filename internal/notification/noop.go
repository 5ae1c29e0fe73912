package notification

import (
	"context"

	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/observability"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/sponsorship"
)

// NoOpPublisher logs grants instead of publishing them.
// Use this when no SNS topic is configured.
type NoOpPublisher struct {
	logger *observability.Logger
}

// NewNoOpPublisher creates a logging-only publisher
func NewNoOpPublisher(logger *observability.Logger) *NoOpPublisher {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &NoOpPublisher{logger: logger}
}

// PublishGrant implements sponsorship.Publisher
func (p *NoOpPublisher) PublishGrant(ctx context.Context, grant sponsorship.Grant) error {
	p.logger.LogInfo(ctx, "sponsorship grant (SNS disabled)",
		"fid", uint64(grant.FID),
		"mints_used", grant.MintsUsed,
		"granted_at", grant.GrantedAt,
	)
	return nil
}

// CircuitBreakerState returns "closed" since there's no circuit breaker.
func (p *NoOpPublisher) CircuitBreakerState() string {
	return "closed"
}
