package notification

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/aws"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/observability"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/sponsorship"
)

// Publisher sends sponsorship grants to an SNS topic for auditing
type Publisher struct {
	snsClient *aws.SNSClient
	topicARN  string
	logger    *observability.Logger
	tracer    observability.Tracer
}

// PublisherConfig holds publisher configuration
type PublisherConfig struct {
	SNSClient *aws.SNSClient
	TopicARN  string
	Logger    *observability.Logger
	Tracer    observability.Tracer
}

// NewPublisher creates a grant publisher
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if cfg.SNSClient == nil {
		return nil, fmt.Errorf("SNS client is required")
	}
	if cfg.TopicARN == "" {
		return nil, fmt.Errorf("SNS topic ARN is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewNopLogger()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NewNoopTracer()
	}

	return &Publisher{
		snsClient: cfg.SNSClient,
		topicARN:  cfg.TopicARN,
		logger:    cfg.Logger,
		tracer:    cfg.Tracer,
	}, nil
}

// PublishGrant implements sponsorship.Publisher
func (p *Publisher) PublishGrant(ctx context.Context, grant sponsorship.Grant) error {
	ctx, span := p.tracer.StartSpan(ctx, "Publisher.PublishGrant",
		attribute.Int64("fid", int64(grant.FID)),
		attribute.Int("mints_used", grant.MintsUsed),
	)
	defer span.End()

	// Attributes allow subscription filter policies on the topic
	attributes := map[string]string{
		"event":     "sponsorship_granted",
		"fid":       strconv.FormatUint(uint64(grant.FID), 10),
		"exhausted": strconv.FormatBool(grant.MintsUsed >= grant.MaxPerUser),
	}

	if err := p.snsClient.Publish(ctx, p.topicARN, grant, attributes); err != nil {
		span.NoticeError(err)
		return fmt.Errorf("publish grant for fid %d: %w", grant.FID, err)
	}

	p.logger.LogDebug(ctx, "published sponsorship grant",
		"fid", uint64(grant.FID),
		"topic_arn", p.topicARN,
	)
	return nil
}

// CircuitBreakerState returns the SNS circuit breaker state
func (p *Publisher) CircuitBreakerState() string {
	return p.snsClient.CircuitBreakerState().String()
}
