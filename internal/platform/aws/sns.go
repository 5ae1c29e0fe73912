package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/goccy/go-json"

	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/observability"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/resilience"
)

// snsAPI is the subset of the SNS client used here
type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSClient wraps the AWS SNS client with a circuit breaker and retry
type SNSClient struct {
	client         snsAPI
	circuitBreaker *resilience.CircuitBreaker
	retryConfig    resilience.RetryConfig
	logger         *observability.Logger
	metrics        *observability.Metrics
}

// SNSClientConfig holds SNS client configuration
type SNSClientConfig struct {
	AWSConfig   aws.Config
	Logger      *observability.Logger
	Metrics     *observability.Metrics
	RetryConfig *resilience.RetryConfig

	// API replaces the SDK client (tests)
	API snsAPI
}

// NewSNSClient creates a new SNS client
func NewSNSClient(cfg SNSClientConfig) *SNSClient {
	if cfg.Logger == nil {
		cfg.Logger = observability.NewNopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewNopMetrics()
	}

	client := cfg.API
	if client == nil {
		client = sns.NewFromConfig(cfg.AWSConfig)
	}

	retryConfig := resilience.DefaultRetryConfig()
	if cfg.RetryConfig != nil {
		retryConfig = *cfg.RetryConfig
	}

	logger, metrics := cfg.Logger, cfg.Metrics
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             "sns",
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Info("SNS circuit breaker state changed", "from", from.String(), "to", to.String())
			metrics.SetCircuitBreakerState(context.Background(), name, int64(to))
		},
	})

	return &SNSClient{
		client:         client,
		circuitBreaker: breaker,
		retryConfig:    retryConfig,
		logger:         logger,
		metrics:        metrics,
	}
}

// Publish sends message as JSON to topicARN with string attributes
func (s *SNSClient) Publish(ctx context.Context, topicARN string, message any, attributes map[string]string) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	input := &sns.PublishInput{
		TopicArn:          aws.String(topicARN),
		Message:           aws.String(string(body)),
		MessageAttributes: make(map[string]types.MessageAttributeValue, len(attributes)),
	}
	for k, v := range attributes {
		input.MessageAttributes[k] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(v),
		}
	}

	start := time.Now()
	err = s.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
		_, err := resilience.Do(ctx, s.retryConfig, func(ctx context.Context) (*sns.PublishOutput, error) {
			return s.client.Publish(ctx, input)
		})
		return err
	})
	if err != nil {
		s.metrics.RecordError(ctx, "sns_publish")
		s.logger.LogError(ctx, "SNS publish failed", err,
			"topic_arn", topicARN,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return fmt.Errorf("SNS publish failed: %w", err)
	}

	return nil
}

// CircuitBreakerState returns current circuit breaker state
func (s *SNSClient) CircuitBreakerState() resilience.State {
	return s.circuitBreaker.State()
}
