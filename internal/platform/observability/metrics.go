package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// MetricsOptions configures the metrics pipeline
type MetricsOptions struct {
	ServiceName  string
	Version      string
	Enabled      bool
	OTLPEndpoint string // optional host:port, exported alongside Prometheus
}

// Metrics holds all application metrics. A Metrics built with Enabled=false
// records into a noop meter, so every Record method is always safe to call.
type Metrics struct {
	meter    metric.Meter
	provider *sdkmetric.MeterProvider

	// Chain reads
	RPCCalls     metric.Int64Counter
	RPCDuration  metric.Float64Histogram
	RPCRateLimit metric.Float64Gauge
	RPCBatchSize metric.Int64Histogram
	GasPriceGwei metric.Float64Gauge

	// Caches
	CacheHits   metric.Int64Counter
	CacheMisses metric.Int64Counter

	// Aggregators
	AggregatorFallbacks metric.Int64Counter
	OperationDuration   metric.Float64Histogram

	// Sponsorship
	SponsorshipDecisions metric.Int64Counter

	// Circuit breaker metrics
	CircuitBreakerState metric.Int64Gauge

	// Error metrics
	Errors metric.Int64Counter
}

// NewMetrics creates a new Metrics instance
func NewMetrics(ctx context.Context, opts MetricsOptions) (*Metrics, error) {
	if !opts.Enabled {
		m := &Metrics{meter: noop.NewMeterProvider().Meter(opts.ServiceName)}
		if err := m.initMetrics(); err != nil {
			return nil, err
		}
		return m, nil
	}

	version := opts.Version
	if version == "" {
		version = "dev"
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(opts.ServiceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	providerOpts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExporter),
	}

	if opts.OTLPEndpoint != "" {
		otlpExporter, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(opts.OTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
		}
		providerOpts = append(providerOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(otlpExporter)))
	}

	provider := sdkmetric.NewMeterProvider(providerOpts...)
	otel.SetMeterProvider(provider)

	m := &Metrics{
		meter:    provider.Meter(opts.ServiceName),
		provider: provider,
	}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return m, nil
}

// NewNopMetrics returns a Metrics that records nothing
func NewNopMetrics() *Metrics {
	m, _ := NewMetrics(context.Background(), MetricsOptions{ServiceName: "nop"})
	return m
}

func (m *Metrics) initMetrics() error {
	var err error

	m.RPCCalls, err = m.meter.Int64Counter(
		"riddlen.rpc.calls",
		metric.WithDescription("Total contract read calls"),
	)
	if err != nil {
		return err
	}

	m.RPCDuration, err = m.meter.Float64Histogram(
		"riddlen.rpc.duration",
		metric.WithDescription("Contract read call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	m.RPCRateLimit, err = m.meter.Float64Gauge(
		"riddlen.rpc.rate_limit",
		metric.WithDescription("Current adaptive RPC rate limit in requests per second"),
	)
	if err != nil {
		return err
	}

	m.RPCBatchSize, err = m.meter.Int64Histogram(
		"riddlen.rpc.batch.size",
		metric.WithDescription("Number of calls per JSON-RPC batch"),
	)
	if err != nil {
		return err
	}

	m.GasPriceGwei, err = m.meter.Float64Gauge(
		"riddlen.gas.price",
		metric.WithDescription("Last observed network gas price"),
		metric.WithUnit("gwei"),
	)
	if err != nil {
		return err
	}

	m.CacheHits, err = m.meter.Int64Counter(
		"riddlen.cache.hits",
		metric.WithDescription("Total cache hits"),
	)
	if err != nil {
		return err
	}

	m.CacheMisses, err = m.meter.Int64Counter(
		"riddlen.cache.misses",
		metric.WithDescription("Total cache misses"),
	)
	if err != nil {
		return err
	}

	m.AggregatorFallbacks, err = m.meter.Int64Counter(
		"riddlen.aggregator.fallbacks",
		metric.WithDescription("Aggregator results replaced by fallback data"),
	)
	if err != nil {
		return err
	}

	m.OperationDuration, err = m.meter.Float64Histogram(
		"riddlen.operation.duration",
		metric.WithDescription("Measured operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	m.SponsorshipDecisions, err = m.meter.Int64Counter(
		"riddlen.sponsorship.decisions",
		metric.WithDescription("Sponsorship eligibility decisions"),
	)
	if err != nil {
		return err
	}

	m.CircuitBreakerState, err = m.meter.Int64Gauge(
		"riddlen.circuit_breaker.state",
		metric.WithDescription("Circuit breaker state (0=closed, 1=open, 2=half-open)"),
	)
	if err != nil {
		return err
	}

	m.Errors, err = m.meter.Int64Counter(
		"riddlen.errors",
		metric.WithDescription("Total errors by type"),
	)
	return err
}

// RecordRPCCall records a contract read
func (m *Metrics) RecordRPCCall(ctx context.Context, method string, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.Bool("success", success),
	)
	m.RPCCalls.Add(ctx, 1, attrs)
	m.RPCDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordRPCBatch records the size of a JSON-RPC batch
func (m *Metrics) RecordRPCBatch(ctx context.Context, size int) {
	m.RPCBatchSize.Record(ctx, int64(size))
}

// SetRPCRateLimit records the current adaptive limit
func (m *Metrics) SetRPCRateLimit(ctx context.Context, rps float64) {
	m.RPCRateLimit.Record(ctx, rps)
}

// SetGasPrice records the last observed gas price in gwei
func (m *Metrics) SetGasPrice(ctx context.Context, gwei float64) {
	m.GasPriceGwei.Record(ctx, gwei)
}

// RecordCacheHit records a cache hit
func (m *Metrics) RecordCacheHit(ctx context.Context, layer string) {
	m.CacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("layer", layer)))
}

// RecordCacheMiss records a cache miss
func (m *Metrics) RecordCacheMiss(ctx context.Context, layer string) {
	m.CacheMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("layer", layer)))
}

// RecordFallback records an aggregator serving fallback data
func (m *Metrics) RecordFallback(ctx context.Context, aggregator string) {
	m.AggregatorFallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("aggregator", aggregator)))
}

// RecordOperation records a measured operation
func (m *Metrics) RecordOperation(ctx context.Context, name string, success bool, duration time.Duration) {
	m.OperationDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(
		attribute.String("operation", name),
		attribute.Bool("success", success),
	))
}

// RecordSponsorshipDecision records a sponsorship check or grant outcome
func (m *Metrics) RecordSponsorshipDecision(ctx context.Context, eligible bool, reason string) {
	m.SponsorshipDecisions.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("eligible", eligible),
		attribute.String("reason", reason),
	))
}

// SetCircuitBreakerState sets circuit breaker state
// 0 = closed, 1 = open, 2 = half-open
func (m *Metrics) SetCircuitBreakerState(ctx context.Context, service string, state int64) {
	m.CircuitBreakerState.Record(ctx, state, metric.WithAttributes(attribute.String("service", service)))
}

// RecordError records an error
func (m *Metrics) RecordError(ctx context.Context, errorType string) {
	m.Errors.Add(ctx, 1, metric.WithAttributes(attribute.String("type", errorType)))
}

// Handler returns the HTTP handler for Prometheus metrics
func (m *Metrics) Handler() http.Handler {
	if m.provider == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("metrics disabled"))
		})
	}
	// The OpenTelemetry Prometheus exporter registers with the default registry
	return promhttp.Handler()
}

// Shutdown flushes and stops the meter provider
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
