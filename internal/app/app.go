// Package app wires configuration into the running service graph shared by
// the HTTP server and the Lambda handler.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/RiddlenBaba/Riddlen-sub000/internal/api"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/chain"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/gas"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/notification"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/aws"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/cache"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/config"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/observability"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/riddlen"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/sponsorship"
)

// App is the assembled service
type App struct {
	Config  *config.Config
	Logger  *observability.Logger
	Metrics *observability.Metrics
	Perf    *observability.PerfMonitor

	Reader  *chain.Reader
	Service *riddlen.Service
	Tracker *sponsorship.Tracker
	Gas     *gas.Estimator
	Server  *api.Server

	tracing    *observability.TracerProvider
	statsCache cache.Cache
	now        func() time.Time
}

// New builds every component from cfg. serviceName and version label
// metrics and traces.
func New(ctx context.Context, cfg *config.Config, serviceName, version string) (*App, error) {
	a := &App{Config: cfg}

	a.Logger = observability.NewLogger(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format).
		Service(serviceName, version)

	metrics, err := observability.NewMetrics(ctx, observability.MetricsOptions{
		ServiceName:  serviceName,
		Version:      version,
		Enabled:      cfg.Observability.Metrics.Enabled,
		OTLPEndpoint: cfg.Observability.Metrics.OTLPEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}
	a.Metrics = metrics

	tracing, err := observability.NewTracerProvider(ctx, observability.TracingOptions{
		ServiceName: serviceName,
		Version:     version,
		Enabled:     cfg.Observability.Tracing.Enabled,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	a.tracing = tracing

	var perfOpts []observability.PerfOption
	if cfg.Observability.Performance.SlowThreshold > 0 {
		perfOpts = append(perfOpts, observability.WithSlowThreshold(cfg.Observability.Performance.SlowThreshold))
	}
	a.Perf = observability.NewPerfMonitor(a.Logger, a.Metrics, perfOpts...)

	a.Reader, err = chain.Dial(ctx, cfg.Chain, cfg.Contracts, chain.Options{
		Perf:    a.Perf,
		Logger:  a.Logger,
		Metrics: a.Metrics,
		Tracer:  tracing.Tracer("chain"),
	})
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	if err := a.buildDomain(ctx, tracing); err != nil {
		a.Close(ctx)
		return nil, err
	}

	return a, nil
}

func (a *App) buildDomain(ctx context.Context, tracing *observability.TracerProvider) error {
	cfg := a.Config

	candidates, err := riddlen.ParseCandidates(cfg.Leaderboard.Candidates)
	if err != nil {
		return err
	}

	agg := riddlen.NewAggregator(riddlen.AggregatorConfig{
		Chain:      a.Reader,
		Candidates: candidates,
		Registry:   cfg.Contracts.Registry(),
		Perf:       a.Perf,
		Logger:     a.Logger,
		Metrics:    a.Metrics,
	})
	a.Service, err = riddlen.NewService(riddlen.ServiceConfig{
		Aggregator: agg,
		Cache:      cfg.Cache,
		Metrics:    a.Metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create frame service: %w", err)
	}

	publisher, err := a.buildPublisher(ctx, tracing)
	if err != nil {
		return err
	}
	a.Tracker = sponsorship.NewTracker(sponsorship.TrackerConfig{
		Limits:    cfg.Sponsorship,
		Publisher: publisher,
		Logger:    a.Logger,
		Metrics:   a.Metrics,
	})

	a.Gas, err = gas.NewEstimator(gas.EstimatorConfig{
		Chain:   a.Reader,
		Gas:     cfg.Gas,
		Perf:    a.Perf,
		Logger:  a.Logger,
		Metrics: a.Metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create gas estimator: %w", err)
	}

	a.statsCache, err = a.buildStatsCache()
	if err != nil {
		return err
	}

	a.Server, err = api.NewServer(api.Config{
		Frames:        a.Service,
		Sponsor:       a.Tracker,
		Gas:           a.Gas,
		Ready:         a.Reader,
		Perf:          a.Perf,
		StatsCache:    a.statsCache,
		StatsCacheTTL: cfg.HTTP.StatsCacheTTL,
		FrameDedupTTL: cfg.HTTP.FrameDedupTTL,
		Logger:        a.Logger,
		Metrics:       a.Metrics,
		Tracer:        tracing.Tracer("api"),
	})
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}
	return nil
}

// buildPublisher returns the SNS publisher when a topic is configured and
// a logging publisher otherwise
func (a *App) buildPublisher(ctx context.Context, tracing *observability.TracerProvider) (sponsorship.Publisher, error) {
	cfg := a.Config
	if cfg.AWS.SNSTopicARN == "" {
		a.Logger.Info("SNS topic not configured, sponsorship grants will only be logged")
		return notification.NewNoOpPublisher(a.Logger), nil
	}

	awsCfg, err := aws.LoadAWSConfig(ctx, aws.Config{
		Region:   cfg.AWS.Region,
		Endpoint: cfg.AWS.Endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	snsClient := aws.NewSNSClient(aws.SNSClientConfig{
		AWSConfig: awsCfg,
		Logger:    a.Logger,
		Metrics:   a.Metrics,
	})
	publisher, err := notification.NewPublisher(notification.PublisherConfig{
		SNSClient: snsClient,
		TopicARN:  cfg.AWS.SNSTopicARN,
		Logger:    a.Logger,
		Tracer:    tracing.Tracer("notification"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create publisher: %w", err)
	}
	return publisher, nil
}

// buildStatsCache layers memory over Redis when Redis is enabled. Without
// Redis the memory layer is the only copy and keeps the full stats TTL.
func (a *App) buildStatsCache() (cache.Cache, error) {
	cfg := a.Config

	var memOpts []cache.MemoryOption
	if a.now != nil {
		memOpts = append(memOpts, cache.WithMemoryClock(a.now))
	}
	l1, err := cache.NewMemoryCache[[]byte](cfg.Cache.MemoryMaxSize, memOpts...)
	if err != nil {
		return nil, err
	}

	var l2 cache.Cache
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, "riddlen")
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis cache: %w", err)
		}
		l2 = redisCache
		a.Logger.Info("Redis response cache enabled", "address", cfg.Redis.Address)
	}

	l1MaxTTL := cfg.Cache.MemoryTTL
	if l2 == nil {
		l1MaxTTL = cfg.HTTP.StatsCacheTTL
	}

	return cache.NewLayeredCacheWithConfig(cache.LayeredCacheConfig{
		L1:       l1,
		L2:       l2,
		L1MaxTTL: l1MaxTTL,
		Recorder: a.Metrics,
	}), nil
}

// Warmup fills the shared datasets before traffic arrives. Failures are
// logged; the first request retries them.
func (a *App) Warmup(ctx context.Context) *cache.WarmupResults {
	wcfg := cache.DefaultWarmupConfig()
	if a.Config.Cache.WarmupTimeout > 0 {
		wcfg.Timeout = a.Config.Cache.WarmupTimeout
	}

	warmer := cache.NewWarmer(a.Logger, wcfg)
	warmer.RegisterProvider(a.Service.WarmupProviders()...)
	return warmer.Warmup(ctx)
}

// Close releases connections and flushes telemetry
func (a *App) Close(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if a.statsCache != nil {
		if err := a.statsCache.Close(); err != nil {
			a.Logger.LogWarn(shutdownCtx, "failed to close stats cache", "error", err.Error())
		}
	}
	if a.Reader != nil {
		a.Reader.Close()
	}
	if a.tracing != nil {
		if err := a.tracing.Shutdown(shutdownCtx); err != nil {
			a.Logger.LogWarn(shutdownCtx, "failed to flush traces", "error", err.Error())
		}
	}
	if a.Metrics != nil {
		if err := a.Metrics.Shutdown(shutdownCtx); err != nil {
			a.Logger.LogWarn(shutdownCtx, "failed to flush metrics", "error", err.Error())
		}
	}
}
