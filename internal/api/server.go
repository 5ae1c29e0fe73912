// Package api serves the frame views, sponsorship and gas endpoints as JSON.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"

	"github.com/RiddlenBaba/Riddlen-sub000/internal/gas"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/cache"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/observability"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/resilience"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/riddlen"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/sponsorship"
)

// Defaults for the HTTP-layer caches
const (
	DefaultStatsCacheTTL = 120 * time.Second
	DefaultFrameDedupTTL = 5 * time.Second

	statsCacheKey = "api:stats"
)

// FrameService supplies the cached frame views
type FrameService interface {
	Riddle(ctx context.Context) riddlen.RiddleView
	Profile(ctx context.Context, addr common.Address) riddlen.UserProfileView
	Leaderboard(ctx context.Context) []riddlen.LeaderboardEntry
	Ecosystem(ctx context.Context) riddlen.EcosystemStatsView
	ContractInfo(ctx context.Context) []riddlen.ContractInfoView
}

// Sponsor decides and records gas sponsorships
type Sponsor interface {
	CanSponsor(ctx context.Context, fid sponsorship.FID) sponsorship.Decision
	TryGrant(ctx context.Context, fid sponsorship.FID) (sponsorship.Grant, sponsorship.Decision)
	Stats(fid sponsorship.FID) sponsorship.Stats
}

// GasEstimator prices a mint
type GasEstimator interface {
	EstimateMint(ctx context.Context) gas.Estimate
}

// Pinger reports whether the RPC endpoint answers
type Pinger interface {
	Ping(ctx context.Context) (uint64, error)
}

// breakerReporter is implemented by pingers guarded by a circuit breaker
type breakerReporter interface {
	BreakerState() resilience.State
}

// Config holds the server's dependencies
type Config struct {
	Frames  FrameService
	Sponsor Sponsor
	Gas     GasEstimator
	Ready   Pinger
	Perf    *observability.PerfMonitor

	// StatsCache holds the rendered stats response, shared across replicas
	// when it has a Redis layer
	StatsCache    cache.Cache
	StatsCacheTTL time.Duration

	FrameDedupTTL time.Duration

	Logger  *observability.Logger
	Metrics *observability.Metrics
	Tracer  observability.Tracer
}

// Server holds the handlers' dependencies
type Server struct {
	frames  FrameService
	sponsor Sponsor
	gas     GasEstimator
	ready   Pinger
	perf    *observability.PerfMonitor

	stats    cache.Cache
	statsTTL time.Duration

	dedup    *cache.MemoryCache[cachedResponse]
	dedupTTL time.Duration

	logger  *observability.Logger
	metrics *observability.Metrics
	tracer  observability.Tracer
}

// NewServer validates cfg and fills defaults
func NewServer(cfg Config) (*Server, error) {
	if cfg.Frames == nil {
		return nil, fmt.Errorf("frame service is required")
	}
	if cfg.Sponsor == nil {
		return nil, fmt.Errorf("sponsorship tracker is required")
	}
	if cfg.Gas == nil {
		return nil, fmt.Errorf("gas estimator is required")
	}
	if cfg.StatsCacheTTL <= 0 {
		cfg.StatsCacheTTL = DefaultStatsCacheTTL
	}
	if cfg.FrameDedupTTL <= 0 {
		cfg.FrameDedupTTL = DefaultFrameDedupTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewNopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewNopMetrics()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NewNoopTracer()
	}
	if cfg.StatsCache == nil {
		l1, err := cache.NewMemoryCache[[]byte](16)
		if err != nil {
			return nil, err
		}
		cfg.StatsCache = cache.NewLayeredCache(l1, nil, cfg.Metrics)
	}

	dedup, err := cache.NewMemoryCache[cachedResponse](10_000)
	if err != nil {
		return nil, err
	}

	return &Server{
		frames:   cfg.Frames,
		sponsor:  cfg.Sponsor,
		gas:      cfg.Gas,
		ready:    cfg.Ready,
		perf:     cfg.Perf,
		stats:    cfg.StatsCache,
		statsTTL: cfg.StatsCacheTTL,
		dedup:    dedup,
		dedupTTL: cfg.FrameDedupTTL,
		logger:   cfg.Logger.Component("api"),
		metrics:  cfg.Metrics,
		tracer:   cfg.Tracer,
	}, nil
}

// Router builds the route table
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.instrument)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/contracts", s.handleContracts).Methods(http.MethodGet)
	api.HandleFunc("/gas/mint", s.handleGasMint).Methods(http.MethodGet)
	api.HandleFunc("/perf", s.handlePerf).Methods(http.MethodGet)

	frames := api.PathPrefix("/frames").Subrouter()
	frames.Handle("/riddle", s.dedupFrame(http.HandlerFunc(s.handleRiddle))).Methods(http.MethodGet, http.MethodPost)
	frames.Handle("/leaderboard", s.dedupFrame(http.HandlerFunc(s.handleLeaderboard))).Methods(http.MethodGet, http.MethodPost)
	frames.Handle("/profile/{address}", s.dedupFrame(http.HandlerFunc(s.handleProfile))).Methods(http.MethodGet, http.MethodPost)

	api.HandleFunc("/sponsorship/{fid:[0-9]+}", s.handleSponsorshipStatus).Methods(http.MethodGet)
	api.Handle("/sponsorship/{fid:[0-9]+}/grant", s.dedupFrame(http.HandlerFunc(s.handleSponsorshipGrant))).Methods(http.MethodPost)

	return r
}

// instrument traces every request and records its duration under the
// route template
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		ctx, span := s.tracer.StartSpan(r.Context(), "HTTP "+r.Method+" "+route,
			attribute.String("http.method", r.Method),
			attribute.String("http.route", route),
		)
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))
		duration := time.Since(start)

		span.SetAttributes(attribute.Int("http.status_code", rec.status))
		s.metrics.RecordOperation(ctx, "http "+route, rec.status < http.StatusInternalServerError, duration)
		s.logger.LogDebug(ctx, "request served",
			"method", r.Method,
			"route", route,
			"status", rec.status,
			"duration_ms", duration.Milliseconds(),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
