package riddlen

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/cache"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/config"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/observability"
)

// Service owns one cache entry per dataset and is shared by every request.
// Its methods never fail: an uncached fallback is returned when a refresh
// fails, so the next request tries the chain again.
type Service struct {
	agg *Aggregator

	riddle      *cache.Entry[RiddleView]
	ecosystem   *cache.Entry[EcosystemStatsView]
	leaderboard *cache.Entry[[]LeaderboardEntry]
	contracts   *cache.Entry[[]ContractInfoView]
	profiles    *cache.Group[UserProfileView]
}

// ServiceConfig holds the service's dependencies and dataset TTLs
type ServiceConfig struct {
	Aggregator *Aggregator
	Cache      config.CacheConfig

	// Metrics receives per-dataset hit and miss counts
	Metrics *observability.Metrics

	// Now overrides the cache clock in tests
	Now func() time.Time
}

// NewService creates the dataset caches around agg
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Aggregator == nil {
		return nil, fmt.Errorf("aggregator is required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewNopMetrics()
	}

	opts := []cache.Option{
		cache.WithSingleFlight(cfg.Cache.SingleFlight),
		cache.WithRecorder(cfg.Metrics),
	}
	if cfg.Now != nil {
		opts = append(opts, cache.WithClock(cfg.Now))
	}

	agg := cfg.Aggregator
	s := &Service{
		agg: agg,

		riddle:      cache.NewEntry("riddle", cfg.Cache.RiddleTTL, agg.fetchRiddle, opts...),
		ecosystem:   cache.NewEntry("ecosystem", cfg.Cache.EcosystemTTL, agg.fetchEcosystem, opts...),
		leaderboard: cache.NewEntry("leaderboard", cfg.Cache.LeaderboardTTL, agg.fetchLeaderboard, opts...),
		contracts:   cache.NewEntry("contract_info", cfg.Cache.ContractInfoTTL, agg.fetchContractInfo, opts...),
	}

	profiles, err := cache.NewGroup("profile", cfg.Cache.ProfileTTL, cfg.Cache.MaxProfiles,
		func(key string) cache.Producer[UserProfileView] {
			addr := common.HexToAddress(key)
			return func(ctx context.Context) (UserProfileView, error) {
				return agg.fetchProfile(ctx, addr)
			}
		}, opts...)
	if err != nil {
		return nil, err
	}
	s.profiles = profiles

	return s, nil
}

// Riddle returns the cached riddle view
func (s *Service) Riddle(ctx context.Context) RiddleView {
	v, err := s.riddle.Get(ctx)
	if err != nil {
		s.agg.fallback(ctx, "riddle", err)
		return FallbackRiddle()
	}
	return v
}

// Ecosystem returns the cached ecosystem stats
func (s *Service) Ecosystem(ctx context.Context) EcosystemStatsView {
	v, err := s.ecosystem.Get(ctx)
	if err != nil {
		s.agg.fallback(ctx, "ecosystem", err)
		return FallbackEcosystem()
	}
	return v
}

// Leaderboard returns the cached leaderboard. The slice must not be modified.
func (s *Service) Leaderboard(ctx context.Context) []LeaderboardEntry {
	v, err := s.leaderboard.Get(ctx)
	if err != nil {
		s.agg.fallback(ctx, "leaderboard", err)
		return []LeaderboardEntry{}
	}
	return v
}

// ContractInfo returns the cached contract metadata
func (s *Service) ContractInfo(ctx context.Context) []ContractInfoView {
	v, err := s.contracts.Get(ctx)
	if err != nil {
		return s.agg.configContractInfo()
	}
	return v
}

// Profile returns addr's cached profile with its current leaderboard rank
func (s *Service) Profile(ctx context.Context, addr common.Address) UserProfileView {
	v, err := s.profiles.Get(ctx, strings.ToLower(addr.Hex()))
	if err != nil {
		s.agg.fallback(ctx, "profile", err)
		v = FallbackProfile(addr)
	}
	v.Rank = RankOf(s.Leaderboard(ctx), addr)
	return v
}

// RankOf returns addr's rank on the board, or 0 when it is not listed
func RankOf(board []LeaderboardEntry, addr common.Address) int {
	for _, e := range board {
		if e.Address == addr {
			return e.Rank
		}
	}
	return 0
}

// WarmupProviders returns the shared datasets for the startup warmer
func (s *Service) WarmupProviders() []cache.WarmupProvider {
	return []cache.WarmupProvider{s.riddle, s.ecosystem, s.leaderboard, s.contracts}
}

// InvalidateAll drops every cached dataset
func (s *Service) InvalidateAll() {
	s.riddle.Invalidate()
	s.ecosystem.Invalidate()
	s.leaderboard.Invalidate()
	s.contracts.Invalidate()
}
