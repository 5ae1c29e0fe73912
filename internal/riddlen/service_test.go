package riddlen

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/RiddlenBaba/Riddlen-sub000/internal/chain"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/config"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testCacheConfig() config.CacheConfig {
	return config.CacheConfig{
		RiddleTTL:       30 * time.Second,
		EcosystemTTL:    60 * time.Second,
		LeaderboardTTL:  120 * time.Second,
		ContractInfoTTL: time.Hour,
		ProfileTTL:      60 * time.Second,
		MaxProfiles:     100,
		SingleFlight:    true,
	}
}

func newTestService(t *testing.T, f *fakeReader, candidates ...StaticCandidates) (*Service, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	var cands StaticCandidates
	if len(candidates) > 0 {
		cands = candidates[0]
	}
	agg := NewAggregator(AggregatorConfig{Chain: f, Candidates: cands, Registry: testRegistry(), Now: clock.Now})
	svc, err := NewService(ServiceConfig{Aggregator: agg, Cache: testCacheConfig(), Now: clock.Now})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, clock
}

func TestService_RiddleCachedForTTL(t *testing.T) {
	f := newFakeReader()
	svc, clock := newTestService(t, f)
	ctx := context.Background()

	first := svc.Riddle(ctx)
	f.supplies[chain.NFT].SetInt64(6)

	clock.Advance(29 * time.Second)
	if got := svc.Riddle(ctx); got != first {
		t.Errorf("Expected cached view within TTL, got %+v", got)
	}
	if n := f.count("mintCost"); n != 1 {
		t.Errorf("Expected 1 chain read within TTL, got %d", n)
	}

	clock.Advance(2 * time.Second)
	if got := svc.Riddle(ctx); got.RiddleID != 6 {
		t.Errorf("Expected refreshed riddle 6 after TTL, got %d", got.RiddleID)
	}

	t.Log("✓ riddle view cached for its TTL")
}

func TestService_FallbackIsNotCached(t *testing.T) {
	f := newFakeReader()
	f.setFail("mintCost", true)
	svc, _ := newTestService(t, f)
	ctx := context.Background()

	if got := svc.Riddle(ctx); got != FallbackRiddle() {
		t.Fatalf("Expected fallback, got %+v", got)
	}

	f.setFail("mintCost", false)
	if got := svc.Riddle(ctx); got.RiddleID != 5 {
		t.Errorf("Expected live data once the chain recovers, got %+v", got)
	}
	if n := f.count("mintCost"); n != 2 {
		t.Errorf("Expected the second request to read again, got %d reads", n)
	}
}

func TestService_EcosystemFallback(t *testing.T) {
	f := newFakeReader()
	f.setFail("totalSupply:RDLN", true)
	svc, _ := newTestService(t, f)

	got := svc.Ecosystem(context.Background())
	if !got.Fallback || got.RDLN.TotalSupply != "1,000,000,000" {
		t.Errorf("Expected fallback snapshot, got %+v", got)
	}
}

func TestService_ProfileRank(t *testing.T) {
	f := newFakeReader()
	f.balances[chain.RON][addrA] = ether(100)
	f.balances[chain.RON][addrB] = ether(300)
	svc, _ := newTestService(t, f, StaticCandidates{addrA, addrB})
	ctx := context.Background()

	if got := svc.Profile(ctx, addrA); got.Rank != 2 {
		t.Errorf("Expected rank 2 for A, got %d", got.Rank)
	}
	if got := svc.Profile(ctx, addrB); got.Rank != 1 {
		t.Errorf("Expected rank 1 for B, got %d", got.Rank)
	}
	if got := svc.Profile(ctx, addrC); got.Rank != 0 {
		t.Errorf("Expected rank 0 for unlisted C, got %d", got.Rank)
	}

	// Profile reads are cached per address
	_ = svc.Profile(ctx, addrA)
	if n := f.count("userTier"); n != 3 {
		t.Errorf("Expected 3 tier reads for 3 distinct addresses, got %d", n)
	}
	if n := f.count("holders"); n != 1 {
		t.Errorf("Expected leaderboard computed once, got %d", n)
	}
}

func TestService_ProfileFallbackKeepsAddress(t *testing.T) {
	f := newFakeReader()
	f.setFail("balanceOf:RON", true)
	svc, _ := newTestService(t, f)

	got := svc.Profile(context.Background(), addrC)
	if got.AddressShort != "0xcccc...cccc" || got.Tier != TierNewcomer || got.Rank != 0 {
		t.Errorf("unexpected fallback profile: %+v", got)
	}
}

func TestService_ContractInfoFallsBackToConfig(t *testing.T) {
	f := newFakeReader()
	svc, _ := newTestService(t, f)

	got := svc.ContractInfo(context.Background())
	if len(got) != 3 {
		t.Fatalf("Expected 3 contracts, got %d", len(got))
	}
	for _, c := range got {
		if c.Source != "config" {
			t.Errorf("Expected config-sourced %s, got %s", c.Key, c.Source)
		}
	}
}

func TestService_WarmupAndInvalidate(t *testing.T) {
	f := newFakeReader()
	f.meta[chain.RDLN] = chain.TokenMetadata{Name: "Riddlen", Symbol: "RDLN", Decimals: 18}
	svc, _ := newTestService(t, f)
	ctx := context.Background()

	providers := svc.WarmupProviders()
	want := []string{"riddle", "ecosystem", "leaderboard", "contract_info"}
	if len(providers) != len(want) {
		t.Fatalf("Expected %d providers, got %d", len(want), len(providers))
	}
	for i, p := range providers {
		if p.Name() != want[i] {
			t.Errorf("provider %d: got %s, want %s", i, p.Name(), want[i])
		}
		if err := p.Warmup(ctx); err != nil {
			t.Errorf("warmup %s: %v", p.Name(), err)
		}
	}

	_ = svc.Riddle(ctx)
	if n := f.count("mintCost"); n != 1 {
		t.Errorf("Expected warmed riddle to be served from cache, got %d reads", n)
	}

	svc.InvalidateAll()
	_ = svc.Riddle(ctx)
	if n := f.count("mintCost"); n != 2 {
		t.Errorf("Expected a fresh read after invalidation, got %d reads", n)
	}
}

func TestNewService_RequiresAggregator(t *testing.T) {
	if _, err := NewService(ServiceConfig{}); err == nil {
		t.Error("Expected error without aggregator")
	}
}
