package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goccy/go-json"

	"github.com/RiddlenBaba/Riddlen-sub000/internal/gas"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/cache"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/observability"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/resilience"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/riddlen"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/sponsorship"
)

type fakeFrames struct {
	mu             sync.Mutex
	ecosystemCalls int
	riddleCalls    int
	fallback       bool
	lastProfile    common.Address
}

func (f *fakeFrames) Riddle(context.Context) riddlen.RiddleView {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.riddleCalls++
	v := riddlen.FallbackRiddle()
	v.RiddleID = f.riddleCalls
	return v
}

func (f *fakeFrames) Profile(_ context.Context, addr common.Address) riddlen.UserProfileView {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastProfile = addr
	v := riddlen.FallbackProfile(addr)
	v.Rank = 4
	return v
}

func (f *fakeFrames) Leaderboard(context.Context) []riddlen.LeaderboardEntry {
	return []riddlen.LeaderboardEntry{
		{Rank: 1, AddressShort: "0xcccc...cccc", ScoreFormatted: "200", Tier: riddlen.TierOracle},
	}
}

func (f *fakeFrames) Ecosystem(context.Context) riddlen.EcosystemStatsView {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ecosystemCalls++
	if f.fallback {
		return riddlen.FallbackEcosystem()
	}
	v := riddlen.FallbackEcosystem()
	v.Fallback = false
	v.RDLN.Burned = "200,000"
	return v
}

func (f *fakeFrames) ContractInfo(context.Context) []riddlen.ContractInfoView {
	return []riddlen.ContractInfoView{{Key: "RDLN", Symbol: "RDLN", Source: "config"}}
}

type fakeGas struct{}

func (fakeGas) EstimateMint(context.Context) gas.Estimate {
	return gas.Estimate{GasUnits: 150_000, GasPriceGwei: "30", CostNative: "0.0045", NativeSymbol: "POL", CostUSD: "$0.0023", IsEstimate: true}
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) (uint64, error) { return 4_200_000, p.err }

type testEnv struct {
	frames  *fakeFrames
	tracker *sponsorship.Tracker
	perf    *observability.PerfMonitor
	handler http.Handler
}

func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()
	env := &testEnv{
		frames:  &fakeFrames{},
		tracker: sponsorship.NewTracker(sponsorship.TrackerConfig{Limits: sponsorship.DefaultLimits()}),
		perf:    observability.NewPerfMonitor(nil, nil),
	}
	cfg := Config{
		Frames:  env.frames,
		Sponsor: env.tracker,
		Gas:     fakeGas{},
		Ready:   fakePinger{},
		Perf:    env.perf,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	srv, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	env.handler = srv.Router()
	return env
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestStats_CachedWithHeaders(t *testing.T) {
	env := newTestEnv(t)

	first := env.do(http.MethodGet, "/api/stats", "")
	if first.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", first.Code)
	}
	if got := first.Header().Get("Cache-Control"); got != "public, s-maxage=120" {
		t.Errorf("unexpected Cache-Control %q", got)
	}
	if first.Header().Get("X-Cache") != "MISS" {
		t.Error("Expected first request to miss")
	}
	stats := decode[riddlen.EcosystemStatsView](t, first)
	if stats.RDLN.Burned != "200,000" {
		t.Errorf("unexpected body: %+v", stats)
	}

	second := env.do(http.MethodGet, "/api/stats", "")
	if second.Header().Get("X-Cache") != "HIT" || second.Body.String() != first.Body.String() {
		t.Error("Expected identical cached response")
	}
	if env.frames.ecosystemCalls != 1 {
		t.Errorf("Expected 1 aggregator call, got %d", env.frames.ecosystemCalls)
	}

	t.Log("✓ Stats response cached at the HTTP layer")
}

func TestStats_FallbackNotCached(t *testing.T) {
	env := newTestEnv(t)
	env.frames.fallback = true

	env.do(http.MethodGet, "/api/stats", "")
	rec := env.do(http.MethodGet, "/api/stats", "")

	if rec.Header().Get("X-Cache") != "MISS" || env.frames.ecosystemCalls != 2 {
		t.Errorf("Expected fallback to be recomputed, calls=%d", env.frames.ecosystemCalls)
	}
	if !decode[riddlen.EcosystemStatsView](t, rec).Fallback {
		t.Error("Expected fallback flag in body")
	}
}

func TestStats_ExpiresAfterTTL(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	l1, err := cache.NewMemoryCache[[]byte](4, cache.WithMemoryClock(func() time.Time { return now }))
	if err != nil {
		t.Fatal(err)
	}
	env := newTestEnv(t, func(c *Config) {
		c.StatsCache = cache.NewLayeredCacheWithConfig(cache.LayeredCacheConfig{L1: l1, L1MaxTTL: DefaultStatsCacheTTL})
	})

	env.do(http.MethodGet, "/api/stats", "")
	now = now.Add(119 * time.Second)
	env.do(http.MethodGet, "/api/stats", "")
	if env.frames.ecosystemCalls != 1 {
		t.Fatalf("Expected cached within 120s, got %d calls", env.frames.ecosystemCalls)
	}

	now = now.Add(2 * time.Second)
	env.do(http.MethodGet, "/api/stats", "")
	if env.frames.ecosystemCalls != 2 {
		t.Errorf("Expected refresh after 120s, got %d calls", env.frames.ecosystemCalls)
	}
}

func TestProfile(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/frames/profile/0xaaaa00000000000000000000000000000000aaaa", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	profile := decode[riddlen.UserProfileView](t, rec)
	if profile.AddressShort != "0xaaaa...aaaa" || profile.Rank != 4 {
		t.Errorf("unexpected profile: %+v", profile)
	}

	for _, bad := range []string{"0x123", "not-an-address", "aaaa00000000000000000000000000000000aaaa"} {
		if rec := env.do(http.MethodGet, "/api/frames/profile/"+bad, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", bad, rec.Code)
		}
	}
}

func TestFrameViews(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		path string
		want string
	}{
		{"/api/frames/riddle", `"mintPriceDecimal":"1000"`},
		{"/api/frames/leaderboard", `"scoreFormatted":"200"`},
		{"/api/contracts", `"source":"config"`},
		{"/api/gas/mint", `"isEstimate":true`},
		{"/health", `"status":"ok"`},
		{"/ready", `"block":4200000`},
	}
	for _, tt := range tests {
		rec := env.do(http.MethodGet, tt.path, "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", tt.path, rec.Code)
			continue
		}
		if !strings.Contains(rec.Body.String(), tt.want) {
			t.Errorf("%s: body %s missing %s", tt.path, rec.Body.String(), tt.want)
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
			t.Errorf("%s: unexpected content type %q", tt.path, ct)
		}
	}

	if rec := env.do(http.MethodGet, "/api/frames/leaderboard", ""); strings.Contains(rec.Body.String(), `"address"`) {
		t.Error("Full address must not be serialized on the leaderboard")
	}
}

func TestReady_Unavailable(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Ready = fakePinger{err: errors.New("dial tcp: connection refused")} })

	if rec := env.do(http.MethodGet, "/ready", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", rec.Code)
	}
}

type breakerPinger struct {
	fakePinger
	state resilience.State
}

func (p breakerPinger) BreakerState() resilience.State { return p.state }

func TestReady_CircuitState(t *testing.T) {
	tests := []struct {
		name  string
		state resilience.State
		want  int
	}{
		{"closed", resilience.StateClosed, http.StatusOK},
		{"half-open probes", resilience.StateHalfOpen, http.StatusOK},
		{"open", resilience.StateOpen, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, func(c *Config) { c.Ready = breakerPinger{state: tt.state} })

			rec := env.do(http.MethodGet, "/ready", "")
			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
			if tt.state == resilience.StateOpen && !strings.Contains(rec.Body.String(), `"circuit":"open"`) {
				t.Errorf("Expected circuit state in body, got %s", rec.Body.String())
			}
		})
	}

	t.Log("✓ readiness fails while the RPC circuit is open")
}

func TestFramePostDedup(t *testing.T) {
	env := newTestEnv(t)
	body := `{"untrustedData":{"fid":77,"buttonIndex":1}}`

	first := env.do(http.MethodPost, "/api/frames/riddle", body)
	second := env.do(http.MethodPost, "/api/frames/riddle", body)

	if env.frames.riddleCalls != 1 {
		t.Errorf("Expected duplicate post to be replayed, got %d calls", env.frames.riddleCalls)
	}
	if second.Header().Get("X-Frame-Replay") != "true" || second.Body.String() != first.Body.String() {
		t.Error("Expected replayed response")
	}

	// Another user is not affected
	env.do(http.MethodPost, "/api/frames/riddle", `{"untrustedData":{"fid":78}}`)
	if env.frames.riddleCalls != 2 {
		t.Errorf("Expected a different fid to be served fresh, got %d calls", env.frames.riddleCalls)
	}

	// GETs are never de-duplicated
	env.do(http.MethodGet, "/api/frames/riddle", "")
	env.do(http.MethodGet, "/api/frames/riddle", "")
	if env.frames.riddleCalls != 4 {
		t.Errorf("Expected GETs served fresh, got %d calls", env.frames.riddleCalls)
	}

	t.Log("✓ Frame double-posts replayed within the dedup window")
}

func TestSponsorshipGrant(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/sponsorship/42/grant", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[grantResponse](t, rec)
	if !resp.Granted || resp.Grant == nil || resp.Grant.MintsUsed != 1 {
		t.Errorf("unexpected grant response: %+v", resp)
	}

	// A double post is replayed rather than re-evaluated
	if rec := env.do(http.MethodPost, "/api/sponsorship/42/grant", ""); rec.Code != http.StatusOK {
		t.Errorf("Expected replayed 200, got %d", rec.Code)
	}
	if s := env.tracker.Stats(42); s.MintsUsed != 1 {
		t.Errorf("Expected a single recorded grant, got %d", s.MintsUsed)
	}

	status := env.do(http.MethodGet, "/api/sponsorship/42", "")
	st := decode[sponsorshipStatus](t, status)
	if st.Stats.MintsUsed != 1 || st.Decision.Eligible || st.Decision.Code != sponsorship.CodeCooldown {
		t.Errorf("unexpected status: %+v", st)
	}
}

func TestSponsorshipGrant_Rejected(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.FrameDedupTTL = time.Nanosecond })

	env.do(http.MethodPost, "/api/sponsorship/9/grant", "")
	time.Sleep(time.Millisecond)
	rec := env.do(http.MethodPost, "/api/sponsorship/9/grant", "")

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d", rec.Code)
	}
	resp := decode[grantResponse](t, rec)
	if resp.Granted || !strings.Contains(resp.Decision.Reason, "minutes") {
		t.Errorf("unexpected rejection: %+v", resp)
	}
}

func TestSponsorship_InvalidFID(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(http.MethodGet, "/api/sponsorship/0", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for fid 0, got %d", rec.Code)
	}
	if rec := env.do(http.MethodGet, "/api/sponsorship/abc", ""); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for non-numeric fid, got %d", rec.Code)
	}
}

func TestPerf(t *testing.T) {
	env := newTestEnv(t)
	_, _ = observability.Measure(context.Background(), env.perf, "chain.rdln.totalSupply", func(context.Context) (int, error) {
		return 1, nil
	})

	rec := env.do(http.MethodGet, "/api/perf", "")
	resp := decode[struct {
		Operations []perfOperation `json:"operations"`
	}](t, rec)
	if len(resp.Operations) != 1 || resp.Operations[0].Name != "chain.rdln.totalSupply" || resp.Operations[0].Count != 1 {
		t.Errorf("unexpected perf summary: %+v", resp.Operations)
	}
}

func TestNewServer_Validation(t *testing.T) {
	if _, err := NewServer(Config{}); err == nil {
		t.Error("Expected error without frame service")
	}
}
