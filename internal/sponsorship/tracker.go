// Package sponsorship limits gas-sponsored mints per Farcaster user.
// A user may be sponsored at most MaxMintsPerUser times, not more than once
// per Cooldown, and the whole process grants at most DailyCap per Window.
// State is process-local and lost on restart.
package sponsorship

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/config"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/observability"
)

// FID is a Farcaster user id
type FID uint64

// Reason codes, used as metric labels
const (
	CodeEligible    = "eligible"
	CodeDailyCap    = "daily_cap"
	CodeLifetimeCap = "lifetime_cap"
	CodeCooldown    = "cooldown"
)

// Decision is the outcome of an eligibility check. A rejection is a normal
// result, not an error.
type Decision struct {
	Eligible         bool   `json:"eligible"`
	Code             string `json:"code"`
	Reason           string `json:"reason,omitempty"`
	RemainingMinutes int    `json:"remainingMinutes,omitempty"`
}

// Grant is a recorded sponsorship
type Grant struct {
	FID        FID       `json:"fid"`
	MintsUsed  int       `json:"mintsUsed"`
	GrantedAt  time.Time `json:"grantedAt"`
	DailyCount int       `json:"dailyCount"`
	MaxPerUser int       `json:"maxPerUser"`
	DailyLimit int       `json:"dailyLimit"`
}

// Stats is a read-only snapshot of one user's usage
type Stats struct {
	FID             FID        `json:"fid"`
	MintsUsed       int        `json:"mintsUsed"`
	MintsRemaining  int        `json:"mintsRemaining"`
	LastSponsoredAt *time.Time `json:"lastSponsoredAt,omitempty"`
	DailyUsed       int        `json:"dailyUsed"`
	DailyCap        int        `json:"dailyCap"`
}

// Publisher receives every grant for auditing
type Publisher interface {
	PublishGrant(ctx context.Context, grant Grant) error
}

type userRecord struct {
	mintsUsed       int
	lastSponsoredAt time.Time
}

// Tracker holds per-user and daily sponsorship counters
type Tracker struct {
	limits config.SponsorshipConfig

	mu         sync.Mutex
	users      map[FID]*userRecord
	dailyCount int
	lastReset  time.Time

	publisher Publisher
	logger    *observability.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

// TrackerConfig holds tracker dependencies
type TrackerConfig struct {
	Limits    config.SponsorshipConfig
	Publisher Publisher
	Logger    *observability.Logger
	Metrics   *observability.Metrics
	Now       func() time.Time
}

// DefaultLimits returns 3 mints per user, a 1 hour cooldown and 100 grants per 24 hours
func DefaultLimits() config.SponsorshipConfig {
	return config.SponsorshipConfig{
		MaxMintsPerUser: 3,
		Cooldown:        time.Hour,
		DailyCap:        100,
		Window:          24 * time.Hour,
	}
}

// NewTracker creates a tracker. Zero limits take their defaults.
func NewTracker(cfg TrackerConfig) *Tracker {
	def := DefaultLimits()
	if cfg.Limits.MaxMintsPerUser <= 0 {
		cfg.Limits.MaxMintsPerUser = def.MaxMintsPerUser
	}
	if cfg.Limits.Cooldown < 0 {
		cfg.Limits.Cooldown = def.Cooldown
	}
	if cfg.Limits.DailyCap <= 0 {
		cfg.Limits.DailyCap = def.DailyCap
	}
	if cfg.Limits.Window <= 0 {
		cfg.Limits.Window = def.Window
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewNopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewNopMetrics()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Tracker{
		limits:    cfg.Limits,
		users:     make(map[FID]*userRecord),
		lastReset: cfg.Now(),
		publisher: cfg.Publisher,
		logger:    cfg.Logger.Component("sponsorship"),
		metrics:   cfg.Metrics,
		now:       cfg.Now,
	}
}

// Limits returns the effective limits
func (t *Tracker) Limits() config.SponsorshipConfig {
	return t.limits
}

// CanSponsor reports whether fid may be sponsored now. The daily cap is
// checked first, then the lifetime cap, then the cooldown.
func (t *Tracker) CanSponsor(ctx context.Context, fid FID) Decision {
	t.mu.Lock()
	d := t.check(fid)
	t.mu.Unlock()

	t.metrics.RecordSponsorshipDecision(ctx, d.Eligible, d.Code)
	return d
}

// RecordSponsorship counts a grant for fid. It does not re-check
// eligibility; use TryGrant to check and record in one step.
func (t *Tracker) RecordSponsorship(ctx context.Context, fid FID) Grant {
	t.mu.Lock()
	grant := t.record(fid)
	t.mu.Unlock()

	t.publish(ctx, grant)
	return grant
}

// TryGrant checks eligibility and records the grant under one lock, so two
// concurrent requests cannot both take the last slot.
func (t *Tracker) TryGrant(ctx context.Context, fid FID) (Grant, Decision) {
	t.mu.Lock()
	d := t.check(fid)
	var grant Grant
	if d.Eligible {
		grant = t.record(fid)
	}
	t.mu.Unlock()

	t.metrics.RecordSponsorshipDecision(ctx, d.Eligible, d.Code)
	if d.Eligible {
		t.publish(ctx, grant)
	}
	return grant, d
}

// Stats returns fid's usage. It never creates state.
func (t *Tracker) Stats(fid FID) Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Stats{
		FID:            fid,
		MintsRemaining: t.limits.MaxMintsPerUser,
		DailyUsed:      t.dailyCount,
		DailyCap:       t.limits.DailyCap,
	}
	if t.now().Sub(t.lastReset) >= t.limits.Window {
		s.DailyUsed = 0
	}
	if r, ok := t.users[fid]; ok {
		s.MintsUsed = r.mintsUsed
		s.MintsRemaining = max(0, t.limits.MaxMintsPerUser-r.mintsUsed)
		last := r.lastSponsoredAt
		s.LastSponsoredAt = &last
	}
	return s
}

// rollWindow starts a new daily window once the current one has passed.
// Must be called with mu held.
func (t *Tracker) rollWindow(now time.Time) {
	if now.Sub(t.lastReset) >= t.limits.Window {
		t.dailyCount = 0
		t.lastReset = now
	}
}

// check must be called with mu held
func (t *Tracker) check(fid FID) Decision {
	now := t.now()
	t.rollWindow(now)

	if t.dailyCount >= t.limits.DailyCap {
		return Decision{Code: CodeDailyCap, Reason: "Daily sponsorship limit reached. Try again tomorrow!"}
	}

	r, ok := t.users[fid]
	if !ok {
		return Decision{Eligible: true, Code: CodeEligible}
	}

	if r.mintsUsed >= t.limits.MaxMintsPerUser {
		return Decision{
			Code:   CodeLifetimeCap,
			Reason: fmt.Sprintf("Maximum sponsored mints reached (%d)", t.limits.MaxMintsPerUser),
		}
	}

	if elapsed := now.Sub(r.lastSponsoredAt); elapsed < t.limits.Cooldown {
		minutes := int(math.Ceil((t.limits.Cooldown - elapsed).Minutes()))
		return Decision{
			Code:             CodeCooldown,
			Reason:           fmt.Sprintf("Please wait %d minutes before your next sponsored mint", minutes),
			RemainingMinutes: minutes,
		}
	}

	return Decision{Eligible: true, Code: CodeEligible}
}

// record must be called with mu held
func (t *Tracker) record(fid FID) Grant {
	now := t.now()
	t.rollWindow(now)
	r, ok := t.users[fid]
	if !ok {
		r = &userRecord{}
		t.users[fid] = r
	}
	r.mintsUsed++
	r.lastSponsoredAt = now
	t.dailyCount++

	return Grant{
		FID:        fid,
		MintsUsed:  r.mintsUsed,
		GrantedAt:  now.UTC(),
		DailyCount: t.dailyCount,
		MaxPerUser: t.limits.MaxMintsPerUser,
		DailyLimit: t.limits.DailyCap,
	}
}

func (t *Tracker) publish(ctx context.Context, grant Grant) {
	t.logger.LogInfo(ctx, "sponsorship granted",
		"fid", uint64(grant.FID),
		"mints_used", grant.MintsUsed,
		"daily_count", grant.DailyCount,
	)
	if t.publisher == nil {
		return
	}
	if err := t.publisher.PublishGrant(ctx, grant); err != nil {
		t.logger.LogWarn(ctx, "failed to publish sponsorship grant", "fid", uint64(grant.FID), "error", err.Error())
	}
}
