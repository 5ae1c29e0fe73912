package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/cache"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/config"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/resilience"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/sponsorship"
)

const readyTimeout = 3 * time.Second

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
		return
	}
	writeRaw(w, status, data)
}

func writeRaw(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	// An open breaker fails every read, so the pod is not ready even if the
	// endpoint answers a ping.
	if b, ok := s.ready.(breakerReporter); ok && b.BreakerState() == resilience.StateOpen {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "circuit": b.BreakerState().String()})
		return
	}

	block, err := s.ready.Ping(ctx)
	if err != nil {
		s.logger.LogWarn(ctx, "readiness check failed", "error", err.Error())
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "block": block})
}

// StatsJSON returns the rendered ecosystem stats, from the HTTP-layer cache
// when possible. Fallback snapshots are never cached.
func (s *Server) StatsJSON(ctx context.Context) (data []byte, hit bool, err error) {
	data, err = s.stats.Get(ctx, statsCacheKey)
	if err == nil {
		return data, true, nil
	}
	if !errors.Is(err, cache.ErrNotFound) {
		s.logger.LogWarn(ctx, "stats cache read failed", "error", err.Error())
	}

	view := s.frames.Ecosystem(ctx)
	data, err = json.Marshal(view)
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode stats: %w", err)
	}
	if !view.Fallback {
		if err := s.stats.Set(ctx, statsCacheKey, data, s.statsTTL); err != nil {
			s.logger.LogWarn(ctx, "stats cache write failed", "error", err.Error())
		}
	}
	return data, false, nil
}

// StatsCacheControl is the Cache-Control value sent with the stats response
func (s *Server) StatsCacheControl() string {
	return fmt.Sprintf("public, s-maxage=%d", int(s.statsTTL.Seconds()))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	data, hit, err := s.StatsJSON(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Cache-Control", s.StatsCacheControl())
	if hit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	writeRaw(w, http.StatusOK, data)
}

func (s *Server) handleContracts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.frames.ContractInfo(r.Context()))
}

func (s *Server) handleRiddle(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.frames.Riddle(r.Context()))
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.frames.Leaderboard(r.Context()))
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["address"]
	if !config.IsAddress(raw) {
		writeError(w, http.StatusBadRequest, "invalid address: "+raw)
		return
	}
	writeJSON(w, http.StatusOK, s.frames.Profile(r.Context(), common.HexToAddress(raw)))
}

func (s *Server) handleGasMint(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.gas.EstimateMint(r.Context()))
}

type perfOperation struct {
	Name      string  `json:"name"`
	Count     int     `json:"count"`
	AverageMs float64 `json:"averageMs"`
	MaxMs     float64 `json:"maxMs"`
}

func (s *Server) handlePerf(w http.ResponseWriter, r *http.Request) {
	ops := []perfOperation{}
	if s.perf != nil {
		for _, st := range s.perf.Summary() {
			ops = append(ops, perfOperation{
				Name:      st.Name,
				Count:     st.Count,
				AverageMs: float64(st.Average.Microseconds()) / 1000,
				MaxMs:     float64(st.Max.Microseconds()) / 1000,
			})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"operations": ops})
}

func parseFID(r *http.Request) (sponsorship.FID, error) {
	raw := mux.Vars(r)["fid"]
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid fid: %q", raw)
	}
	return sponsorship.FID(n), nil
}

type sponsorshipStatus struct {
	Stats    sponsorship.Stats    `json:"stats"`
	Decision sponsorship.Decision `json:"decision"`
}

func (s *Server) handleSponsorshipStatus(w http.ResponseWriter, r *http.Request) {
	fid, err := parseFID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sponsorshipStatus{
		Stats:    s.sponsor.Stats(fid),
		Decision: s.sponsor.CanSponsor(r.Context(), fid),
	})
}

type grantResponse struct {
	Granted  bool                 `json:"granted"`
	Grant    *sponsorship.Grant   `json:"grant,omitempty"`
	Decision sponsorship.Decision `json:"decision"`
}

func (s *Server) handleSponsorshipGrant(w http.ResponseWriter, r *http.Request) {
	fid, err := parseFID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	grant, decision := s.sponsor.TryGrant(r.Context(), fid)
	if !decision.Eligible {
		writeJSON(w, http.StatusTooManyRequests, grantResponse{Decision: decision})
		return
	}
	writeJSON(w, http.StatusOK, grantResponse{Granted: true, Grant: &grant, Decision: decision})
}
