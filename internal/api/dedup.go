package api

import (
	"bytes"
	"io"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
)

const maxFrameBody = 64 << 10

type cachedResponse struct {
	status      int
	contentType string
	body        []byte
}

// frameAction is the part of a Farcaster frame POST body used for dedup
type frameAction struct {
	UntrustedData struct {
		FID         uint64 `json:"fid"`
		ButtonIndex int    `json:"buttonIndex"`
	} `json:"untrustedData"`
}

// dedupFrame replays the previous response when the same user posts to the
// same path again within the dedup TTL. Frame clients re-post on slow
// responses.
func (s *Server) dedupFrame(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxFrameBody))
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read body")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		key, ok := dedupKey(r, body)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		if prev, err := s.dedup.Get(ctx, key); err == nil {
			s.logger.LogDebug(ctx, "replaying duplicate frame post", "key", key)
			w.Header().Set("Content-Type", prev.contentType)
			w.Header().Set("X-Frame-Replay", "true")
			w.WriteHeader(prev.status)
			_, _ = w.Write(prev.body)
			return
		}

		rec := &bufferingRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		_ = s.dedup.Set(ctx, key, cachedResponse{
			status:      rec.status,
			contentType: rec.Header().Get("Content-Type"),
			body:        rec.buf.Bytes(),
		}, s.dedupTTL)
	})
}

// dedupKey identifies the user by the frame body's fid, falling back to an
// {fid} path variable. Requests with neither are not de-duplicated.
func dedupKey(r *http.Request, body []byte) (string, bool) {
	var fid uint64
	if len(body) > 0 {
		var action frameAction
		if err := json.Unmarshal(body, &action); err == nil {
			fid = action.UntrustedData.FID
		}
	}
	if fid == 0 {
		if v, err := strconv.ParseUint(mux.Vars(r)["fid"], 10, 64); err == nil {
			fid = v
		}
	}
	if fid == 0 {
		return "", false
	}
	return r.URL.Path + ":" + strconv.FormatUint(fid, 10), true
}

type bufferingRecorder struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (r *bufferingRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *bufferingRecorder) Write(p []byte) (int, error) {
	r.buf.Write(p)
	return r.ResponseWriter.Write(p)
}
