package api

import (
	"context"
	"encoding/json"
	"net/http"

	"pinwall/cfg"
	"pinwall/metrics"
	"pinwall/pkg/domain"
	"pinwall/svc/access"
	"pinwall/svc/lim"
	"pinwall/svc/track"
	"pinwall/svc/util"
)

type Mw struct {
	lim     *lim.Limiter
	access  *access.Registry
	tracker *track.Tracker
	cfg     *cfg.Cfg
}

func NewMw(limiter *lim.Limiter, a *access.Registry, t *track.Tracker, c *cfg.Cfg) *Mw {
	return &Mw{lim: limiter, access: a, tracker: t, cfg: c}
}

func (m *Mw) RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := util.NewRequestID()
		ctx := util.SetRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Mw) ContextTimeout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), m.cfg.ContextTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Mw) SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

func (m *Mw) Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				requestID := util.GetRequestID(r.Context())
				util.Error().
					Interface("panic", rvr).
					Str("request_id", requestID).
					Msg("panic recovered")
				if w.Header().Get("Content-Type") == "" {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error":      "internal server error",
						"request_id": requestID,
					})
				}
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// BanGate turns banned IPs away before anything else sees the request.
// Banned clients are not tracked in metrics.
func (m *Mw) BanGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := m.lim.RealIP(r)
		if m.access.IsBanned(ip) {
			writeErr(w, domain.ErrBanned, util.GetRequestID(r.Context()))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Track records the request against the client's metric record and keeps
// the online gauge current.
func (m *Mw) Track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := m.lim.RealIP(r)
		m.tracker.RecordRequest(ip, r.URL.Path)
		metrics.UsersOnline.Set(float64(m.tracker.CountOnline(m.cfg.OnlineWindow)))
		next.ServeHTTP(w, r)
	})
}

// RateLimit guards mutating endpoints with the per-IP token bucket.
func (m *Mw) RateLimit(endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := m.lim.RealIP(r)
			if !m.lim.Allow(ip) {
				metrics.RateLimitHits.WithLabelValues(endpoint).Inc()
				util.Warn().Str("ip", ip).Str("endpoint", endpoint).Msg("rate limit exceeded")
				writeErr(w, domain.ErrRateLimited, util.GetRequestID(r.Context()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminOnly requires the login cookie to carry an admin credential.
func (m *Mw) AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.access.IsAdmin(loginCredential(r)) {
			writeErr(w, domain.ErrUnauthorized, util.GetRequestID(r.Context()))
			return
		}
		next.ServeHTTP(w, r)
	})
}
