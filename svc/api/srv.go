package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/hlog"

	"pinwall/cfg"
	"pinwall/metrics"
	"pinwall/svc/access"
	"pinwall/svc/auth"
	"pinwall/svc/ledger"
	"pinwall/svc/lim"
	"pinwall/svc/persist"
	"pinwall/svc/store"
	"pinwall/svc/track"
	"pinwall/svc/util"
)

type Server struct {
	router     *chi.Mux
	cfg        *cfg.Cfg
	httpServer *http.Server
}

type Deps struct {
	Cfg     *cfg.Cfg
	Ledger  *ledger.Ledger
	Store   *store.Store
	Access  *access.Registry
	Tracker *track.Tracker
	Hasher  *auth.Hasher
	Persist *persist.Manager
	Lim     *lim.Limiter
}

func NewServer(d Deps) *Server {
	r := chi.NewRouter()
	mw := NewMw(d.Lim, d.Access, d.Tracker, d.Cfg)
	hdl := &Hdl{
		cfg:     d.Cfg,
		ledger:  d.Ledger,
		store:   d.Store,
		access:  d.Access,
		tracker: d.Tracker,
		hasher:  d.Hasher,
		persist: d.Persist,
		lim:     d.Lim,
	}

	r.Group(func(r chi.Router) {
		r.Use(mw.Recoverer)
		r.Get("/health", hdl.Health)
		r.Handle("/metrics", promhttp.Handler())
	})

	r.Group(func(r chi.Router) {
		r.Use(mw.Recoverer)
		r.Use(mw.RequestID)
		r.Use(hlog.NewHandler(util.GetLogger()))
		r.Use(hlog.AccessHandler(func(req *http.Request, status, size int, dur time.Duration) {
			hlog.FromRequest(req).Info().
				Str("method", req.Method).
				Str("url", req.URL.String()).
				Int("status", status).
				Int("size", size).
				Dur("duration", dur).
				Str("request_id", util.GetRequestID(req.Context())).
				Msg("http request")
			metrics.RequestDuration.WithLabelValues(req.Method, req.URL.Path, strconv.Itoa(status)).Observe(dur.Seconds())
		}))
		r.Use(mw.ContextTimeout)
		r.Use(mw.SecurityHeaders)
		r.Use(mw.BanGate)
		r.Use(mw.Track)

		r.Get("/messages", hdl.ListMessages)
		r.With(mw.RateLimit("post_message")).Post("/messages", hdl.PostMessage)

		r.With(mw.RateLimit("create_paste")).Post("/pastes", hdl.CreatePaste)
		r.With(mw.RateLimit("upload_file")).Post("/pastes/upload", hdl.UploadFile)
		r.Get("/pastes/{id}", hdl.ViewPaste)
		r.Get("/pastes/{id}/download", hdl.DownloadPaste)

		r.With(mw.RateLimit("login")).Post("/login", hdl.Login)
		r.Post("/logout", hdl.Logout)

		r.Route("/admin", func(r chi.Router) {
			// claim stays outside the admin gate: it is how the first
			// admin comes to exist
			r.With(mw.RateLimit("admin_claim")).Post("/claim", hdl.AdminClaim)
			r.Group(func(r chi.Router) {
				r.Use(mw.AdminOnly)
				r.Post("/ban", hdl.Ban)
				r.Post("/unban", hdl.Unban)
				r.Post("/verified", hdl.AddVerified)
				r.Delete("/verified", hdl.RemoveVerified)
				r.Post("/cooldown/reset", hdl.ResetCooldown)
				r.Delete("/pastes/{id}", hdl.DeletePaste)
				r.Get("/stats", hdl.Stats)
			})
		})
	})

	return &Server{
		router: r,
		cfg:    d.Cfg,
		httpServer: &http.Server{
			Addr:           ":" + d.Cfg.Port,
			Handler:        r,
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: 256 * 1024,
		},
	}
}

func pathID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) Start() error {
	util.Info().Str("port", s.cfg.Port).Msg("starting server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		util.Error().Err(err).Str("port", s.cfg.Port).Msg("server failed to start")
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
