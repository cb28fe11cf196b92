package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"tinysubs/internal/config"
	"tinysubs/internal/events"
	ledgerhttp "tinysubs/internal/ledger/transport/http"
	"tinysubs/internal/metrics"
	"tinysubs/pkg/middleware"
)

// newRouter mounts the ledger API and the event stream under /api/v1, plus
// /health and, when a password hash is configured, /metrics.
func newRouter(cfg *config.Config, ledgerHandler *ledgerhttp.Handler, hub *events.Hub, log *zap.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.MetricsMiddleware)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute, log.Named("ratelimit"))
	r.Route("/api/v1", func(api chi.Router) {
		api.Use(rateLimiter.Middleware)
		ledgerHandler.Routes(api, cfg.JWTSecret)
		api.Handle("/events/stream", hub)
	})

	if cfg.MetricsPasswordHash != "" {
		r.With(middleware.BasicAuth(cfg.MetricsUser, cfg.MetricsPasswordHash)).Handle("/metrics", metrics.Handler())
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	return r
}
