package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/coinledger/internal/adapter/http/handler"
	"github.com/iho/coinledger/internal/adapter/http/middleware"
	"github.com/iho/coinledger/internal/infrastructure/metrics"
	"github.com/iho/coinledger/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	LedgerHandler    *handler.LedgerHandler
	RoundHandler     *handler.RoundHandler
	HealthHandler    *handler.HealthHandler
	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	// Verifier enables bearer token authentication on /api/v1 when set.
	Verifier       middleware.TokenVerifier
	RateLimiter    *middleware.RateLimiter
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	Logger         zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Verifier != nil {
			r.Use(middleware.Authenticate(cfg.Verifier))
		}

		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL, cfg.Logger).Wrap)
		}

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/balance", cfg.LedgerHandler.Balance)
			r.Get("/entries", cfg.LedgerHandler.ListEntries)
			r.Get("/reconciliation", cfg.LedgerHandler.ReconcileUser)
			r.Post("/logins", cfg.LedgerHandler.RecordLogin)
			r.Post("/savings", cfg.LedgerHandler.RecordSaving)
			r.Post("/adjustments", cfg.LedgerHandler.Adjust)
		})

		r.Route("/rounds", func(r chi.Router) {
			r.Post("/", cfg.RoundHandler.Open)
			r.Get("/", cfg.RoundHandler.List)
			r.Post("/close-expired", cfg.RoundHandler.CloseExpired)
			r.Get("/{id}", cfg.RoundHandler.Get)
			r.Get("/{id}/entries", cfg.RoundHandler.Entries)
			r.Post("/{id}/purchases", cfg.RoundHandler.Purchase)
			r.Post("/{id}/draw", cfg.RoundHandler.Draw)
			r.Get("/{id}/reconciliation", cfg.RoundHandler.Reconcile)
		})

		r.Get("/ledger/reconciliation", cfg.LedgerHandler.ReconcileLedger)
	})

	return r
}
