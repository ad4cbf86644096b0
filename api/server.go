/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for a dashboard

ROUTE GROUPS:
  /api/reconcile/*      Daily and weekly runs
  /api/rules/*          Rules store passthrough
  /api/debts/*          Ledger
  /api/punishments      Punishment records
  /api/bonuses          Bonus records
  /api/habits/*         Weekly counters
  /api/policy/*         Route 2/3 overrides
  /metrics              Prometheus scrape endpoint
  /healthz              Liveness

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/accountability/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new router with all routes configured. gatherer backs
// /metrics; nil uses the default registry.
func NewRouter(h *Handler, gatherer prometheus.Gatherer) *chi.Mux {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/reconcile", func(r chi.Router) {
			r.Post("/", h.ReconcileDaily)
			r.Post("/weekly", h.ReconcileWeekly)
			r.Get("/runs", h.ListRuns)
		})

		r.Route("/rules", func(r chi.Router) {
			r.Get("/status", h.RulesStatus)
			r.Post("/modify", h.ModifyRule)
			r.Post("/reset", h.ResetRule)
		})

		r.Route("/debts", func(r chi.Router) {
			r.Get("/", h.GetDebts)
			r.Post("/{id}/buyout", h.BuyoutDebt)
		})

		r.Get("/punishments", h.ListPunishments)
		r.Get("/bonuses", h.ListBonuses)
		r.Get("/habits/{week_start}", h.GetHabits)
		r.Get("/policy/overrides", h.GetOverrides)
	})

	return r
}
