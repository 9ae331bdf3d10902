/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for dashboards

ROUTE GROUPS:
  /api/readings/*   Meter reading management
  /api/invoices/*   Supplier invoice management
  /api/billing/*    Billing runs and per-unit bills
  /api/split        Proportional water/gas splitting
  /api/health       Liveness probe

SECURITY NOTE:
  No authentication middleware currently. The service is meant to run on a
  private network segment.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Reading routes
		r.Route("/readings", func(r chi.Router) {
			r.Get("/", h.ListReadings)
			r.Put("/", h.PutReading)
			r.Get("/{period}", h.GetReading)
		})

		// Invoice routes
		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", h.ListInvoices)
			r.Post("/", h.CreateInvoice)
			r.Get("/{id}", h.GetInvoice)
		})

		// Billing routes
		r.Route("/billing", func(r chi.Router) {
			r.Post("/run", h.RunBilling)
			r.Get("/{period}", h.GetBills)
			r.Get("/{period}/{unit}", h.GetBill)
		})

		// Shared utility splitting
		r.Post("/split", h.SplitUtility)

		r.Get("/health", h.Health)
	})

	return r
}
