/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend
  5. RequireAuth: Bearer-token authentication on every /api route

SEE ALSO:
  - handlers.go: handler implementations and the auth middleware
  - cmd/server/main.go: server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, auth Authenticator) *chi.Mux {
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

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes (all authenticated)
	r.Route("/api", func(r chi.Router) {
		r.Use(RequireAuth(auth))

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.ListAccounts)
			r.Post("/", h.CreateAccount)
			r.Get("/{id}", h.GetAccount)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.ListTransactions)
			r.Post("/", h.CreateTransaction)
			r.Delete("/{id}", h.DeleteTransaction)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.ListCategories)
			r.Post("/", h.CreateCategory)
		})

		r.Get("/reports", h.GetReport)
		r.Get("/analytics/monthly", h.GetMonthlySnapshot)
	})

	return r
}
