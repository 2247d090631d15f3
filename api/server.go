/*
server.go - HTTP router configuration

PURPOSE:
  Wires URLs to handlers with chi and the standard middleware stack
  (request logging, panic recovery, request IDs, CORS).

ROUTES:
  POST /api/absences            create request (acting user debits ledger)
  PUT  /api/absences/{id}       role-gated update
  GET  /api/absences            visible requests for a year
  GET  /api/absences/balance    current + next-year balance
  GET  /api/absences/{id}/role  acting user's role (cached read path)
  GET  /api/holidays            bank holidays for a year
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", userHeader},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/absences", func(r chi.Router) {
			r.Get("/", h.ListAbsences)
			r.Post("/", h.CreateAbsence)
			r.Get("/balance", h.GetBalance)
			r.Put("/{id}", h.UpdateAbsence)
			r.Get("/{id}/role", h.GetRole)
		})

		r.Get("/holidays", h.ListHolidays)
	})

	return r
}
