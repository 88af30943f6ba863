/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the admin frontend

ROUTE GROUPS:
  /api/employees/*       Employee-year management
  /api/vacations/*       Booking (create, edit, preview, reset)
  /api/capacity          Capacity pre-flight
  /api/classification/*  Ranked lists and recompute
  /api/calendar          Year calendar
  /api/settings          Quota record
  /api/admin/*           Year migration
  /api/audit             Audit trail
  /api/scenarios/*       Demo scenarios

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

var defaultOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured. An empty
// origins list falls back to the local development origins.
func NewRouter(h *Handler, origins []string) *chi.Mux {
	if len(origins) == 0 {
		origins = defaultOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/pending", h.PendingEmployees)
			r.Delete("/{registration}", h.DeleteEmployee)
			r.Get("/{registration}/years", h.EmployeeYears)
			r.Get("/{registration}/{year}", h.GetEmployee)
			r.Put("/{registration}/{year}", h.UpdateEmployee)
		})

		r.Route("/vacations", func(r chi.Router) {
			r.Post("/", h.CreateBooking)
			r.Post("/preview", h.PreviewBooking)
			r.Delete("/{registration}", h.ResetBookings)
			r.Get("/{registration}/{year}", h.GetBookings)
			r.Put("/{registration}/{year}", h.UpdateBooking)
		})

		r.Get("/capacity", h.CheckCapacity)

		r.Route("/classification", func(r chi.Router) {
			r.Get("/", h.Classification)
			r.Post("/recompute", h.RecomputeRanks)
		})

		r.Get("/calendar", h.YearCalendar)

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", h.GetSettings)
			r.Put("/", h.UpdateSettings)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/migrate", h.MigrateYear)
		})

		r.Get("/audit", h.ListAudit)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
