/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address from X-Forwarded-For / X-Real-IP
  3. Logger:     Request logging
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. Metrics:    Request counts and latency per route (when enabled)
  6. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/rates/*          Rate templates
  /api/missions/*       Missions
  /api/stats/*          Monthly, yearly and per-establishment aggregates
  /api/calendar/*       Month grid and view cursors
  /api/reports/*        Monthly report, upcoming missions
  /api/export/*         iCalendar and CSV
  /api/snapshot         JSON export and import
  /api/backups/*        Backup relay
  /api/admin/*          Storage info, seed, reset, backfill
  /api/scenarios/*      Sample data sets
  /metrics              Prometheus metrics (when enabled)

SECURITY NOTE:
  No authentication middleware. The server is meant to run on the
  worker's own machine or behind an authenticating proxy.

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

// NewRouter creates a new router with all routes configured. An empty
// origin list allows any origin.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if h.Metrics != nil {
		r.Use(h.Metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition", "X-Exported-Count", "X-Skipped-Past-Count", "X-Total-Count"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics.Handler())
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Rate routes
		r.Route("/rates", func(r chi.Router) {
			r.Get("/", h.ListRates)
			r.Post("/", h.CreateRate)
			r.Post("/validate", h.ValidateRate)
			r.Get("/{id}", h.GetRate)
			r.Put("/{id}", h.UpdateRate)
			r.Delete("/{id}", h.DeleteRate)
		})
		r.Get("/establishments", h.ListEstablishments)

		// Mission routes
		r.Route("/missions", func(r chi.Router) {
			r.Get("/", h.ListMissions)
			r.Post("/", h.CreateMission)
			r.Post("/validate", h.ValidateMission)
			r.Get("/check-date", h.CheckMissionDate)
			r.Get("/{id}", h.GetMission)
			r.Put("/{id}", h.UpdateMission)
			r.Delete("/{id}", h.DeleteMission)
		})

		// Settings routes
		r.Get("/settings", h.GetSettings)
		r.Put("/settings", h.UpdateSettings)

		// Stats routes
		r.Route("/stats", func(r chi.Router) {
			r.Get("/monthly", h.GetMonthlyStats)
			r.Get("/year", h.GetYearOverview)
			r.Get("/establishments", h.GetEstablishmentStats)
		})

		// Calendar routes
		r.Route("/calendar", func(r chi.Router) {
			r.Get("/grid", h.GetMonthGrid)
			r.Get("/views/{view}", h.GetView)
			r.Put("/views/{view}", h.GoToMonth)
			r.Post("/views/{view}/{step}", h.MoveView)
			r.Get("/year", h.GetYear)
			r.Post("/year/{step}", h.MoveYear)
		})

		// Report routes
		r.Route("/reports", func(r chi.Router) {
			r.Get("/monthly", h.GetMonthlyReport)
			r.Get("/upcoming", h.GetUpcoming)
		})

		// Export routes
		r.Route("/export", func(r chi.Router) {
			r.Get("/ics", h.ExportICS)
			r.Get("/csv", h.ExportCSV)
		})

		// Snapshot routes
		r.Get("/snapshot", h.ExportSnapshot)
		r.Post("/snapshot", h.ImportSnapshot)

		// Backup routes
		r.Route("/backups", func(r chi.Router) {
			r.Get("/", h.ListBackups)
			r.Post("/", h.RunBackup)
			r.Get("/status", h.GetBackupStatus)
			r.Post("/restore", h.RestoreBackup)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Get("/storage", h.GetStorageInfo)
			r.Post("/seed", h.SeedDefaults)
			r.Post("/reset", h.ResetData)
			r.Post("/backfill-schedules", h.BackfillSchedules)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
