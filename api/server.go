/*
server.go - HTTP router and middleware configuration

ROUTER: chi

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for dashboards

ROUTES:
  GET  /health            Liveness + record count
  GET  /metrics           Prometheus metrics
  GET  /api/report        Pivoted report as JSON
  GET  /api/report.xlsx   Pivoted report as a workbook download
  GET  /api/totals        Aggregate views (?scope=company|total)
  GET  /api/records       Stored records (?company=&status=&metric=&date=)
  GET  /api/imports       Stored batches
  POST /api/imports       Upload a source workbook (multipart field "file")
  POST /api/reset         Delete every record
  GET  /api/reconciliation      Last reconciliation check
  POST /api/reconciliation/run  Run a check now
  GET  /api/scenarios           Demo datasets
  GET  /api/scenarios/current   Loaded demo dataset
  POST /api/scenarios/load      Reset and load a demo dataset

SECURITY NOTE:
  No authentication middleware. Bind to localhost or put a proxy in front.

SEE ALSO:
  - handlers.go: Handler implementations
  - scenarios.go: Demo datasets
  - scheduler.go: Periodic reconciliation
  - metrics.go: Prometheus collectors
  - cmd/prodreport/commands.go: Server startup
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

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
	}))

	r.Get("/health", h.Health)
	r.Method("GET", "/metrics", h.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/report", h.GetReport)
		r.Get("/report.xlsx", h.DownloadReport)
		r.Get("/totals", h.GetTotals)
		r.Get("/records", h.ListRecords)

		r.Route("/imports", func(r chi.Router) {
			r.Get("/", h.ListImports)
			r.Post("/", h.UploadImport)
		})

		r.Post("/reset", h.Reset)

		r.Get("/reconciliation", h.GetReconciliation)
		r.Post("/reconciliation/run", h.RunReconciliation)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
