/*
handlers.go - HTTP API handlers for the production report

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed workbook, shape mismatch, bad query parameter,
         unknown scenario
  - 404: Feature not available for this store
  - 500: Storage failures and reconciliation defects

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/render"
	"github.com/rs/zerolog"

	"github.com/warp/production-report/pipeline"
	"github.com/warp/production-report/production"
	"github.com/warp/production-report/report"
	"github.com/warp/production-report/source"
	"github.com/warp/production-report/store/sqlite"
)

// maxUploadSize bounds multipart uploads.
const maxUploadSize = 32 << 20

// ImportLister is implemented by stores that track batches.
type ImportLister interface {
	ListImports(ctx context.Context) ([]sqlite.ImportSummary, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Pipeline *pipeline.Pipeline
	Store    production.Store
	Imports  ImportLister // nil when the store does not track batches

	// Scheduler runs reconciliation checks. It is created stopped; the
	// serve command starts it.
	Scheduler *ReconciliationScheduler
	Metrics   *Metrics

	log             zerolog.Logger
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler.
func NewHandler(p *pipeline.Pipeline, store production.Store, log zerolog.Logger) *Handler {
	h := &Handler{
		Pipeline: p,
		Store:    store,
		log:      log.With().Str("component", "api").Logger(),
	}
	h.Metrics = NewMetrics(store)
	h.Scheduler = NewReconciliationScheduler(p, log)
	h.Scheduler.OnRun = h.Metrics.observeReconciliation
	if lister, ok := store.(ImportLister); ok {
		h.Imports = lister
	}
	return h
}

// Health reports liveness and the stored record count.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	n, err := h.Store.Count(r.Context())
	if err != nil {
		h.writeFailure(w, r, "Store unavailable", err)
		return
	}
	writeJSON(w, r, http.StatusOK, HealthResponse{Status: "ok", Records: n})
}

// GetReport returns the pivoted report.
// GET /api/report
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	table, err := h.Pipeline.Report(r.Context())
	if err != nil {
		h.writeFailure(w, r, "Failed to build report", err)
		return
	}
	writeJSON(w, r, http.StatusOK, toReportDTO(table))
}

// DownloadReport streams the report workbook.
// GET /api/report.xlsx
func (h *Handler) DownloadReport(w http.ResponseWriter, r *http.Request) {
	table, err := h.Pipeline.Report(r.Context())
	if err != nil {
		h.writeFailure(w, r, "Failed to build report", err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="teams.xlsx"`)
	if err := report.WriteTo(w, h.Pipeline.Options().ReportSheet, table); err != nil {
		h.log.Error().Err(err).Msg("Failed to stream report")
	}
}

// GetTotals returns the aggregate views.
// GET /api/totals?scope=company|total
func (h *Handler) GetTotals(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	if scope != "" && scope != "company" && scope != production.ScopeTotal {
		writeError(w, r, http.StatusBadRequest, "Invalid scope", fmt.Errorf("scope must be company or total, got %q", scope))
		return
	}

	totals, err := h.Pipeline.Totals(r.Context())
	if err != nil {
		h.writeFailure(w, r, "Failed to aggregate", err)
		return
	}

	var resp TotalsResponse
	if scope == "" || scope == "company" {
		resp.PerCompany = toAggregateDTOs(totals.PerCompany)
	}
	if scope == "" || scope == production.ScopeTotal {
		resp.Global = toAggregateDTOs(totals.Global)
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// ListRecords returns stored records.
// GET /api/records?company=&status=&metric=&date=
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := production.RecordFilter{
		Company: q.Get("company"),
		Status:  production.Status(q.Get("status")),
		Metric:  production.Metric(q.Get("metric")),
	}
	if d := q.Get("date"); d != "" {
		date, err := production.ParseDate(d)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "Invalid date", err)
			return
		}
		filter.Date = date
	}

	records, err := h.Store.Records(r.Context(), filter)
	if err != nil {
		h.writeFailure(w, r, "Failed to list records", err)
		return
	}
	writeJSON(w, r, http.StatusOK, toRecordDTOs(records))
}

// ListImports returns stored batches.
// GET /api/imports
func (h *Handler) ListImports(w http.ResponseWriter, r *http.Request) {
	if h.Imports == nil {
		writeError(w, r, http.StatusNotFound, "Imports are not tracked by this store", nil)
		return
	}
	imports, err := h.Imports.ListImports(r.Context())
	if err != nil {
		h.writeFailure(w, r, "Failed to list imports", err)
		return
	}
	writeJSON(w, r, http.StatusOK, toImportDTOs(imports))
}

// UploadImport loads an uploaded workbook and rewrites the report file.
// POST /api/imports (multipart/form-data, field "file")
func (h *Handler) UploadImport(w http.ResponseWriter, r *http.Request) {
	status, records := h.uploadImport(w, r)
	h.Metrics.observeImport(status, records)
}

func (h *Handler) uploadImport(w http.ResponseWriter, r *http.Request) (int, int) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Missing file", err)
		return http.StatusBadRequest, 0
	}
	defer file.Close()

	ctx := r.Context()
	rows, err := source.Decode(file, h.Pipeline.Enumeration())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid workbook", err)
		return http.StatusBadRequest, 0
	}

	n, err := h.Pipeline.Import(ctx, rows)
	if err != nil {
		return h.writeFailure(w, r, "Failed to import", err), 0
	}

	table, err := h.Pipeline.WriteReport(ctx)
	if err != nil {
		return h.writeFailure(w, r, "Imported, but failed to write report", err), n
	}

	h.log.Info().Int("rows", len(rows)).Int("records", n).Msg("Workbook imported")
	writeJSON(w, r, http.StatusCreated, ImportResponse{Rows: len(rows), Records: n, ReportRows: len(table.Rows)})
	return http.StatusCreated, n
}

// Reset deletes every record.
// POST /api/reset
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.Pipeline.Reset(r.Context()); err != nil {
		h.writeFailure(w, r, "Failed to reset", err)
		return
	}
	h.setScenario("")
	w.WriteHeader(http.StatusNoContent)
}

// GetReconciliation returns the most recent reconciliation check, running
// one first if none has happened yet.
// GET /api/reconciliation
func (h *Handler) GetReconciliation(w http.ResponseWriter, r *http.Request) {
	run := h.Scheduler.LastRun()
	if run == nil {
		fresh := h.Scheduler.RunNow(r.Context())
		run = &fresh
	}
	writeJSON(w, r, http.StatusOK, toReconciliationDTO(*run))
}

// RunReconciliation performs a reconciliation check now.
// POST /api/reconciliation/run
func (h *Handler) RunReconciliation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, toReconciliationDTO(h.Scheduler.RunNow(r.Context())))
}

// =============================================================================
// HELPERS
// =============================================================================

// writeFailure maps engine errors to a status code and returns it.
func (h *Handler) writeFailure(w http.ResponseWriter, r *http.Request, message string, err error) int {
	status := http.StatusInternalServerError
	switch {
	case production.IsShapeError(err), errors.Is(err, source.ErrInvalidValue):
		status = http.StatusBadRequest
	case production.IsDefect(err):
		h.log.Error().Err(err).Msg("Reconciliation defect")
	default:
		h.log.Error().Err(err).Msg(message)
	}
	writeError(w, r, status, message, err)
	return status
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	render.Status(r, status)
	render.JSON(w, r, data)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, r, status, resp)
}
