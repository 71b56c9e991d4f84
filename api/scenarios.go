/*
scenarios.go - Demo datasets for testing and demonstrations

PURPOSE:
  Populates the store with known data so the report, totals and
  reconciliation endpoints can be explored without a source workbook.
  Values are laid out against the configured enumeration, so every
  scenario works with any column layout.

AVAILABLE SCENARIOS:
  two-companies:  company1 and company2, one import
  single-company: one company, values 1..N
  accumulated:    two-companies imported twice, sums double

HOW SCENARIOS WORK:
  1. Reset the store
  2. Import each batch through the pipeline (one transaction per batch)
  3. Rewrite the report workbook

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "two-companies"}

NOTE:
  Scenarios reset the store. Only use in development/demo environments.
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/render"

	"github.com/warp/production-report/production"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioDTO describes a demo dataset.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "two-companies",
		Name:        "Two Companies",
		Description: "Two companies reporting every key in a single import",
	},
	{
		ID:          "single-company",
		Name:        "Single Company",
		Description: "One company; every total equals its company value",
	},
	{
		ID:          "accumulated",
		Name:        "Accumulated Imports",
		Description: "The two-company file imported twice; sums accumulate across imports",
	},
}

// Per-company value patterns, repeated to the enumeration size. Against the
// default enumeration they reproduce the reference workbook.
var (
	company1Pattern = []int64{10, 15, 5, 8, 12, 14, 6, 9}
	company2Pattern = []int64{11, 26, 7, 3, 13, 16, 20, 4}
)

// scenarioBatches returns the import batches of a scenario.
func scenarioBatches(id string, enum production.Enumeration) ([][]production.SourceRow, error) {
	twoCompanies := []production.SourceRow{
		{ID: "1", Company: "company1", Values: repeatPattern(company1Pattern, enum.Size())},
		{ID: "2", Company: "company2", Values: repeatPattern(company2Pattern, enum.Size())},
	}

	switch id {
	case "two-companies":
		return [][]production.SourceRow{twoCompanies}, nil
	case "single-company":
		values := make([]int64, enum.Size())
		for i := range values {
			values[i] = int64(i + 1)
		}
		return [][]production.SourceRow{{{ID: "1", Company: "solo", Values: values}}}, nil
	case "accumulated":
		return [][]production.SourceRow{twoCompanies, twoCompanies}, nil
	default:
		return nil, fmt.Errorf("unknown scenario %q", id)
	}
}

func repeatPattern(pattern []int64, n int) []int64 {
	values := make([]int64, n)
	for i := range values {
		values[i] = pattern[i%len(pattern)]
	}
	return values
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	current := h.scenario()
	if current == "" {
		writeJSON(w, r, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, r, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, r, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario resets the store and loads a predefined scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	batches, err := scenarioBatches(req.ScenarioID, h.Pipeline.Enumeration())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Unknown scenario", err)
		return
	}

	ctx := r.Context()
	h.setScenario("")
	if err := h.Pipeline.Reset(ctx); err != nil {
		h.writeFailure(w, r, "Failed to reset store", err)
		return
	}

	records, err := h.loadBatches(ctx, batches)
	if err != nil {
		h.writeFailure(w, r, "Failed to load scenario", err)
		return
	}
	if _, err := h.Pipeline.WriteReport(ctx); err != nil {
		h.writeFailure(w, r, "Loaded, but failed to write report", err)
		return
	}

	h.setScenario(req.ScenarioID)
	h.log.Info().Str("scenario", req.ScenarioID).Int("records", records).Msg("Scenario loaded")
	writeJSON(w, r, http.StatusOK, map[string]any{"status": "loaded", "scenario": req.ScenarioID, "records": records})
}

func (h *Handler) loadBatches(ctx context.Context, batches [][]production.SourceRow) (int, error) {
	total := 0
	for _, rows := range batches {
		n, err := h.Pipeline.Import(ctx, rows)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (h *Handler) scenario() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentScenario
}

func (h *Handler) setScenario(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.currentScenario = id
}
