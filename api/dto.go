/*
dto.go - Data Transfer Objects for API requests and responses

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Response: Complex response wrappers
*/
package api

import (
	"time"

	"github.com/warp/production-report/production"
	"github.com/warp/production-report/report"
	"github.com/warp/production-report/store/sqlite"
)

// RecordDTO is one stored measurement.
type RecordDTO struct {
	Company string `json:"company"`
	Status  string `json:"status"`
	Metric  string `json:"metric"`
	Date    string `json:"date"`
	Value   int64  `json:"value"`
}

// AggregateDTO is one grouped sum.
type AggregateDTO struct {
	Scope  string `json:"scope"`
	Sum    int64  `json:"sum"`
	Status string `json:"status"`
	Metric string `json:"metric"`
	Date   string `json:"date"`
}

// TotalsResponse carries the requested aggregate views.
type TotalsResponse struct {
	PerCompany []AggregateDTO `json:"per_company,omitempty"`
	Global     []AggregateDTO `json:"global,omitempty"`
}

// ReportRowDTO is one pivoted report row. Companies maps company name to its
// sum; absent companies are omitted.
type ReportRowDTO struct {
	Date      string           `json:"date"`
	Reality   string           `json:"reality"`
	Type      string           `json:"type"`
	Companies map[string]int64 `json:"companies"`
	Total     int64            `json:"total"`
}

// ReportDTO is the pivoted report.
type ReportDTO struct {
	Columns   []string       `json:"columns"`
	Companies []string       `json:"companies"`
	Rows      []ReportRowDTO `json:"rows"`
}

// ImportDTO summarizes a stored batch.
type ImportDTO struct {
	ID        string `json:"id"`
	Records   int    `json:"records"`
	Companies int    `json:"companies"`
	CreatedAt string `json:"created_at"`
}

// ImportResponse is returned after an upload.
type ImportResponse struct {
	Rows       int `json:"rows"`
	Records    int `json:"records"`
	ReportRows int `json:"report_rows"`
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Records int    `json:"records"`
}

// ReconciliationDTO is the outcome of a reconciliation check.
type ReconciliationDTO struct {
	At         string `json:"at"`
	OK         bool   `json:"ok"`
	Keys       int    `json:"keys"`
	Companies  int    `json:"companies"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toRecordDTOs(records []production.MeasurementRecord) []RecordDTO {
	dtos := make([]RecordDTO, len(records))
	for i, r := range records {
		dtos[i] = RecordDTO{
			Company: r.Company,
			Status:  string(r.Status),
			Metric:  string(r.Metric),
			Date:    r.Date.Format(production.DateLayout),
			Value:   r.Value,
		}
	}
	return dtos
}

func toAggregateDTOs(rows []production.AggregateRow) []AggregateDTO {
	dtos := make([]AggregateDTO, len(rows))
	for i, r := range rows {
		dtos[i] = AggregateDTO{
			Scope:  r.Scope,
			Sum:    r.Sum,
			Status: string(r.Status),
			Metric: string(r.Metric),
			Date:   r.Date.Format(production.DateLayout),
		}
	}
	return dtos
}

func toReportDTO(t report.Table) ReportDTO {
	dto := ReportDTO{
		Columns:   t.Header(),
		Companies: t.Companies,
		Rows:      make([]ReportRowDTO, len(t.Rows)),
	}
	if dto.Companies == nil {
		dto.Companies = []string{}
	}
	for i, r := range t.Rows {
		companies := make(map[string]int64, len(r.Values))
		for j, v := range r.Values {
			if v != nil {
				companies[t.Companies[j]] = *v
			}
		}
		dto.Rows[i] = ReportRowDTO{
			Date:      r.Date.Format(production.DateLayout),
			Reality:   string(r.Reality),
			Type:      string(r.Type),
			Companies: companies,
			Total:     r.Total,
		}
	}
	return dto
}

func toReconciliationDTO(run ReconciliationRun) ReconciliationDTO {
	dto := ReconciliationDTO{
		At:         run.At.Format(time.RFC3339),
		OK:         run.OK(),
		Keys:       run.Keys,
		Companies:  run.Companies,
		DurationMs: run.Duration.Milliseconds(),
	}
	if run.Err != nil {
		dto.Error = run.Err.Error()
	}
	return dto
}

func toImportDTOs(imports []sqlite.ImportSummary) []ImportDTO {
	dtos := make([]ImportDTO, len(imports))
	for i, imp := range imports {
		dtos[i] = ImportDTO{
			ID:        imp.ID,
			Records:   imp.Records,
			Companies: imp.Companies,
			CreatedAt: imp.CreatedAt.Format(time.RFC3339),
		}
	}
	return dtos
}
