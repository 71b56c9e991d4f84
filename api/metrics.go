package api

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warp/production-report/production"
)

// Import outcomes.
const (
	outcomeOK       = "ok"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

// Metrics holds the Prometheus collectors of one server. Each Metrics has its
// own registry so several handlers can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	imports         *prometheus.CounterVec
	recordsImported prometheus.Counter
	reconciliations *prometheus.CounterVec
}

// NewMetrics registers the collectors. The stored record gauge queries the
// store on every scrape.
func NewMetrics(store production.Store) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prodreport_imports_total",
			Help: "Workbook imports by outcome.",
		}, []string{"outcome"}),
		recordsImported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prodreport_records_imported_total",
			Help: "Measurement records stored by imports.",
		}),
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prodreport_reconciliation_runs_total",
			Help: "Reconciliation checks by outcome.",
		}, []string{"outcome"}),
	}

	stored := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "prodreport_records_stored",
		Help: "Measurement records currently in the store.",
	}, func() float64 {
		n, err := store.Count(context.Background())
		if err != nil {
			return -1
		}
		return float64(n)
	})

	m.registry.MustRegister(m.imports, m.recordsImported, m.reconciliations, stored)
	return m
}

// Handler serves the scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// observeImport counts an upload by the status it was answered with.
// records is what the upload committed, which may be non-zero even when
// a later step failed.
func (m *Metrics) observeImport(status, records int) {
	if records > 0 {
		m.recordsImported.Add(float64(records))
	}
	switch {
	case status < http.StatusBadRequest:
		m.imports.WithLabelValues(outcomeOK).Inc()
	case status < http.StatusInternalServerError:
		m.imports.WithLabelValues(outcomeRejected).Inc()
	default:
		m.imports.WithLabelValues(outcomeFailed).Inc()
	}
}

func (m *Metrics) observeReconciliation(run ReconciliationRun) {
	switch {
	case run.OK():
		m.reconciliations.WithLabelValues(outcomeOK).Inc()
	case production.IsDefect(run.Err):
		m.reconciliations.WithLabelValues("violation").Inc()
	default:
		m.reconciliations.WithLabelValues(outcomeFailed).Inc()
	}
}
