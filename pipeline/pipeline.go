/*
Package pipeline wires the source reader, the production engine and the
reporter into the per-file workflow.

WORKFLOW (per file):
  1. CheckFile:  existence and extension
  2. ReadFile:   single sheet, header layout, integral values
  3. Import:     normalize every row, insert all records in one transaction
  4. Report:     aggregate in one read transaction, merge, pivot
  5. WriteXLSX:  replace the report workbook

Files are processed sequentially; the first failure stops the run and is
returned to the caller. The store accumulates across files and runs, so each
report covers everything loaded so far.
*/
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/production-report/production"
	"github.com/warp/production-report/report"
	"github.com/warp/production-report/source"
)

// Options configures report output.
type Options struct {
	ReportPath  string
	ReportSheet string
}

// Pipeline processes source files against one store.
type Pipeline struct {
	store      production.TxStore
	enum       production.Enumeration
	loader     *production.Loader
	aggregator *production.Aggregator
	opts       Options
	log        zerolog.Logger
}

// New creates a pipeline.
func New(store production.TxStore, enum production.Enumeration, opts Options, log zerolog.Logger) *Pipeline {
	if opts.ReportPath == "" {
		opts.ReportPath = report.DefaultPath
	}
	if opts.ReportSheet == "" {
		opts.ReportSheet = report.DefaultSheet
	}
	return &Pipeline{
		store:      store,
		enum:       enum,
		loader:     production.NewLoader(store, enum),
		aggregator: production.NewAggregator(store),
		opts:       opts,
		log:        log.With().Str("component", "pipeline").Logger(),
	}
}

// Enumeration returns the layout source rows are read against.
func (p *Pipeline) Enumeration() production.Enumeration {
	return p.enum
}

// Result summarizes one processed file.
type Result struct {
	Path       string
	Companies  int
	Records    int
	ReportRows int
	ReportPath string
	Duration   time.Duration
}

// Run processes paths in order and stops at the first failure.
func (p *Pipeline) Run(ctx context.Context, paths []string) ([]Result, error) {
	results := make([]Result, 0, len(paths))
	for _, path := range paths {
		res, err := p.ProcessFile(ctx, path)
		if err != nil {
			return results, fmt.Errorf("%s: %w", path, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// ProcessFile loads one workbook and rewrites the report.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	log := p.log.With().Str("file", path).Logger()

	if _, err := source.CheckFile(path); err != nil {
		return Result{}, err
	}

	rows, err := source.ReadFile(path, p.enum)
	if err != nil {
		return Result{}, err
	}

	log.Info().Int("rows", len(rows)).Msg("Loading data")
	n, err := p.Import(ctx, rows)
	if err != nil {
		return Result{}, err
	}
	log.Info().Int("records", n).Msg("Data loaded")

	table, err := p.Report(ctx)
	if err != nil {
		return Result{}, err
	}

	if err := report.WriteXLSX(p.opts.ReportPath, p.opts.ReportSheet, table); err != nil {
		return Result{}, err
	}

	res := Result{
		Path:       path,
		Companies:  len(rows),
		Records:    n,
		ReportRows: len(table.Rows),
		ReportPath: p.opts.ReportPath,
		Duration:   time.Since(start),
	}
	log.Info().
		Str("report", res.ReportPath).
		Int("report_rows", res.ReportRows).
		Dur("duration", res.Duration).
		Msg("Report created")
	return res, nil
}

// Import stores the rows of one file as a unit.
func (p *Pipeline) Import(ctx context.Context, rows []production.SourceRow) (int, error) {
	return p.loader.Load(ctx, rows)
}

// Merged aggregates the store and returns the merged sequence.
func (p *Pipeline) Merged(ctx context.Context) (production.MergedSequence, error) {
	p.log.Debug().Msg("Processing data")
	return p.aggregator.Report(ctx)
}

// Totals returns both aggregate views without merging them.
func (p *Pipeline) Totals(ctx context.Context) (production.Totals, error) {
	return p.aggregator.Aggregate(ctx)
}

// Report aggregates, merges and pivots the current store contents.
func (p *Pipeline) Report(ctx context.Context) (report.Table, error) {
	merged, err := p.Merged(ctx)
	if err != nil {
		if production.IsDefect(err) {
			p.log.Error().Err(err).Msg("Aggregates do not reconcile")
		}
		return report.Table{}, err
	}
	return report.Pivot(merged)
}

// WriteReport writes the current report to the configured workbook.
func (p *Pipeline) WriteReport(ctx context.Context) (report.Table, error) {
	table, err := p.Report(ctx)
	if err != nil {
		return report.Table{}, err
	}
	if err := report.WriteXLSX(p.opts.ReportPath, p.opts.ReportSheet, table); err != nil {
		return report.Table{}, err
	}
	return table, nil
}

// Reset clears the store.
func (p *Pipeline) Reset(ctx context.Context) error {
	if err := p.store.Reset(ctx); err != nil {
		return err
	}
	p.log.Info().Msg("Store reset")
	return nil
}

// Options returns the report output options.
func (p *Pipeline) Options() Options {
	return p.opts
}
