/*
scheduler.go - Periodic reconciliation check

PURPOSE:
  Re-aggregates the store on a timer and verifies that per-company sums add
  up to the company-wide totals for every key. A violation means a defect in
  the store or the aggregation, never bad input, so it is logged at error
  level and kept for /api/reconciliation.

DESIGN:
  - cron schedule with a constant delay of CheckInterval
  - Runs once immediately on Start
  - Keeps only the most recent run

CONFIGURATION:
  - CheckInterval: server.reconcile_interval (default: 1 hour, 0 disables)

USAGE:
  scheduler := NewReconciliationScheduler(pipeline, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - production/aggregate.go: Reconcile
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/warp/production-report/pipeline"
	"github.com/warp/production-report/production"
)

// ReconciliationRun is the outcome of one check.
type ReconciliationRun struct {
	At        time.Time
	Keys      int
	Companies int
	Duration  time.Duration
	Err       error
}

// OK reports whether the check found no violation.
func (r ReconciliationRun) OK() bool {
	return r.Err == nil
}

// ReconciliationScheduler periodically reconciles the aggregate views.
type ReconciliationScheduler struct {
	Pipeline      *pipeline.Pipeline
	CheckInterval time.Duration
	Enabled       bool

	// OnRun, when set, is called after every check.
	OnRun func(ReconciliationRun)

	log     zerolog.Logger
	cron    *cron.Cron
	entry   cron.EntryID
	initial sync.WaitGroup
	mu      sync.Mutex
	lastMu  sync.RWMutex
	lastRun *ReconciliationRun
}

// NewReconciliationScheduler creates a new scheduler.
func NewReconciliationScheduler(p *pipeline.Pipeline, log zerolog.Logger) *ReconciliationScheduler {
	return &ReconciliationScheduler{
		Pipeline:      p,
		CheckInterval: time.Hour,
		Enabled:       true,
		log:           log.With().Str("component", "scheduler").Logger(),
	}
}

// Start runs a check immediately and then every CheckInterval.
func (rs *ReconciliationScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled || rs.CheckInterval <= 0 {
		rs.log.Info().Msg("Reconciliation scheduler disabled")
		return
	}
	if rs.cron != nil {
		return
	}

	rs.cron = cron.New()
	rs.entry = rs.cron.Schedule(cron.Every(rs.CheckInterval), cron.FuncJob(func() {
		rs.RunNow(context.Background())
	}))
	rs.cron.Start()

	// Run immediately on start
	rs.initial.Add(1)
	go func() {
		defer rs.initial.Done()
		rs.RunNow(context.Background())
	}()

	rs.log.Info().Dur("interval", rs.CheckInterval).Msg("Reconciliation scheduler started")
}

// Stop stops the scheduler and waits for running checks to finish.
func (rs *ReconciliationScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.cron == nil {
		return
	}
	ctx := rs.cron.Stop()
	<-ctx.Done()
	rs.initial.Wait()
	rs.cron = nil
	rs.log.Info().Msg("Reconciliation scheduler stopped")
}

// RunNow performs a check immediately and records its outcome.
func (rs *ReconciliationScheduler) RunNow(ctx context.Context) ReconciliationRun {
	start := time.Now()
	run := ReconciliationRun{At: start.UTC()}

	totals, err := rs.Pipeline.Totals(ctx)
	if err == nil {
		err = production.Reconcile(totals.PerCompany, totals.Global)
		run.Keys = len(totals.Global)
		run.Companies = countCompanies(totals.PerCompany)
	}
	run.Err = err
	run.Duration = time.Since(start)

	switch {
	case err == nil:
		rs.log.Debug().Int("keys", run.Keys).Int("companies", run.Companies).Msg("Reconciliation passed")
	case production.IsDefect(err):
		rs.log.Error().Err(err).Msg("Reconciliation violation")
	default:
		rs.log.Warn().Err(err).Msg("Reconciliation check failed")
	}

	rs.lastMu.Lock()
	rs.lastRun = &run
	rs.lastMu.Unlock()

	if rs.OnRun != nil {
		rs.OnRun(run)
	}
	return run
}

// LastRun returns the most recent check, or nil before the first one.
func (rs *ReconciliationScheduler) LastRun() *ReconciliationRun {
	rs.lastMu.RLock()
	defer rs.lastMu.RUnlock()
	if rs.lastRun == nil {
		return nil
	}
	run := *rs.lastRun
	return &run
}

// NextRunTime returns when the next scheduled check will occur.
func (rs *ReconciliationScheduler) NextRunTime() time.Time {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.cron != nil {
		if next := rs.cron.Entry(rs.entry).Next; !next.IsZero() {
			return next
		}
	}
	return time.Now().Add(rs.CheckInterval)
}

func countCompanies(rows []production.AggregateRow) int {
	seen := make(map[string]bool)
	for _, r := range rows {
		seen[r.Scope] = true
	}
	return len(seen)
}
