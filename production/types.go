/*
Package production provides the normalization, aggregation and merge engine
for oil/gas production figures.

PURPOSE:
  A source spreadsheet carries one wide row per company: a flat list of
  values laid out as the cross product of (status, metric, date). This
  package expands such rows into atomic MeasurementRecords, computes grouped
  sums over the stored records at two granularities (per company and
  company-wide) and interleaves both views into report order.

KEY CONCEPTS IN THIS FILE (types.go):
  - Status:            fact or forecast
  - Metric:            Qliq (liquid) or Qoil (oil)
  - Key:               (status, metric, date), the grouping unit
  - MeasurementRecord: one value for one company and one key
  - AggregateRow:      a grouped sum, either per company or "total"

DATA FLOW:
  SourceRow -> Normalizer -> []MeasurementRecord -> Store
  Store -> Aggregator -> Totals{PerCompany, Global} -> Merge -> MergedSequence

SEE ALSO:
  - enumeration.go: Canonical cross-product order
  - normalize.go:   Row expansion and bulk load
  - aggregate.go:   Grouped sums
  - merge.go:       Report ordering
  - store.go:       Persistence interface
*/
package production

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date layout used in storage, config and reports.
const DateLayout = "2006-01-02"

// =============================================================================
// ENUMERATED DIMENSIONS
// =============================================================================

// Status tells whether a value is realized or projected.
type Status string

const (
	StatusFact     Status = "fact"
	StatusForecast Status = "forecast"
)

// Metric is the physical quantity being measured.
type Metric string

const (
	MetricLiquid Metric = "Qliq"
	MetricOil    Metric = "Qoil"
)

// ScopeTotal is the scope of company-wide aggregate rows.
const ScopeTotal = "total"

// NewDate returns the calendar date at UTC midnight.
func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// =============================================================================
// KEY - The grouping unit
// =============================================================================

// Key identifies one (status, metric, date) combination.
type Key struct {
	Status Status
	Metric Metric
	Date   time.Time
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Status, k.Metric, k.Date.Format(DateLayout))
}

// Less orders keys by date, then metric, then status.
func (k Key) Less(o Key) bool {
	if !k.Date.Equal(o.Date) {
		return k.Date.Before(o.Date)
	}
	if k.Metric != o.Metric {
		return k.Metric < o.Metric
	}
	return k.Status < o.Status
}

// mapKey is a comparable form of Key usable as a map key.
// time.Time values compare by location pointer, so dates are keyed by text.
type mapKey struct {
	status Status
	metric Metric
	date   string
}

func (k Key) mapKey() mapKey {
	return mapKey{status: k.Status, metric: k.Metric, date: k.Date.Format(DateLayout)}
}

// =============================================================================
// RECORDS
// =============================================================================

// SourceRow is one data row of the source spreadsheet.
type SourceRow struct {
	ID      string // ignored by the engine
	Company string
	Values  []int64
}

// MeasurementRecord is a single normalized value. Immutable once created.
type MeasurementRecord struct {
	Company string
	Status  Status
	Metric  Metric
	Date    time.Time
	Value   int64
}

// Key returns the record's grouping key.
func (r MeasurementRecord) Key() Key {
	return Key{Status: r.Status, Metric: r.Metric, Date: r.Date}
}

// AggregateRow is a grouped sum. Scope is a company name or ScopeTotal.
type AggregateRow struct {
	Scope  string
	Sum    int64
	Status Status
	Metric Metric
	Date   time.Time
}

// Key returns the row's grouping key.
func (r AggregateRow) Key() Key {
	return Key{Status: r.Status, Metric: r.Metric, Date: r.Date}
}

// IsTotal reports whether the row is a company-wide total.
func (r AggregateRow) IsTotal() bool {
	return r.Scope == ScopeTotal
}

// MergedSequence is the report-ordered interleaving of per-company and
// total rows: within each key group the company rows come first and the
// group ends with exactly one total row.
type MergedSequence []AggregateRow
