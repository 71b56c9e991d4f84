package production

import (
	"context"
	"sort"
)

// =============================================================================
// AGGREGATOR - Grouped sums at two granularities
// =============================================================================

// Totals holds both aggregate views of the store at one point in time.
type Totals struct {
	// PerCompany is grouped by (company, status, metric, date) and sorted by
	// (date, metric, status, company).
	PerCompany []AggregateRow

	// Global is grouped by (status, metric, date) and sorted by
	// (date, metric, status). Every row has Scope == ScopeTotal.
	Global []AggregateRow
}

// Aggregator computes Totals over the full record population.
type Aggregator struct {
	Store TxStore
}

// NewAggregator creates an aggregator reading from store.
func NewAggregator(store TxStore) *Aggregator {
	return &Aggregator{Store: store}
}

// Aggregate runs both grouped-sum queries in one read transaction.
// It never mutates the store.
func (a *Aggregator) Aggregate(ctx context.Context) (Totals, error) {
	var totals Totals
	err := a.Store.WithTx(ctx, func(s Store) error {
		perCompany, err := s.GroupSum(ctx, FieldCompany, FieldStatus, FieldMetric, FieldDate)
		if err != nil {
			return err
		}
		global, err := s.GroupSum(ctx, FieldStatus, FieldMetric, FieldDate)
		if err != nil {
			return err
		}

		totals.PerCompany = make([]AggregateRow, len(perCompany))
		for i, g := range perCompany {
			totals.PerCompany[i] = AggregateRow{
				Scope:  g.Company,
				Sum:    g.Sum,
				Status: g.Status,
				Metric: g.Metric,
				Date:   g.Date,
			}
		}
		totals.Global = make([]AggregateRow, len(global))
		for i, g := range global {
			totals.Global[i] = AggregateRow{
				Scope:  ScopeTotal,
				Sum:    g.Sum,
				Status: g.Status,
				Metric: g.Metric,
				Date:   g.Date,
			}
		}
		return nil
	})
	if err != nil {
		return Totals{}, err
	}
	return totals, nil
}

// Report aggregates the store and merges both views into report order.
func (a *Aggregator) Report(ctx context.Context) (MergedSequence, error) {
	totals, err := a.Aggregate(ctx)
	if err != nil {
		return nil, err
	}
	return Merge(totals.PerCompany, totals.Global)
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// Reconcile checks that for every key the company sums add up to the total
// and that both views cover the same keys.
func Reconcile(perCompany, global []AggregateRow) error {
	sums := make(map[mapKey]int64, len(global))
	for _, row := range perCompany {
		sums[row.Key().mapKey()] += row.Sum
	}

	seen := make(map[mapKey]bool, len(global))
	for _, total := range global {
		k := total.Key().mapKey()
		seen[k] = true
		companySum, ok := sums[k]
		if !ok {
			return &keyMismatchError{key: total.Key(), side: "company"}
		}
		if companySum != total.Sum {
			return &ReconciliationError{Key: total.Key(), CompanySum: companySum, Total: total.Sum}
		}
	}

	for _, row := range perCompany {
		if !seen[row.Key().mapKey()] {
			return &keyMismatchError{key: row.Key(), side: "total"}
		}
	}
	return nil
}

// =============================================================================
// ORDERING HELPERS
// =============================================================================

// SortGroupSums sorts rows by date, metric, status and company, comparing
// only the grouped fields.
func SortGroupSums(rows []GroupSum, fields []Field) {
	ordered := OrderedFields(fields)
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		for _, f := range ordered {
			switch f {
			case FieldDate:
				if !a.Date.Equal(b.Date) {
					return a.Date.Before(b.Date)
				}
			case FieldMetric:
				if a.Metric != b.Metric {
					return a.Metric < b.Metric
				}
			case FieldStatus:
				if a.Status != b.Status {
					return a.Status < b.Status
				}
			case FieldCompany:
				if a.Company != b.Company {
					return a.Company < b.Company
				}
			}
		}
		return false
	})
}
