package production

import "fmt"

// =============================================================================
// MERGER - Interleave company rows with their totals
// =============================================================================

// Merge interleaves per-company rows with the total rows: for each total,
// in the order of global, the company rows sharing its key are emitted in
// their incoming order, followed by the total itself.
//
// Grouping is by explicit key rather than by a fixed block size, so the
// number of companies may differ between keys. Each key must appear in
// both views and its company sums must add up to the total.
func Merge(perCompany, global []AggregateRow) (MergedSequence, error) {
	if err := Reconcile(perCompany, global); err != nil {
		return nil, err
	}

	groups := make(map[mapKey][]AggregateRow, len(global))
	for _, row := range perCompany {
		if row.IsTotal() {
			return nil, fmt.Errorf("company row for %s: %w: %q", row.Key(), ErrReservedCompany, ScopeTotal)
		}
		k := row.Key().mapKey()
		groups[k] = append(groups[k], row)
	}

	merged := make(MergedSequence, 0, len(perCompany)+len(global))
	for _, total := range global {
		merged = append(merged, groups[total.Key().mapKey()]...)
		merged = append(merged, total)
	}
	return merged, nil
}

// Groups splits a merged sequence into its key groups. Each group ends with
// its total row.
func (m MergedSequence) Groups() [][]AggregateRow {
	var groups [][]AggregateRow
	start := 0
	for i, row := range m {
		if row.IsTotal() {
			groups = append(groups, m[start:i+1])
			start = i + 1
		}
	}
	return groups
}

// CompaniesPerKey returns the number of companies in every key group.
// It fails with ErrVaryingCompanyCount when groups differ in size.
func CompaniesPerKey(m MergedSequence) (int, error) {
	groups := m.Groups()
	if len(groups) == 0 {
		return 0, nil
	}
	n := len(groups[0]) - 1
	for _, g := range groups[1:] {
		if len(g)-1 != n {
			return 0, fmt.Errorf("%w: %s has %d companies, %s has %d",
				ErrVaryingCompanyCount, groups[0][n].Key(), n, g[len(g)-1].Key(), len(g)-1)
		}
	}
	return n, nil
}
