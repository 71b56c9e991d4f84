// Package report pivots a merged sequence into a wide table and writes it
// out as a workbook or a console table.
package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/warp/production-report/production"
)

// Fixed column headers of the report.
const (
	ColumnDate    = "Date"
	ColumnReality = "Reality"
	ColumnType    = "Type"
	ColumnTotal   = "Total"
)

// ErrMalformedSequence is returned when a merged sequence does not end each
// key group with a total row.
var ErrMalformedSequence = errors.New("malformed merged sequence")

// Row is one key group of the report.
type Row struct {
	Date    time.Time
	Reality production.Status
	Type    production.Metric
	// Values holds one sum per company column; nil marks a company absent
	// from this group.
	Values []*int64
	Total  int64
}

// Table is the pivoted report.
type Table struct {
	Companies []string
	Rows      []Row
}

// Header returns the column names in output order.
func (t Table) Header() []string {
	header := []string{ColumnDate, ColumnReality, ColumnType}
	header = append(header, t.Companies...)
	return append(header, ColumnTotal)
}

// Pivot turns every (company rows + total row) group of seq into one row.
// Company columns appear in first-seen order, which for a constant company
// set is the order of the first key group.
func Pivot(seq production.MergedSequence) (Table, error) {
	var (
		table   Table
		columns = make(map[string]int)
		pending []production.AggregateRow
	)

	for _, row := range seq {
		if !row.IsTotal() {
			if len(pending) > 0 && !sameKey(pending[0], row) {
				return Table{}, fmt.Errorf("%w: %s rows not closed by a total before %s",
					ErrMalformedSequence, pending[0].Key(), row.Key())
			}
			if _, ok := columns[row.Scope]; !ok {
				columns[row.Scope] = len(table.Companies)
				table.Companies = append(table.Companies, row.Scope)
			}
			pending = append(pending, row)
			continue
		}

		for _, p := range pending {
			if !sameKey(p, row) {
				return Table{}, fmt.Errorf("%w: company row %s under total %s",
					ErrMalformedSequence, p.Key(), row.Key())
			}
		}
		table.Rows = append(table.Rows, Row{
			Date:    row.Date,
			Reality: row.Status,
			Type:    row.Metric,
			Values:  collect(pending, columns),
			Total:   row.Sum,
		})
		pending = pending[:0]
	}

	if len(pending) > 0 {
		return Table{}, fmt.Errorf("%w: trailing rows for %s without a total", ErrMalformedSequence, pending[0].Key())
	}

	// Rows built before a later company first appeared are shorter.
	for i := range table.Rows {
		for len(table.Rows[i].Values) < len(table.Companies) {
			table.Rows[i].Values = append(table.Rows[i].Values, nil)
		}
	}
	return table, nil
}

func collect(rows []production.AggregateRow, columns map[string]int) []*int64 {
	values := make([]*int64, len(columns))
	for _, r := range rows {
		sum := r.Sum
		values[columns[r.Scope]] = &sum
	}
	return values
}

func sameKey(a, b production.AggregateRow) bool {
	return a.Status == b.Status && a.Metric == b.Metric && a.Date.Equal(b.Date)
}
