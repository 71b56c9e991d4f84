// Package sourcetest builds production workbooks for tests.
package sourcetest

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/warp/production-report/production"
)

// FixtureRows is the two-company dataset laid out against the default
// enumeration. Column order:
//
//	fact/Qliq/14, fact/Qliq/16, fact/Qoil/14, fact/Qoil/16,
//	forecast/Qliq/14, forecast/Qliq/16, forecast/Qoil/14, forecast/Qoil/16
func FixtureRows() []production.SourceRow {
	return []production.SourceRow{
		{ID: "1", Company: "company1", Values: []int64{10, 15, 5, 8, 12, 14, 6, 9}},
		{ID: "2", Company: "company2", Values: []int64{11, 26, 7, 3, 13, 16, 20, 4}},
	}
}

// HeaderRows returns the three header rows for enum.
func HeaderRows(enum production.Enumeration) [][]any {
	width := 2 + enum.Size()
	rows := [][]any{make([]any, width), make([]any, width), make([]any, width)}
	rows[0][0], rows[0][1] = "id", "company"

	col := 2
	for _, s := range enum.Statuses {
		rows[0][col] = string(s)
		for _, m := range enum.Metrics {
			rows[1][col] = string(m)
			for _, d := range enum.Dates {
				rows[2][col] = d.Format(production.DateLayout)
				col++
			}
		}
	}
	for _, r := range rows {
		for i, v := range r {
			if v == nil {
				r[i] = ""
			}
		}
	}
	return rows
}

// DataRows converts source rows into sheet rows.
func DataRows(rows []production.SourceRow) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		row := []any{r.ID, r.Company}
		for _, v := range r.Values {
			row = append(row, v)
		}
		out[i] = row
	}
	return out
}

// WriteSheet writes rows to a new single-sheet workbook at path.
func WriteSheet(t testing.TB, path string, rows [][]any) {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("failed to write row %d: %v", i+1, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("failed to save workbook: %v", err)
	}
}

// WriteWorkbook writes a valid workbook for enum and rows into a temp dir and
// returns its path.
func WriteWorkbook(t testing.TB, name string, enum production.Enumeration, rows []production.SourceRow) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	WriteSheet(t, path, append(HeaderRows(enum), DataRows(rows)...))
	return path
}

// WriteFixture writes the default fixture workbook and returns its path.
func WriteFixture(t testing.TB) string {
	t.Helper()
	return WriteWorkbook(t, "testfile.xlsx", production.DefaultEnumeration(), FixtureRows())
}
