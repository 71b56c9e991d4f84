package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/xuri/excelize/v2"

	"github.com/warp/production-report/production"
)

// Default output location of the workbook report.
const (
	DefaultPath  = "./teams.xlsx"
	DefaultSheet = "Total"
)

// Cells returns the table as rows of cell values, header first. Absent
// company values are empty strings.
func (t Table) Cells() [][]any {
	header := t.Header()
	cells := make([][]any, 0, len(t.Rows)+1)

	hdr := make([]any, len(header))
	for i, h := range header {
		hdr[i] = h
	}
	cells = append(cells, hdr)

	for _, r := range t.Rows {
		row := []any{r.Date.Format(production.DateLayout), string(r.Reality), string(r.Type)}
		for _, v := range r.Values {
			if v == nil {
				row = append(row, "")
				continue
			}
			row = append(row, *v)
		}
		row = append(row, r.Total)
		cells = append(cells, row)
	}
	return cells
}

// BuildWorkbook renders the table into a new single-sheet workbook.
func BuildWorkbook(t Table, sheet string) (*excelize.File, error) {
	if sheet == "" {
		sheet = DefaultSheet
	}

	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	for i, row := range t.Cells() {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	return f, nil
}

// WriteXLSX writes the table to path, replacing any existing file.
func WriteXLSX(path, sheet string, t Table) error {
	if path == "" {
		path = DefaultPath
	}
	f, err := BuildWorkbook(t, sheet)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save report %s: %w", path, err)
	}
	return nil
}

// WriteTo streams the workbook, e.g. as an HTTP download.
func WriteTo(w io.Writer, sheet string, t Table) error {
	f, err := BuildWorkbook(t, sheet)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to stream report: %w", err)
	}
	return nil
}

// Render prints the table for the terminal.
func Render(w io.Writer, t Table) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	// Company names are case-sensitive.
	tbl.Style().Format.Header = text.FormatDefault
	tbl.Style().Format.Footer = text.FormatDefault

	header := table.Row{}
	for _, h := range t.Header() {
		header = append(header, h)
	}
	tbl.AppendHeader(header)

	for _, r := range t.Rows {
		row := table.Row{r.Date.Format(production.DateLayout), r.Reality, r.Type}
		for _, v := range r.Values {
			if v == nil {
				row = append(row, "-")
				continue
			}
			row = append(row, strconv.FormatInt(*v, 10))
		}
		row = append(row, strconv.FormatInt(r.Total, 10))
		tbl.AppendRow(row)
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("%d rows", len(t.Rows))})
	tbl.Render()
}
