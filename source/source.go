/*
Package source reads production workbooks.

WORKBOOK LAYOUT:
  A single sheet. Rows 0-2 are a fixed header, data starts at row 3.

    row 0: id | company | fact |      |      |      | forecast |      |      |
    row 1:    |         | Qliq |      | Qoil |      | Qliq     |      | Qoil |
    row 2:    |         | d1   | d2   | d1   | d2   | d1       | d2   | d1   | d2
    row 3+: <id> | <company> | <values...>

  The layout above is the default enumeration; blocks widen or narrow with
  the configured statuses, metrics and dates. The date labels in row 2 must
  repeat identically under every (status, metric) pair.

VALUES:
  Cells are decoded as decimals and must be integral ("10" and "10.0" are
  accepted, "10.5" is not) and fit in an int64. Trailing blank cells are not padded; the
  normalizer rejects short rows.
*/
package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/warp/production-report/production"
)

// Extension is the only accepted source file extension.
const Extension = ".xlsx"

// HeaderRows is the number of header rows preceding the data.
const HeaderRows = 3

// FirstValueColumn is the 0-based column of the first value, after id and
// company.
const FirstValueColumn = 2

var (
	ErrFileNotFound  = errors.New("file not found")
	ErrWrongFormat   = errors.New("wrong file format")
	ErrTooManySheets = errors.New("too many data sheets in file")
	ErrBadHeader     = errors.New("unexpected table header")
	ErrInvalidValue  = errors.New("invalid value")
)

// CellError locates an undecodable cell.
type CellError struct {
	Cell  string
	Value string
	Err   error
}

func (e *CellError) Error() string {
	return fmt.Sprintf("cell %s: %q: %v", e.Cell, e.Value, e.Err)
}

func (e *CellError) Unwrap() error {
	return ErrInvalidValue
}

// CheckFile verifies that path is an existing regular file with the
// .xlsx extension.
func CheckFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	if !strings.EqualFold(filepath.Ext(path), Extension) {
		return "", fmt.Errorf("%w: %s", ErrWrongFormat, path)
	}
	return path, nil
}

// ReadFile opens and decodes a workbook from disk.
func ReadFile(path string, enum production.Enumeration) ([]production.SourceRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()
	return decodeWorkbook(f, enum)
}

// Decode reads a workbook from a stream.
func Decode(r io.Reader, enum production.Enumeration) ([]production.SourceRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()
	return decodeWorkbook(f, enum)
}

func decodeWorkbook(f *excelize.File, enum production.Enumeration) ([]production.SourceRow, error) {
	sheets := f.GetSheetList()
	if len(sheets) > 1 {
		return nil, fmt.Errorf("%w: %d sheets", ErrTooManySheets, len(sheets))
	}
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: no sheets", ErrBadHeader)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if err := CheckHeader(rows, enum); err != nil {
		return nil, err
	}
	return DecodeRows(rows[HeaderRows:], HeaderRows)
}

// CheckHeader validates the three header rows against the enumeration:
// statuses label the first column of their block in row 0, metrics the first
// column of their sub-block in row 1, and the date labels in row 2 repeat
// identically under every (status, metric) pair.
func CheckHeader(rows [][]string, enum production.Enumeration) error {
	if len(rows) < HeaderRows {
		return fmt.Errorf("%w: %d rows, want at least %d", ErrBadHeader, len(rows), HeaderRows)
	}
	cell := func(row, col int) string {
		if col >= len(rows[row]) {
			return ""
		}
		return strings.TrimSpace(rows[row][col])
	}
	ref := func(row, col int) string {
		name, _ := excelize.CoordinatesToCellName(col+1, row+1)
		return name
	}

	if cell(0, 0) != "id" {
		return fmt.Errorf("%w: %s must be id", ErrBadHeader, ref(0, 0))
	}
	if cell(0, 1) != "company" {
		return fmt.Errorf("%w: %s must be company", ErrBadHeader, ref(0, 1))
	}

	dates := len(enum.Dates)
	block := len(enum.Metrics) * dates
	for si, status := range enum.Statuses {
		col := FirstValueColumn + si*block
		if cell(0, col) != string(status) {
			return fmt.Errorf("%w: %s must be %s", ErrBadHeader, ref(0, col), status)
		}
		for mi, metric := range enum.Metrics {
			col := FirstValueColumn + si*block + mi*dates
			if cell(1, col) != string(metric) {
				return fmt.Errorf("%w: %s must be %s", ErrBadHeader, ref(1, col), metric)
			}
			for di := 0; di < dates; di++ {
				want := cell(2, FirstValueColumn+di)
				if got := cell(2, col+di); got != want {
					return fmt.Errorf("%w: %s is %q, want %q as in %s",
						ErrBadHeader, ref(2, col+di), got, want, ref(2, FirstValueColumn+di))
				}
			}
		}
	}
	return nil
}

// DecodeRows converts data rows into source rows. offset is the sheet row
// index of rows[0], used for cell references in errors. Blank rows are
// skipped.
func DecodeRows(rows [][]string, offset int) ([]production.SourceRow, error) {
	var result []production.SourceRow
	for i, row := range rows {
		if isBlank(row) {
			continue
		}

		src := production.SourceRow{}
		if len(row) > 0 {
			src.ID = strings.TrimSpace(row[0])
		}
		if len(row) > 1 {
			src.Company = strings.TrimSpace(row[1])
		}

		for col := FirstValueColumn; col < len(row); col++ {
			v, err := parseValue(row[col])
			if err != nil {
				ref, _ := excelize.CoordinatesToCellName(col+1, offset+i+1)
				return nil, &CellError{Cell: ref, Value: row[col], Err: err}
			}
			src.Values = append(src.Values, v)
		}
		result = append(result, src)
	}
	return result, nil
}

func parseValue(raw string) (int64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if s == "" {
		return 0, errors.New("empty cell")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	if !d.IsInteger() {
		return 0, errors.New("not an integer")
	}
	if !d.BigInt().IsInt64() {
		return 0, errors.New("out of int64 range")
	}
	return d.IntPart(), nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
