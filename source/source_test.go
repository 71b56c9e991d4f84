package source_test

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/warp/production-report/production"
	"github.com/warp/production-report/source"
	"github.com/warp/production-report/source/sourcetest"
)

func TestCheckFile(t *testing.T) {
	dir := t.TempDir()

	_, err := source.CheckFile(filepath.Join(dir, "missing.xlsx"))
	assert.ErrorIs(t, err, source.ErrFileNotFound)

	_, err = source.CheckFile(dir)
	assert.ErrorIs(t, err, source.ErrFileNotFound, "directories are not files")

	csv := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(csv, []byte("id,company\n"), 0o644))
	_, err = source.CheckFile(csv)
	assert.ErrorIs(t, err, source.ErrWrongFormat)

	path := sourcetest.WriteFixture(t)
	got, err := source.CheckFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, got)
}

func TestReadFile_Fixture(t *testing.T) {
	rows, err := source.ReadFile(sourcetest.WriteFixture(t), production.DefaultEnumeration())
	require.NoError(t, err)
	assert.Equal(t, sourcetest.FixtureRows(), rows)
}

func TestDecode_Stream(t *testing.T) {
	data, err := os.ReadFile(sourcetest.WriteFixture(t))
	require.NoError(t, err)

	rows, err := source.Decode(bytes.NewReader(data), production.DefaultEnumeration())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "company2", rows[1].Company)
}

func TestReadFile_TooManySheets(t *testing.T) {
	path := sourcetest.WriteFixture(t)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	_, err = f.NewSheet("Extra")
	require.NoError(t, err)
	require.NoError(t, f.Save())
	require.NoError(t, f.Close())

	_, err = source.ReadFile(path, production.DefaultEnumeration())
	assert.ErrorIs(t, err, source.ErrTooManySheets)
}

func TestReadFile_BadHeader(t *testing.T) {
	enum := production.DefaultEnumeration()

	tests := []struct {
		name   string
		mutate func(header [][]any)
	}{
		{"missing id", func(h [][]any) { h[0][0] = "key" }},
		{"status swapped", func(h [][]any) { h[0][2], h[0][6] = "forecast", "fact" }},
		{"metric misplaced", func(h [][]any) { h[1][4] = "" }},
		{"dates differ between blocks", func(h [][]any) { h[2][9] = "2022-12-17" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := sourcetest.HeaderRows(enum)
			tt.mutate(header)

			path := filepath.Join(t.TempDir(), "bad.xlsx")
			sourcetest.WriteSheet(t, path, append(header, sourcetest.DataRows(sourcetest.FixtureRows())...))

			_, err := source.ReadFile(path, enum)
			assert.ErrorIs(t, err, source.ErrBadHeader)
		})
	}
}

func TestReadFile_CustomEnumeration(t *testing.T) {
	enum, err := production.NewEnumeration(
		[]production.Status{production.StatusFact},
		[]production.Metric{production.MetricOil},
		[]time.Time{production.NewDate(2023, time.March, 1), production.NewDate(2023, time.March, 2), production.NewDate(2023, time.March, 3)},
	)
	require.NoError(t, err)

	path := sourcetest.WriteWorkbook(t, "march.xlsx", enum, []production.SourceRow{
		{ID: "7", Company: "delta", Values: []int64{1, 2, 3}},
	})

	rows, err := source.ReadFile(path, enum)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []int64{1, 2, 3}, rows[0].Values)

	_, err = source.ReadFile(path, production.DefaultEnumeration())
	assert.ErrorIs(t, err, source.ErrBadHeader)
}

func TestDecodeRows(t *testing.T) {
	t.Run("skips blank rows and accepts integral decimals", func(t *testing.T) {
		rows, err := source.DecodeRows([][]string{
			{"1", " north ", "10", "1,200", "3.0"},
			{"", "", ""},
			nil,
			{"2", "south", "-4"},
		}, source.HeaderRows)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "north", rows[0].Company)
		assert.Equal(t, []int64{10, 1200, 3}, rows[0].Values)
		assert.Equal(t, []int64{-4}, rows[1].Values)
	})

	t.Run("fractional value", func(t *testing.T) {
		_, err := source.DecodeRows([][]string{{"1", "north", "10", "2.5"}}, source.HeaderRows)

		var cellErr *source.CellError
		require.ErrorAs(t, err, &cellErr)
		assert.Equal(t, "D4", cellErr.Cell)
		assert.ErrorIs(t, err, source.ErrInvalidValue)
	})

	t.Run("text value", func(t *testing.T) {
		_, err := source.DecodeRows([][]string{{"1", "north", "n/a"}}, source.HeaderRows)
		assert.ErrorIs(t, err, source.ErrInvalidValue)
	})

	t.Run("value beyond int64", func(t *testing.T) {
		for _, raw := range []string{"18446744073709551617", "99999999999999999999", "-9223372036854775809"} {
			_, err := source.DecodeRows([][]string{{"1", "north", "10", raw}}, source.HeaderRows)

			var cellErr *source.CellError
			require.ErrorAs(t, err, &cellErr, raw)
			assert.Equal(t, "D4", cellErr.Cell)
			assert.ErrorIs(t, err, source.ErrInvalidValue)
		}
	})

	t.Run("int64 bounds", func(t *testing.T) {
		rows, err := source.DecodeRows([][]string{{"1", "north", "9223372036854775807", "-9223372036854775808"}}, source.HeaderRows)
		require.NoError(t, err)
		assert.Equal(t, []int64{math.MaxInt64, math.MinInt64}, rows[0].Values)
	})

	t.Run("empty cell between values", func(t *testing.T) {
		_, err := source.DecodeRows([][]string{{"1", "north", "", "4"}}, 5)

		var cellErr *source.CellError
		require.ErrorAs(t, err, &cellErr)
		assert.Equal(t, "C6", cellErr.Cell)
	})
}

func TestReadFile_ShortRowReachesNormalizer(t *testing.T) {
	enum := production.DefaultEnumeration()
	path := sourcetest.WriteWorkbook(t, "short.xlsx", enum, []production.SourceRow{
		{ID: "1", Company: "company1", Values: []int64{1, 2, 3}},
	})

	rows, err := source.ReadFile(path, enum)
	require.NoError(t, err)

	_, err = production.NewNormalizer(enum).NormalizeAll(rows)
	assert.ErrorIs(t, err, production.ErrShapeMismatch)
}
