package production_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/production-report/production"
	"github.com/warp/production-report/production/store"
)

func d(day int) time.Time {
	return production.NewDate(2022, time.December, day)
}

func TestEnumeration_KeysNestedOrder(t *testing.T) {
	enum := production.DefaultEnumeration()
	keys := enum.Keys()

	require.Len(t, keys, 8)
	assert.Equal(t, 8, enum.Size())

	// Dates innermost, then metrics, statuses outermost.
	want := []production.Key{
		{Status: production.StatusFact, Metric: production.MetricLiquid, Date: d(14)},
		{Status: production.StatusFact, Metric: production.MetricLiquid, Date: d(16)},
		{Status: production.StatusFact, Metric: production.MetricOil, Date: d(14)},
		{Status: production.StatusFact, Metric: production.MetricOil, Date: d(16)},
		{Status: production.StatusForecast, Metric: production.MetricLiquid, Date: d(14)},
		{Status: production.StatusForecast, Metric: production.MetricLiquid, Date: d(16)},
		{Status: production.StatusForecast, Metric: production.MetricOil, Date: d(14)},
		{Status: production.StatusForecast, Metric: production.MetricOil, Date: d(16)},
	}
	assert.Equal(t, want, keys)
}

func TestNewEnumeration_RejectsEmptyAndDuplicates(t *testing.T) {
	statuses := []production.Status{production.StatusFact}
	metrics := []production.Metric{production.MetricOil}
	dates := []time.Time{d(14)}

	_, err := production.NewEnumeration(nil, metrics, dates)
	assert.ErrorIs(t, err, production.ErrInvalidEnumeration)

	_, err = production.NewEnumeration([]production.Status{"fact", "fact"}, metrics, dates)
	assert.ErrorIs(t, err, production.ErrInvalidEnumeration)

	_, err = production.NewEnumeration(statuses, metrics, []time.Time{d(14), d(14).Add(3 * time.Hour)})
	assert.ErrorIs(t, err, production.ErrInvalidEnumeration, "same calendar day twice")

	enum, err := production.NewEnumeration(statuses, metrics, []time.Time{time.Date(2023, 1, 2, 15, 4, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.Equal(t, production.NewDate(2023, time.January, 2), enum.Dates[0], "dates are truncated to midnight")
}

func TestNormalize_EmitsOneRecordPerKey(t *testing.T) {
	enum := production.DefaultEnumeration()
	n := production.NewNormalizer(enum)

	records, err := n.Normalize(production.SourceRow{
		ID:      "1",
		Company: " company1 ",
		Values:  []int64{1, 2, 3, 4, 5, 6, 7, 8},
	})
	require.NoError(t, err)
	require.Len(t, records, enum.Size())

	seen := make(map[string]bool)
	for i, r := range records {
		assert.Equal(t, "company1", r.Company)
		assert.Equal(t, int64(i+1), r.Value, "values pair positionally with keys")
		assert.Equal(t, enum.Keys()[i], r.Key())
		assert.False(t, seen[r.Key().String()], "duplicate key %s", r.Key())
		seen[r.Key().String()] = true
	}

	// fact/Qoil/16 is the fourth column.
	assert.Equal(t, production.StatusFact, records[3].Status)
	assert.Equal(t, production.MetricOil, records[3].Metric)
	assert.Equal(t, d(16), records[3].Date)
	assert.Equal(t, int64(4), records[3].Value)
}

func TestNormalize_ShapeMismatch(t *testing.T) {
	n := production.NewNormalizer(production.DefaultEnumeration())

	for _, values := range [][]int64{{1, 2, 3, 4, 5, 6, 7}, {1, 2, 3, 4, 5, 6, 7, 8, 9}, nil} {
		_, err := n.Normalize(production.SourceRow{Company: "c", Values: values})
		require.Error(t, err)

		var shapeErr *production.ShapeError
		require.ErrorAs(t, err, &shapeErr)
		assert.Equal(t, len(values), shapeErr.Got)
		assert.Equal(t, 8, shapeErr.Want)
		assert.True(t, production.IsShapeError(err))
	}
}

func TestNormalize_EmptyCompany(t *testing.T) {
	n := production.NewNormalizer(production.DefaultEnumeration())
	_, err := n.Normalize(production.SourceRow{Company: "  ", Values: make([]int64, 8)})
	assert.ErrorIs(t, err, production.ErrEmptyCompany)
}

func TestNormalize_ReservedCompany(t *testing.T) {
	n := production.NewNormalizer(production.DefaultEnumeration())

	_, err := n.Normalize(production.SourceRow{Company: " total ", Values: make([]int64, 8)})
	require.ErrorIs(t, err, production.ErrReservedCompany)
	assert.True(t, production.IsShapeError(err))

	// Only the exact scope name is reserved.
	recs, err := n.Normalize(production.SourceRow{Company: "Total", Values: make([]int64, 8)})
	require.NoError(t, err)
	assert.Len(t, recs, 8)
}

func TestLoader_ReservedCompanyInsertsNothing(t *testing.T) {
	ctx := context.Background()
	s := store.NewTxMemory()
	loader := production.NewLoader(s, production.DefaultEnumeration())

	_, err := loader.Load(ctx, []production.SourceRow{
		{Company: "company1", Values: make([]int64, 8)},
		{Company: "total", Values: make([]int64, 8)},
	})
	require.ErrorIs(t, err, production.ErrReservedCompany)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNormalizeAll_BadRowRejectsFile(t *testing.T) {
	n := production.NewNormalizer(production.DefaultEnumeration())
	_, err := n.NormalizeAll([]production.SourceRow{
		{Company: "company1", Values: make([]int64, 8)},
		{Company: "company2", Values: make([]int64, 6)},
	})

	var shapeErr *production.ShapeError
	require.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, 1, shapeErr.Row)
	assert.Equal(t, "company2", shapeErr.Company)
}

func TestLoader_ShapeErrorInsertsNothing(t *testing.T) {
	ctx := context.Background()
	s := store.NewTxMemory()
	loader := production.NewLoader(s, production.DefaultEnumeration())

	_, err := loader.Load(ctx, []production.SourceRow{
		{Company: "company1", Values: make([]int64, 8)},
		{Company: "company2", Values: make([]int64, 9)},
	})
	require.ErrorIs(t, err, production.ErrShapeMismatch)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLoader_StorageErrorRollsBack(t *testing.T) {
	ctx := context.Background()
	s := store.NewTxMemory()
	loader := production.NewLoader(s, production.DefaultEnumeration())

	_, err := loader.Load(ctx, []production.SourceRow{{Company: "company1", Values: make([]int64, 8)}})
	require.NoError(t, err)

	// Company names longer than 30 characters violate the store constraint.
	_, err = loader.Load(ctx, []production.SourceRow{
		{Company: "company2", Values: make([]int64, 8)},
		{Company: "a company name that is far too long for the column", Values: make([]int64, 8)},
	})
	require.Error(t, err)
	assert.True(t, production.IsStorageError(err))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, n, "only the first file's records remain")
}

func TestLoader_ReturnsRecordCount(t *testing.T) {
	ctx := context.Background()
	s := store.NewTxMemory()
	loader := production.NewLoader(s, production.DefaultEnumeration())

	n, err := loader.Load(ctx, fixtureRows())
	require.NoError(t, err)
	assert.Equal(t, 16, n)

	recs, err := s.Records(ctx, production.RecordFilter{Company: "company2"})
	require.NoError(t, err)
	assert.Len(t, recs, 8)
}

func TestShapeError_Unwrap(t *testing.T) {
	err := &production.ShapeError{Row: 2, Company: "x", Got: 3, Want: 8}
	assert.True(t, errors.Is(err, production.ErrShapeMismatch))
	assert.Contains(t, err.Error(), "got 3 values, want 8")
}
