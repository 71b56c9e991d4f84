package store_test

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/production-report/production"
	"github.com/warp/production-report/production/store"
)

func rec(company string, status production.Status, metric production.Metric, day int, value int64) production.MeasurementRecord {
	return production.MeasurementRecord{
		Company: company,
		Status:  status,
		Metric:  metric,
		Date:    production.NewDate(2022, time.December, day),
		Value:   value,
	}
}

func TestMemory_GroupSum(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.InsertAll(ctx, []production.MeasurementRecord{
		rec("b", production.StatusFact, production.MetricOil, 16, 1),
		rec("a", production.StatusFact, production.MetricOil, 16, 2),
		rec("a", production.StatusFact, production.MetricOil, 16, 3),
		rec("a", production.StatusForecast, production.MetricLiquid, 14, 4),
	}))

	byCompany, err := m.GroupSum(ctx, production.FieldCompany)
	require.NoError(t, err)
	assert.Equal(t, []production.GroupSum{
		{Company: "a", Sum: 9},
		{Company: "b", Sum: 1},
	}, byCompany)

	byKey, err := m.GroupSum(ctx, production.FieldStatus, production.FieldMetric, production.FieldDate)
	require.NoError(t, err)
	require.Len(t, byKey, 2)
	assert.Equal(t, production.MetricLiquid, byKey[0].Metric)
	assert.Equal(t, int64(4), byKey[0].Sum)
	assert.Equal(t, int64(6), byKey[1].Sum)
	assert.Empty(t, byKey[1].Company)

	_, err = m.GroupSum(ctx)
	assert.True(t, production.IsStorageError(err))
}

func TestMemory_InsertAllIsAtomic(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	err := m.InsertAll(ctx, []production.MeasurementRecord{
		rec("ok", production.StatusFact, production.MetricOil, 14, 1),
		rec(strings.Repeat("x", 31), production.StatusFact, production.MetricOil, 14, 1),
	})
	require.Error(t, err)
	assert.True(t, production.IsStorageError(err))

	n, err := m.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemory_RecordsAndReset(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.InsertAll(ctx, []production.MeasurementRecord{
		rec("a", production.StatusFact, production.MetricOil, 14, 1),
		rec("b", production.StatusFact, production.MetricOil, 14, 2),
		rec("a", production.StatusForecast, production.MetricOil, 16, 3),
	}))

	got, err := m.Records(ctx, production.RecordFilter{Company: "a"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].Value)
	assert.Equal(t, int64(3), got[1].Value)

	got, err = m.Records(ctx, production.RecordFilter{Date: production.NewDate(2022, time.December, 14)})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	require.NoError(t, m.Reset(ctx))
	n, err := m.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTxMemory_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	tm := store.NewTxMemory()
	require.NoError(t, tm.InsertAll(ctx, []production.MeasurementRecord{
		rec("a", production.StatusFact, production.MetricOil, 14, 1),
	}))

	boom := errors.New("boom")
	err := tm.WithTx(ctx, func(s production.Store) error {
		if err := s.InsertAll(ctx, []production.MeasurementRecord{
			rec("b", production.StatusFact, production.MetricOil, 14, 2),
		}); err != nil {
			return err
		}
		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n, "writes are visible inside the transaction")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, err := tm.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTxMemory_RollbackOnPanic(t *testing.T) {
	ctx := context.Background()
	tm := store.NewTxMemory()

	err := tm.WithTx(ctx, func(s production.Store) error {
		_ = s.InsertAll(ctx, []production.MeasurementRecord{
			rec("a", production.StatusFact, production.MetricOil, 14, 1),
		})
		panic("unexpected")
	})
	require.Error(t, err)

	n, err := tm.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTxMemory_Commit(t *testing.T) {
	ctx := context.Background()
	tm := store.NewTxMemory()

	err := tm.WithTx(ctx, func(s production.Store) error {
		return s.InsertAll(ctx, []production.MeasurementRecord{
			rec("a", production.StatusFact, production.MetricOil, 14, 1),
		})
	})
	require.NoError(t, err)

	n, err := tm.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemory_LengthsCountCharacters(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	// 16 characters, 32 bytes.
	cyrillic := "Нефтегазодобыча1"
	require.NoError(t, m.InsertAll(ctx, []production.MeasurementRecord{
		rec(cyrillic, production.StatusFact, production.MetricOil, 14, 1),
		rec(strings.Repeat("ж", 30), production.StatusFact, production.MetricOil, 14, 1),
	}))

	err := m.InsertAll(ctx, []production.MeasurementRecord{
		rec(strings.Repeat("ж", 31), production.StatusFact, production.MetricOil, 14, 1),
	})
	assert.True(t, production.IsStorageError(err))
}

func TestMemory_GroupSumOverflow(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.InsertAll(ctx, []production.MeasurementRecord{
		rec("a", production.StatusFact, production.MetricOil, 14, math.MaxInt64),
		rec("b", production.StatusFact, production.MetricOil, 14, 1),
	}))

	// Per-company groups stay in range.
	_, err := m.GroupSum(ctx, production.FieldCompany, production.FieldStatus, production.FieldMetric, production.FieldDate)
	require.NoError(t, err)

	_, err = m.GroupSum(ctx, production.FieldStatus, production.FieldMetric, production.FieldDate)
	require.Error(t, err)
	assert.True(t, production.IsStorageError(err))
	assert.Contains(t, err.Error(), "integer overflow")
}
