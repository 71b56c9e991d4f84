// Package store provides Store implementations.
package store

import (
	"context"
	"fmt"
	"math"
	"sync"
	"unicode/utf8"

	"github.com/warp/production-report/production"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	records []production.MeasurementRecord
}

func NewMemory() *Memory {
	return &Memory{}
}

// InsertAll appends a batch. Validation runs before any write so a rejected
// batch leaves the store untouched.
func (m *Memory) InsertAll(_ context.Context, records []production.MeasurementRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(records)
}

func (m *Memory) insertLocked(records []production.MeasurementRecord) error {
	for i, r := range records {
		if err := validate(r); err != nil {
			return &production.StorageError{Op: "insert", Err: fmt.Errorf("record %d: %w", i, err)}
		}
	}
	m.records = append(m.records, records...)
	return nil
}

// validate mirrors the column constraints of the SQLite schema. Lengths are
// in characters, as SQLite's length() counts them.
func validate(r production.MeasurementRecord) error {
	switch {
	case r.Company == "":
		return fmt.Errorf("company is required")
	case utf8.RuneCountInString(r.Company) > 30:
		return fmt.Errorf("company %q longer than 30 characters", r.Company)
	case r.Status == "" || utf8.RuneCountInString(string(r.Status)) > 10:
		return fmt.Errorf("invalid status %q", r.Status)
	case r.Metric == "" || utf8.RuneCountInString(string(r.Metric)) > 10:
		return fmt.Errorf("invalid metric %q", r.Metric)
	}
	return nil
}

func (m *Memory) GroupSum(_ context.Context, fields ...production.Field) ([]production.GroupSum, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return groupSum(m.records, fields)
}

func (m *Memory) Records(_ context.Context, filter production.RecordFilter) ([]production.MeasurementRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return filterRecords(m.records, filter), nil
}

func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
	return nil
}

func groupSum(records []production.MeasurementRecord, fields []production.Field) ([]production.GroupSum, error) {
	if err := production.ValidateFields(fields); err != nil {
		return nil, err
	}

	grouped := make(map[production.GroupSum]int64)
	var order []production.GroupSum
	for _, r := range records {
		var k production.GroupSum
		for _, f := range fields {
			switch f {
			case production.FieldCompany:
				k.Company = r.Company
			case production.FieldStatus:
				k.Status = r.Status
			case production.FieldMetric:
				k.Metric = r.Metric
			case production.FieldDate:
				k.Date = production.NewDate(r.Date.Date())
			}
		}
		sum, ok := grouped[k]
		if !ok {
			order = append(order, k)
		}
		if overflows(sum, r.Value) {
			return nil, &production.StorageError{Op: "group sum", Err: fmt.Errorf("integer overflow")}
		}
		grouped[k] = sum + r.Value
	}

	result := make([]production.GroupSum, len(order))
	for i, k := range order {
		k.Sum = grouped[k]
		result[i] = k
	}
	production.SortGroupSums(result, fields)
	return result, nil
}

// overflows reports whether a+b falls outside the int64 range, where SQLite's
// SUM fails.
func overflows(a, b int64) bool {
	return (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b)
}

func filterRecords(records []production.MeasurementRecord, filter production.RecordFilter) []production.MeasurementRecord {
	var result []production.MeasurementRecord
	for _, r := range records {
		if filter.Match(r) {
			result = append(result, r)
		}
	}
	return result
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(production.Store) error) (err error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := append([]production.MeasurementRecord(nil), tm.records...)

	defer func() {
		if p := recover(); p != nil {
			tm.records = snapshot
			err = fmt.Errorf("panic in transaction: %v", p)
		}
	}()

	if err := fn(&txMemoryView{parent: tm}); err != nil {
		tm.records = snapshot
		return err
	}
	return nil
}

type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) InsertAll(_ context.Context, records []production.MeasurementRecord) error {
	return tv.parent.insertLocked(records)
}

func (tv *txMemoryView) GroupSum(_ context.Context, fields ...production.Field) ([]production.GroupSum, error) {
	return groupSum(tv.parent.records, fields)
}

func (tv *txMemoryView) Records(_ context.Context, filter production.RecordFilter) ([]production.MeasurementRecord, error) {
	return filterRecords(tv.parent.records, filter), nil
}

func (tv *txMemoryView) Count(_ context.Context) (int, error) {
	return len(tv.parent.records), nil
}

func (tv *txMemoryView) Reset(_ context.Context) error {
	tv.parent.records = nil
	return nil
}
