/*
store.go - Persistence interface for measurement records

PURPOSE:
  Defines the interface between the engine and the record store. Records
  are written in atomic batches and read back either raw or as grouped sums.

KEY INTERFACES:
  Store:   Bulk insert, grouped sums, record queries, reset
  TxStore: Scoped transactions (commit on success, rollback on any failure)

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go:     SQLite
  - production/store/memory.go: In-memory for testing
*/
package production

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Field names a column that grouped sums can be grouped by.
type Field string

const (
	FieldCompany Field = "company"
	FieldStatus  Field = "status"
	FieldMetric  Field = "metric"
	FieldDate    Field = "date"
)

// GroupSum is one row of a grouped-sum query. Fields that were not part of
// the grouping are left at their zero value.
type GroupSum struct {
	Company string
	Status  Status
	Metric  Metric
	Date    time.Time
	Sum     int64
}

// RecordFilter selects stored records. Zero fields match everything.
type RecordFilter struct {
	Company string
	Status  Status
	Metric  Metric
	Date    time.Time
}

// Match reports whether the record satisfies the filter.
func (f RecordFilter) Match(r MeasurementRecord) bool {
	if f.Company != "" && f.Company != r.Company {
		return false
	}
	if f.Status != "" && f.Status != r.Status {
		return false
	}
	if f.Metric != "" && f.Metric != r.Metric {
		return false
	}
	if !f.Date.IsZero() && !f.Date.Equal(r.Date) {
		return false
	}
	return true
}

// Store persists measurement records.
type Store interface {
	// InsertAll persists a batch atomically. Either all records are stored
	// or none are.
	InsertAll(ctx context.Context, records []MeasurementRecord) error

	// GroupSum sums values grouped by the given fields, ordered by date,
	// metric, status and company (restricted to the grouped fields).
	GroupSum(ctx context.Context, fields ...Field) ([]GroupSum, error)

	// Records returns matching records in insertion order.
	Records(ctx context.Context, filter RecordFilter) ([]MeasurementRecord, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Reset deletes every record.
	Reset(ctx context.Context) error
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns an error or panics, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// ValidateFields rejects an empty or repeating grouping.
func ValidateFields(fields []Field) error {
	if len(fields) == 0 {
		return &StorageError{Op: "group sum", Err: errNoFields}
	}
	seen := make(map[Field]bool, len(fields))
	for _, f := range fields {
		switch f {
		case FieldCompany, FieldStatus, FieldMetric, FieldDate:
		default:
			return &StorageError{Op: "group sum", Err: &unknownFieldError{field: f}}
		}
		if seen[f] {
			return &StorageError{Op: "group sum", Err: &unknownFieldError{field: f, repeated: true}}
		}
		seen[f] = true
	}
	return nil
}

// OrderedFields returns the grouped fields in sort precedence:
// date, metric, status, company.
func OrderedFields(fields []Field) []Field {
	grouped := make(map[Field]bool, len(fields))
	for _, f := range fields {
		grouped[f] = true
	}
	var out []Field
	for _, f := range []Field{FieldDate, FieldMetric, FieldStatus, FieldCompany} {
		if grouped[f] {
			out = append(out, f)
		}
	}
	return out
}

var errNoFields = errors.New("no grouping fields")

type unknownFieldError struct {
	field    Field
	repeated bool
}

func (e *unknownFieldError) Error() string {
	if e.repeated {
		return fmt.Sprintf("grouping field %q repeated", e.field)
	}
	return fmt.Sprintf("unknown grouping field %q", e.field)
}
