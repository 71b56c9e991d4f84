/*
errors.go - Centralized error types for the production engine

ERROR CATEGORIES:
  1. Shape errors - A source row does not match the enumeration
  2. Storage errors - Insert or query failures, trigger rollback
  3. Reconciliation violations - Aggregates that disagree (defects)

USAGE:
    if errors.Is(err, production.ErrShapeMismatch) {
        // the whole file was rejected, nothing was inserted
    }
*/
package production

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrShapeMismatch is returned when a row's value count differs from the
	// enumeration cross-product size.
	ErrShapeMismatch = errors.New("value count does not match enumeration")

	// ErrEmptyCompany is returned for a source row without a company name.
	ErrEmptyCompany = errors.New("empty company name")

	// ErrReservedCompany is returned for a source row whose company name is
	// the scope of the total rows.
	ErrReservedCompany = errors.New("company name is reserved")

	// ErrInvalidEnumeration is returned for an empty or repeating enumeration.
	ErrInvalidEnumeration = errors.New("invalid enumeration")

	// ErrStorage wraps every failure of the record store.
	ErrStorage = errors.New("storage error")

	// ErrReconciliation signals per-company sums that do not add up to the
	// company-wide total. This should never happen and indicates a defect.
	ErrReconciliation = errors.New("reconciliation violation")

	// ErrKeyMismatch is returned when the per-company and total views do not
	// cover the same keys.
	ErrKeyMismatch = errors.New("aggregate views cover different keys")

	// ErrVaryingCompanyCount is returned when the number of companies per key
	// is not constant.
	ErrVaryingCompanyCount = errors.New("company count varies between keys")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ShapeError describes a source row with the wrong number of values.
type ShapeError struct {
	Row     int
	Company string
	Got     int
	Want    int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("row %d (%s): got %d values, want %d", e.Row, e.Company, e.Got, e.Want)
}

func (e *ShapeError) Unwrap() error {
	return ErrShapeMismatch
}

// StorageError wraps a store failure with the operation that failed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrStorage, e.Err}
}

// ReconciliationError describes a key whose company sums disagree with the total.
type ReconciliationError struct {
	Key        Key
	CompanySum int64
	Total      int64
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconciliation violation for %s: companies sum to %d, total is %d",
		e.Key, e.CompanySum, e.Total)
}

func (e *ReconciliationError) Unwrap() error {
	return ErrReconciliation
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsShapeError returns true if the error rejects a source file's layout.
func IsShapeError(err error) bool {
	return errors.Is(err, ErrShapeMismatch) ||
		errors.Is(err, ErrEmptyCompany) ||
		errors.Is(err, ErrReservedCompany)
}

// IsStorageError returns true if the error came from the record store.
func IsStorageError(err error) bool {
	return errors.Is(err, ErrStorage)
}

// IsDefect returns true if the error signals a broken internal invariant.
func IsDefect(err error) bool {
	return errors.Is(err, ErrReconciliation) || errors.Is(err, ErrKeyMismatch)
}

// keyMismatchError names a key present in only one aggregate view.
type keyMismatchError struct {
	key  Key
	side string
}

func (e *keyMismatchError) Error() string {
	return fmt.Sprintf("no %s rows for %s", e.side, e.key)
}

func (e *keyMismatchError) Unwrap() error {
	return ErrKeyMismatch
}
