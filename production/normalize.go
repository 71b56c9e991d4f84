package production

import (
	"context"
	"fmt"
	"strings"
)

// =============================================================================
// NORMALIZER - Wide row to atomic records
// =============================================================================

// Normalizer expands source rows against an Enumeration.
type Normalizer struct {
	Enum Enumeration
}

// NewNormalizer creates a normalizer for the given enumeration.
func NewNormalizer(enum Enumeration) *Normalizer {
	return &Normalizer{Enum: enum}
}

// Normalize pairs each value of the row, in order, with the next key of the
// enumeration's cross product. The row must carry exactly Enum.Size() values.
func (n *Normalizer) Normalize(row SourceRow) ([]MeasurementRecord, error) {
	return n.normalize(0, row)
}

// NormalizeAll normalizes every row of a file. A single bad row rejects the
// whole file.
func (n *Normalizer) NormalizeAll(rows []SourceRow) ([]MeasurementRecord, error) {
	records := make([]MeasurementRecord, 0, len(rows)*n.Enum.Size())
	for i, row := range rows {
		recs, err := n.normalize(i, row)
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}
	return records, nil
}

func (n *Normalizer) normalize(index int, row SourceRow) ([]MeasurementRecord, error) {
	company := strings.TrimSpace(row.Company)
	if company == "" {
		return nil, fmt.Errorf("row %d: %w", index, ErrEmptyCompany)
	}
	if company == ScopeTotal {
		return nil, fmt.Errorf("row %d: %w: %q", index, ErrReservedCompany, company)
	}

	keys := n.Enum.Keys()
	if len(row.Values) != len(keys) {
		return nil, &ShapeError{Row: index, Company: company, Got: len(row.Values), Want: len(keys)}
	}

	records := make([]MeasurementRecord, len(keys))
	for i, k := range keys {
		records[i] = MeasurementRecord{
			Company: company,
			Status:  k.Status,
			Metric:  k.Metric,
			Date:    k.Date,
			Value:   row.Values[i],
		}
	}
	return records, nil
}

// =============================================================================
// LOADER - Normalize and insert one file as a unit
// =============================================================================

// Loader normalizes a file's rows and stores them in a single transaction.
type Loader struct {
	Store      TxStore
	Normalizer *Normalizer
}

// NewLoader creates a loader.
func NewLoader(store TxStore, enum Enumeration) *Loader {
	return &Loader{Store: store, Normalizer: NewNormalizer(enum)}
}

// Load inserts all records of the rows, or none of them. It returns the
// number of records stored.
func (l *Loader) Load(ctx context.Context, rows []SourceRow) (int, error) {
	records, err := l.Normalizer.NormalizeAll(rows)
	if err != nil {
		return 0, err
	}

	err = l.Store.WithTx(ctx, func(s Store) error {
		return s.InsertAll(ctx, records)
	})
	if err != nil {
		return 0, err
	}
	return len(records), nil
}
