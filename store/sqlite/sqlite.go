/*
Package sqlite provides a SQLite-backed implementation of production.TxStore.

PURPOSE:
  Durable, queryable storage of normalized measurement records. The engine
  only needs bulk insert and grouped sums; the rest (record queries, import
  summaries, reset) serves the CLI and the HTTP API.

KEY TABLES:
  worktable: One row per MeasurementRecord. Append-only except for Reset.
    f_type = status (fact/forecast), q_type = metric (Qliq/Qoil),
    date   = YYYY-MM-DD text so lexical order is calendar order,
    import_id groups the records of one InsertAll batch.

INDEXES:
  - idx_worktable_report: (date, q_type, f_type, company), the grouped-sum
    sort order
  - idx_worktable_import: import summaries

TRANSACTIONS:
  InsertAll on the Store opens its own transaction. Inside WithTx every
  operation joins the caller's transaction; WithTx commits when fn returns
  nil and rolls back on error or panic.

CONCURRENCY:
  Uses sync.RWMutex so the HTTP server and the CLI can share one Store.

USAGE:
  store, err := sqlite.New("./production.db")
  if err != nil {
      return err
  }
  defer store.Close()

  loader := production.NewLoader(store, enum)

SEE ALSO:
  - production/store.go: Interface definitions
  - production/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/warp/production-report/production"
)

// Store implements production.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_journal_mode=WAL"
	if dbPath == ":memory:" {
		dsn = dbPath
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// An in-memory database lives and dies with its connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS worktable (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company TEXT NOT NULL CHECK (length(company) BETWEEN 1 AND 30),
		f_type TEXT NOT NULL CHECK (length(f_type) BETWEEN 1 AND 10),
		q_type TEXT NOT NULL CHECK (length(q_type) BETWEEN 1 AND 10),
		date TEXT NOT NULL,
		value INTEGER NOT NULL,
		import_id TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_worktable_report
		ON worktable(date, q_type, f_type, company);

	CREATE INDEX IF NOT EXISTS idx_worktable_import
		ON worktable(import_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// STORE (production.Store interface)
// =============================================================================

// InsertAll stores a batch in its own transaction.
func (s *Store) InsertAll(ctx context.Context, records []production.MeasurementRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &production.StorageError{Op: "begin", Err: err}
	}
	defer sqlTx.Rollback()

	if err := insertAll(ctx, sqlTx, records); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return &production.StorageError{Op: "commit", Err: err}
	}
	return nil
}

func (s *Store) GroupSum(ctx context.Context, fields ...production.Field) ([]production.GroupSum, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return groupSum(ctx, s.db, fields)
}

func (s *Store) Records(ctx context.Context, filter production.RecordFilter) ([]production.MeasurementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryRecords(ctx, s.db, filter)
}

func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return count(ctx, s.db)
}

// Reset deletes every record.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return reset(ctx, s.db)
}

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(production.Store) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &production.StorageError{Op: "begin", Err: err}
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			err = fmt.Errorf("panic in transaction: %v", p)
		} else if err != nil {
			_ = sqlTx.Rollback()
		} else if commitErr := sqlTx.Commit(); commitErr != nil {
			err = &production.StorageError{Op: "commit", Err: commitErr}
		}
	}()

	return fn(&txStore{tx: sqlTx})
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) InsertAll(ctx context.Context, records []production.MeasurementRecord) error {
	return insertAll(ctx, ts.tx, records)
}

func (ts *txStore) GroupSum(ctx context.Context, fields ...production.Field) ([]production.GroupSum, error) {
	return groupSum(ctx, ts.tx, fields)
}

func (ts *txStore) Records(ctx context.Context, filter production.RecordFilter) ([]production.MeasurementRecord, error) {
	return queryRecords(ctx, ts.tx, filter)
}

func (ts *txStore) Count(ctx context.Context) (int, error) {
	return count(ctx, ts.tx)
}

func (ts *txStore) Reset(ctx context.Context) error {
	return reset(ctx, ts.tx)
}

// =============================================================================
// QUERIES
// =============================================================================

func insertAll(ctx context.Context, tx *sql.Tx, records []production.MeasurementRecord) error {
	if len(records) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO worktable (company, f_type, q_type, date, value, import_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return &production.StorageError{Op: "prepare insert", Err: err}
	}
	defer stmt.Close()

	importID := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339)
	for i, r := range records {
		_, err := stmt.ExecContext(ctx,
			r.Company,
			string(r.Status),
			string(r.Metric),
			r.Date.Format(production.DateLayout),
			r.Value,
			importID,
			now,
		)
		if err != nil {
			if isConstraintError(err) {
				return &production.StorageError{Op: "insert", Err: fmt.Errorf("record %d (%s %s): constraint violated: %w", i, r.Company, r.Key(), err)}
			}
			return &production.StorageError{Op: "insert", Err: err}
		}
	}
	return nil
}

var fieldColumns = map[production.Field]string{
	production.FieldCompany: "company",
	production.FieldStatus:  "f_type",
	production.FieldMetric:  "q_type",
	production.FieldDate:    "date",
}

func groupSum(ctx context.Context, db querier, fields []production.Field) ([]production.GroupSum, error) {
	if err := production.ValidateFields(fields); err != nil {
		return nil, err
	}

	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = fieldColumns[f]
	}
	ordered := production.OrderedFields(fields)
	orderCols := make([]string, len(ordered))
	for i, f := range ordered {
		orderCols[i] = fieldColumns[f]
	}

	query := fmt.Sprintf(
		"SELECT %s, SUM(value) FROM worktable GROUP BY %s ORDER BY %s",
		strings.Join(cols, ", "), strings.Join(cols, ", "), strings.Join(orderCols, ", "),
	)

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, &production.StorageError{Op: "group sum", Err: err}
	}
	defer rows.Close()

	var result []production.GroupSum
	for rows.Next() {
		var (
			g      production.GroupSum
			values = make([]string, len(fields))
			dest   = make([]any, len(fields)+1)
		)
		for i := range values {
			dest[i] = &values[i]
		}
		dest[len(fields)] = &g.Sum

		if err := rows.Scan(dest...); err != nil {
			return nil, &production.StorageError{Op: "scan group sum", Err: err}
		}
		for i, f := range fields {
			switch f {
			case production.FieldCompany:
				g.Company = values[i]
			case production.FieldStatus:
				g.Status = production.Status(values[i])
			case production.FieldMetric:
				g.Metric = production.Metric(values[i])
			case production.FieldDate:
				d, err := production.ParseDate(values[i])
				if err != nil {
					return nil, &production.StorageError{Op: "scan group sum", Err: err}
				}
				g.Date = d
			}
		}
		result = append(result, g)
	}
	if err := rows.Err(); err != nil {
		return nil, &production.StorageError{Op: "group sum", Err: err}
	}
	return result, nil
}

func queryRecords(ctx context.Context, db querier, filter production.RecordFilter) ([]production.MeasurementRecord, error) {
	var (
		where []string
		args  []any
	)
	if filter.Company != "" {
		where = append(where, "company = ?")
		args = append(args, filter.Company)
	}
	if filter.Status != "" {
		where = append(where, "f_type = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Metric != "" {
		where = append(where, "q_type = ?")
		args = append(args, string(filter.Metric))
	}
	if !filter.Date.IsZero() {
		where = append(where, "date = ?")
		args = append(args, filter.Date.Format(production.DateLayout))
	}

	query := "SELECT company, f_type, q_type, date, value FROM worktable"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id ASC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &production.StorageError{Op: "query records", Err: err}
	}
	defer rows.Close()

	var result []production.MeasurementRecord
	for rows.Next() {
		var (
			r              production.MeasurementRecord
			status, metric string
			date           string
		)
		if err := rows.Scan(&r.Company, &status, &metric, &date, &r.Value); err != nil {
			return nil, &production.StorageError{Op: "scan record", Err: err}
		}
		d, err := production.ParseDate(date)
		if err != nil {
			return nil, &production.StorageError{Op: "scan record", Err: err}
		}
		r.Status = production.Status(status)
		r.Metric = production.Metric(metric)
		r.Date = d
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &production.StorageError{Op: "query records", Err: err}
	}
	return result, nil
}

func count(ctx context.Context, db querier) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM worktable").Scan(&n); err != nil {
		return 0, &production.StorageError{Op: "count", Err: err}
	}
	return n, nil
}

func reset(ctx context.Context, db querier) error {
	if _, err := db.ExecContext(ctx, "DELETE FROM worktable"); err != nil {
		return &production.StorageError{Op: "reset", Err: err}
	}
	return nil
}

// =============================================================================
// IMPORTS
// =============================================================================

// ImportSummary describes one stored batch.
type ImportSummary struct {
	ID        string
	Records   int
	Companies int
	CreatedAt time.Time
}

// ListImports returns stored batches, oldest first.
func (s *Store) ListImports(ctx context.Context) ([]ImportSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT import_id, COUNT(*), COUNT(DISTINCT company), MIN(created_at)
		FROM worktable
		GROUP BY import_id
		ORDER BY MIN(id) ASC
	`)
	if err != nil {
		return nil, &production.StorageError{Op: "list imports", Err: err}
	}
	defer rows.Close()

	var result []ImportSummary
	for rows.Next() {
		var (
			imp       ImportSummary
			createdAt string
		)
		if err := rows.Scan(&imp.ID, &imp.Records, &imp.Companies, &createdAt); err != nil {
			return nil, &production.StorageError{Op: "scan import", Err: err}
		}
		imp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		result = append(result, imp)
	}
	if err := rows.Err(); err != nil {
		return nil, &production.StorageError{Op: "list imports", Err: err}
	}
	return result, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func isConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}
