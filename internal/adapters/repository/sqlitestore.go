package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/groupsplit/internal/domain/occurrence"
	"github.com/okian/groupsplit/pkg/metrics"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// sqliteDateLayout is fixed width so ORDER BY on the text column is
// chronological. Dates are stored in UTC.
const sqliteDateLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore keeps one row per occurrence with its groupings as a JSON blob.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		path = "groupsplit.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps writers serialized and lets ":memory:" databases
	// survive between statements.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS occurrences (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		groupings BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create occurrences table: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS occurrences_date ON occurrences (date)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create occurrences index: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database location.
func (s *SQLiteStore) Path() string { return s.path }

// Load returns every stored occurrence, most recent first.
func (s *SQLiteStore) Load(ctx context.Context) ([]occurrence.Occurrence, error) {
	records, err := s.List(ctx, 0)
	if err != nil {
		return nil, err
	}
	return occurrences(records), nil
}

// List returns up to limit records, most recent first; equal dates keep
// insertion order.
func (s *SQLiteStore) List(ctx context.Context, limit int) (_ []Record, retErr error) {
	start := time.Now()
	defer observe(BackendSQLite, "list", start)
	defer func() {
		if retErr != nil {
			metrics.RecordStoreError(BackendSQLite, "list")
		}
	}()

	query := `SELECT id, date, groupings FROM occurrences ORDER BY date DESC, rowid ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select occurrences: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var (
			id, date string
			payload  []byte
		)
		if err := rows.Scan(&id, &date, &payload); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		when, err := time.Parse(sqliteDateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("%w: row %s: date %q: %w", ErrCorruptHistory, id, date, err)
		}
		var groupings [][]string
		if err := json.Unmarshal(payload, &groupings); err != nil {
			return nil, fmt.Errorf("%w: row %s: decode groupings: %w", ErrCorruptHistory, id, err)
		}
		records = append(records, Record{ID: id, Occurrence: occurrence.New(when, groupings)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate occurrences: %w", err)
	}
	return records, nil
}

// Append inserts o under a fresh ID.
func (s *SQLiteStore) Append(ctx context.Context, o occurrence.Occurrence) (Record, error) {
	start := time.Now()
	defer observe(BackendSQLite, "append", start)

	payload, err := json.Marshal(o.Groupings())
	if err != nil {
		metrics.RecordStoreError(BackendSQLite, "append")
		return Record{}, fmt.Errorf("encode groupings: %w", err)
	}

	rec := newRecord(o)
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO occurrences (id, date, groupings) VALUES (?, ?, ?)`,
		rec.ID, o.Date().UTC().Format(sqliteDateLayout), payload,
	); err != nil {
		metrics.RecordStoreError(BackendSQLite, "append")
		return Record{}, fmt.Errorf("insert occurrence: %w", err)
	}

	if n, err := s.Count(ctx); err == nil {
		metrics.UpdateHistorySize(n)
	}
	return rec, nil
}

// Count returns the number of stored occurrences.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM occurrences`).Scan(&n); err != nil {
		metrics.RecordStoreError(BackendSQLite, "count")
		return 0, fmt.Errorf("count occurrences: %w", err)
	}
	return n, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
