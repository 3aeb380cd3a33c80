package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/okian/groupsplit/internal/domain/occurrence"
	"github.com/okian/groupsplit/pkg/metrics"
)

const defaultFileMode os.FileMode = 0o644

// JSONFileStore keeps history as an indented JSON array in a single file,
// most recent entry first. Every read goes to disk so hand edits are seen.
type JSONFileStore struct {
	path string
	mode os.FileMode
	mu   sync.Mutex
}

// NewJSONFileStore creates a store over path. The file need not exist yet.
func NewJSONFileStore(path string, opts ...Option) *JSONFileStore {
	s := &JSONFileStore{
		path: path,
		mode: defaultFileMode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the history file location.
func (s *JSONFileStore) Path() string { return s.path }

// Load returns every stored occurrence, most recent first.
func (s *JSONFileStore) Load(ctx context.Context) ([]occurrence.Occurrence, error) {
	records, err := s.List(ctx, 0)
	if err != nil {
		return nil, err
	}
	return occurrences(records), nil
}

// List returns up to limit records, most recent first.
func (s *JSONFileStore) List(_ context.Context, limit int) ([]Record, error) {
	start := time.Now()
	defer observe(BackendJSON, "list", start)

	s.mu.Lock()
	records, err := s.read()
	s.mu.Unlock()
	if err != nil {
		metrics.RecordStoreError(BackendJSON, "list")
		return nil, err
	}

	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records, nil
}

// Append adds o and rewrites the file sorted by date.
func (s *JSONFileStore) Append(_ context.Context, o occurrence.Occurrence) (Record, error) {
	start := time.Now()
	defer observe(BackendJSON, "append", start)

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		metrics.RecordStoreError(BackendJSON, "append")
		return Record{}, err
	}

	rec := newRecord(o)
	records = append(records, rec)
	sortRecent(records)

	if err := s.write(records); err != nil {
		metrics.RecordStoreError(BackendJSON, "append")
		return Record{}, err
	}
	metrics.UpdateHistorySize(len(records))
	return rec, nil
}

// Count returns the number of stored occurrences.
func (s *JSONFileStore) Count(ctx context.Context) (int, error) {
	records, err := s.List(ctx, 0)
	if err != nil {
		return 0, err
	}
	metrics.UpdateHistorySize(len(records))
	return len(records), nil
}

// Close is a no-op; the file is not held open.
func (s *JSONFileStore) Close() error { return nil }

// read parses the history file. A missing or blank file is an empty history.
func (s *JSONFileStore) read() ([]Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptHistory, s.path, err)
	}
	sortRecent(records)
	return records, nil
}

// write replaces the history file through a temp file and rename so a
// crash never leaves a truncated history behind.
func (s *JSONFileStore) write(records []Record) (retErr error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create dirs: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp history: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if records == nil {
		records = []Record{}
	}
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync history: %w", err)
	}
	if err := tmp.Chmod(s.mode); err != nil {
		return fmt.Errorf("chmod history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close history: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}

func observe(backend, op string, start time.Time) {
	metrics.RecordStoreLatency(backend, op, float64(time.Since(start).Microseconds())/1000)
}
