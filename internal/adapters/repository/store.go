// Package repository persists the occurrence history that feeds the scorer.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/okian/groupsplit/internal/domain/occurrence"
)

// Backend names accepted by Open.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// legacyNamespace derives stable IDs for history entries written without one.
var legacyNamespace = uuid.MustParse("5b7e0c1e-5f3a-4c55-9a63-0c2f4d9b7a10") //nolint:gochecknoglobals // fixed namespace

// Record is one stored occurrence.
type Record struct {
	ID         string
	Occurrence occurrence.Occurrence
}

// recordWire is the JSON shape { id, date, groupings }. Entries from older
// files have no id.
type recordWire struct {
	ID        string                `json:"id,omitempty"`
	Date      time.Time             `json:"date"`
	Groupings []occurrence.Grouping `json:"groupings"`
}

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordWire{
		ID:        r.ID,
		Date:      r.Occurrence.Date(),
		Groupings: r.Occurrence.Groupings(),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Record) UnmarshalJSON(data []byte) error {
	var w recordWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	groupings := make([][]string, len(w.Groupings))
	for i, g := range w.Groupings {
		groupings[i] = g
	}
	r.Occurrence = occurrence.New(w.Date, groupings)
	r.ID = w.ID
	if r.ID == "" {
		r.ID = legacyID(r.Occurrence)
	}
	return nil
}

func newRecord(o occurrence.Occurrence) Record {
	return Record{ID: uuid.NewString(), Occurrence: o}
}

func legacyID(o occurrence.Occurrence) string {
	key := o.Date().UTC().Format(time.RFC3339Nano) + "\x1d" + o.Signature()
	return uuid.NewSHA1(legacyNamespace, []byte(key)).String()
}

// Store provides read/append access to the occurrence history.
type Store interface {
	// Load returns every stored occurrence, most recent first.
	Load(ctx context.Context) ([]occurrence.Occurrence, error)

	// List returns up to limit records, most recent first. limit <= 0 lists all.
	List(ctx context.Context, limit int) ([]Record, error)

	// Append stores o under a fresh ID.
	Append(ctx context.Context, o occurrence.Occurrence) (Record, error)

	// Count returns the number of stored occurrences.
	Count(ctx context.Context) (int, error)

	Close() error
}

// Open returns the Store for backend rooted at path.
func Open(ctx context.Context, backend, path string, opts ...Option) (Store, error) {
	switch strings.ToLower(backend) {
	case BackendJSON:
		return NewJSONFileStore(path, opts...), nil
	case BackendSQLite:
		s, err := NewSQLiteStore(ctx, path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// sortRecent orders records by date, most recent first. Equal dates keep
// their stored order.
func sortRecent(records []Record) {
	slices.SortStableFunc(records, func(a, b Record) int {
		return b.Occurrence.Date().Compare(a.Occurrence.Date())
	})
}

func occurrences(records []Record) []occurrence.Occurrence {
	out := make([]occurrence.Occurrence, len(records))
	for i, r := range records {
		out[i] = r.Occurrence
	}
	return out
}
