// Package dedupe tracks which candidate partitions have already been scored.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/okian/groupsplit/internal/domain/occurrence"
	"github.com/zeebo/xxh3"
)

// Default deduper configuration constants.
const (
	defaultMaxSize = 50000
)

// Deduper records seen candidate keys so identical partitions are scored once.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key uint64) bool

	// Reset forgets every recorded key.
	Reset(ctx context.Context)

	Size() int64
}

// Key hashes the order-independent signature of o.
func Key(o occurrence.Occurrence) uint64 {
	return xxh3.HashString(o.Signature())
}

// inMemoryDeduper implements Deduper with a map and, when bounded, a ring of
// insertion order used to evict the oldest key.
// For bounded mode (maxSize > 0): evicts the oldest key once full.
// For unbounded mode (maxSize <= 0): keeps every key.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[uint64]struct{}
	ring    []uint64 // insertion order, bounded mode only
	next    int      // ring slot for the next insert
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
	}

	for _, opt := range opts {
		opt(d)
	}

	d.seen = make(map[uint64]struct{})
	if d.maxSize > 0 {
		d.ring = make([]uint64, 0, d.maxSize)
	}

	return d
}

// SeenAndRecord atomically checks if key was seen and records it if not.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[key]; exists {
		return true
	}

	if d.maxSize > 0 {
		if len(d.ring) < d.maxSize {
			d.ring = append(d.ring, key)
		} else {
			// Full: overwrite the oldest slot.
			delete(d.seen, d.ring[d.next])
			d.ring[d.next] = key
			d.size.Add(-1)
		}
		d.next = (d.next + 1) % d.maxSize
	}

	d.seen[key] = struct{}{}
	d.size.Add(1)
	return false
}

// Reset forgets every recorded key.
func (d *inMemoryDeduper) Reset(_ context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	clear(d.seen)
	d.ring = d.ring[:0]
	d.next = 0
	d.size.Store(0)
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
