// Package queue carries scoring candidates from the picker to its workers.
//
// The producer is the candidate generator and the consumers are scoring
// workers, so Put blocks for room instead of dropping candidates.
package queue

import (
	"context"
	"sync"

	"github.com/okian/groupsplit/internal/domain/occurrence"
	"github.com/okian/groupsplit/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 1024
)

// Candidate is one generated occurrence tagged with its generation order.
// Seq breaks score ties in favour of the earlier candidate.
type Candidate struct {
	Seq        int
	Occurrence occurrence.Occurrence
}

// Queue provides enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a candidate without blocking.
	// Returns false if the queue is full or closed.
	Enqueue(ctx context.Context, c Candidate) bool

	// Put adds a candidate, waiting for room until ctx is done.
	Put(ctx context.Context, c Candidate) error

	// Dequeue returns a channel that will receive candidates as they become available.
	// The channel will be closed when the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Candidate

	// Len returns the current number of queued candidates.
	Len(ctx context.Context) int

	// Close stops accepting candidates; queued ones are still delivered.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	items    chan Candidate
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
	}

	for _, opt := range opts {
		opt(q)
	}

	q.items = make(chan Candidate, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)

	return q
}

// Enqueue adds a candidate to the queue without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, c Candidate) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}

	select {
	case q.items <- c:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.items))
		return true
	case <-ctx.Done():
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false
	default:
		metrics.RecordErrorByComponent("queue", "queue_full")
		return false
	}
}

// Put adds a candidate, blocking while the queue is full.
// Put must not race with Close; the producer owns both.
func (q *InMemoryQueue) Put(ctx context.Context, c Candidate) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrClosed
	}

	select {
	case q.items <- c:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.items))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue returns a channel that will receive candidates as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Candidate {
	out := make(chan Candidate)
	go func() {
		defer close(out)
		for c := range q.items {
			select {
			case out <- c:
				metrics.RecordQueueDequeue()
				metrics.UpdateQueueSize(len(q.items))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued candidates.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.items)
	metrics.UpdateQueueSize(size)
	return size
}

// Close stops accepting candidates. Closing twice is a no-op.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	close(q.items)
	q.closed = true

	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
