// Package worker scores queued candidates concurrently.
package worker

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/okian/groupsplit/internal/adapters/mq/queue"
	"github.com/okian/groupsplit/internal/domain/occurrence"
	"github.com/okian/groupsplit/internal/domain/scoring"
	"github.com/okian/groupsplit/pkg/logger"
	"github.com/okian/groupsplit/pkg/metrics"
)

// Scorer rates how desirable it is for individual to be grouped with partner.
type Scorer = scoring.PairingScorer

// Queue defines how workers receive candidates.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Candidate
}

// Scored is a candidate together with its aggregated score.
type Scored struct {
	Seq        int
	Occurrence occurrence.Occurrence
	Score      float64
}

// Beats reports whether s should replace best: a strictly higher score,
// or an equal score from an earlier candidate.
func (s Scored) Beats(best Scored) bool {
	if s.Score != best.Score {
		return s.Score > best.Score
	}
	return s.Seq < best.Seq
}

// Worker scores candidates and keeps the best one it has seen.
type Worker interface {
	// Run consumes candidates until the queue drains or ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker and waits for Run to return.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue  Queue
	scorer Scorer
	name   string

	best      Scored
	found     bool
	processed int

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, scorer Scorer, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		scorer:   scorer,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	candidates := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case c, ok := <-candidates:
			if !ok {
				w.logger.Debug(ctx, "queue drained", logger.Int("processed", w.processed))
				return
			}
			w.process(c)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Best returns the best candidate this worker scored. Only valid after Run returns.
func (w *InMemoryWorker) Best() (Scored, bool) {
	return w.best, w.found
}

// Processed returns how many candidates this worker scored. Only valid after Run returns.
func (w *InMemoryWorker) Processed() int {
	return w.processed
}

func (w *InMemoryWorker) process(c queue.Candidate) {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	s := Scored{
		Seq:        c.Seq,
		Occurrence: c.Occurrence,
		Score:      scoring.ScoreOccurrence(w.scorer, c.Occurrence),
	}
	w.processed++

	// Scores at or below -MaxFloat64, and NaN, never win.
	if !(s.Score > -math.MaxFloat64) {
		return
	}
	if !w.found || s.Beats(w.best) {
		w.best = s
		w.found = true
	}
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	logger logger.Logger
}

// NewPool creates a pool of workerCount workers; counts below one become one.
func NewPool(workerCount int, q Queue, scorer Scorer, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(q, scorer, workerOpts...)
	}

	return pool
}

// Size returns the number of workers in the pool.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	metrics.UpdateWorkerActiveCount(len(p.workers))
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Wait blocks until every worker has returned and merges their results.
// The merged best has the highest score, ties going to the lowest Seq.
func (p *Pool) Wait() (Scored, int, bool) {
	var (
		best      Scored
		found     bool
		processed int
	)
	for _, w := range p.workers {
		<-w.done
		processed += w.processed
		if s, ok := w.Best(); ok && (!found || s.Beats(best)) {
			best = s
			found = true
		}
	}
	metrics.UpdateWorkerActiveCount(0)
	return best, processed, found
}

// Shutdown closes the queue when it can be closed and stops every worker.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	var firstErr error
	for i, w := range p.workers {
		if err := w.Shutdown(ctx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	metrics.UpdateWorkerActiveCount(0)
	return firstErr
}
