// Package picker drives a candidate generator, scores every candidate and
// keeps the best one.
package picker

import (
	"context"
	"math"
	"time"

	"github.com/okian/groupsplit/internal/adapters/mq/queue"
	"github.com/okian/groupsplit/internal/adapters/mq/worker"
	"github.com/okian/groupsplit/internal/domain/dedupe"
	"github.com/okian/groupsplit/internal/domain/generator"
	"github.com/okian/groupsplit/internal/domain/occurrence"
	"github.com/okian/groupsplit/internal/domain/scoring"
	"github.com/okian/groupsplit/pkg/logger"
	"github.com/okian/groupsplit/pkg/metrics"
)

const (
	// queueDepthPerWorker bounds how far generation runs ahead of scoring.
	queueDepthPerWorker = 64

	// ctxCheckInterval is how many candidates the sequential path scores
	// between cancellation checks.
	ctxCheckInterval = 1024

	outcomeSelected  = "selected"
	outcomeEmpty     = "empty"
	outcomeCancelled = "cancelled"
)

// Result is the outcome of a successful pick.
type Result struct {
	Occurrence occurrence.Occurrence
	Score      float64
	// Candidates counts every candidate the generator emitted.
	Candidates int
	// Duplicates counts candidates skipped by the deduper.
	Duplicates int
}

// Picker selects the highest-scoring candidate a generator produces.
// A Picker configured with a deduper must not run concurrent picks.
type Picker struct {
	gen     generator.Generator
	scorer  scoring.PairingScorer
	deduper dedupe.Deduper
	workers int
	logger  logger.Logger
}

// New creates a picker over gen and scorer.
func New(gen generator.Generator, scorer scoring.PairingScorer, opts ...Option) *Picker {
	p := &Picker{
		gen:     gen,
		scorer:  scorer,
		workers: 1,
		logger:  logger.Get().Named("picker"),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// PickBest scores every candidate and returns the one with the strictly
// greatest score; on ties the earliest candidate wins. The boolean is false
// when the generator produced no candidate at all, which is not an error.
// The error is non-nil only when ctx is canceled before the pick completes.
func (p *Picker) PickBest(ctx context.Context) (Result, bool, error) {
	start := time.Now()
	if p.deduper != nil {
		p.deduper.Reset(ctx)
	}

	var (
		res   Result
		found bool
		err   error
	)
	if p.workers > 1 {
		res, found, err = p.pickParallel(ctx)
	} else {
		res, found, err = p.pickSequential(ctx)
	}

	elapsed := time.Since(start)
	metrics.RecordPickDuration(float64(elapsed.Microseconds()) / 1000)
	metrics.AddCandidatesDuplicate(res.Duplicates)

	switch {
	case err != nil:
		metrics.RecordPick(outcomeCancelled)
		p.logger.Warn(ctx, "pick canceled", logger.Int("candidates", res.Candidates), logger.Error(err))
		return Result{}, false, err
	case !found:
		metrics.RecordPick(outcomeEmpty)
		p.logger.Info(ctx, "no candidate survived exemption filtering", logger.Int("candidates", res.Candidates))
		return res, false, nil
	}

	metrics.RecordPick(outcomeSelected)
	metrics.UpdateBestScore(res.Score)
	p.logger.Debug(ctx, "picked occurrence",
		logger.String("occurrence", res.Occurrence.String()),
		logger.Float64("score", res.Score),
		logger.Int("candidates", res.Candidates),
		logger.Int("duplicates", res.Duplicates),
		logger.Int("workers", p.workers),
		logger.Float64("duration_ms", float64(elapsed.Milliseconds())),
	)
	return res, true, nil
}

func (p *Picker) pickSequential(ctx context.Context) (Result, bool, error) {
	var (
		res    Result
		found  bool
		scored int
	)
	best := -math.MaxFloat64
	defer func() { metrics.AddCandidatesScored(scored) }()

	for occ := range p.gen.Occurrences() {
		if res.Candidates%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return res, false, err
			}
		}
		res.Candidates++

		if p.skip(ctx, occ) {
			res.Duplicates++
			continue
		}

		score := scoring.ScoreOccurrence(p.scorer, occ)
		scored++
		if score > best {
			best = score
			res.Occurrence = occ
			res.Score = score
			found = true
		}
	}

	return res, found, nil
}

// pickParallel streams candidates through a bounded queue to a worker pool.
// Each candidate carries its emission index so the merge keeps the
// sequential tie-break.
func (p *Picker) pickParallel(ctx context.Context) (Result, bool, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	q := queue.NewInMemoryQueue(queue.WithCapacity(p.workers * queueDepthPerWorker))
	pool := worker.NewPool(p.workers, q, p.scorer, worker.WithLogger(p.logger))
	pool.Start(ctx)

	var (
		res    Result
		putErr error
	)
	for occ := range p.gen.Occurrences() {
		seq := res.Candidates
		res.Candidates++

		if p.skip(ctx, occ) {
			res.Duplicates++
			continue
		}

		if err := q.Put(ctx, queue.Candidate{Seq: seq, Occurrence: occ}); err != nil {
			putErr = err
			cancel()
			break
		}
	}
	if err := q.Close(); err != nil {
		p.logger.Error(ctx, "error closing candidate queue", logger.Error(err))
	}

	best, scored, found := pool.Wait()
	metrics.AddCandidatesScored(scored)

	if putErr != nil {
		return res, false, putErr
	}
	if err := ctx.Err(); err != nil {
		return res, false, err
	}
	if !found {
		return res, false, nil
	}

	res.Occurrence = best.Occurrence
	res.Score = best.Score
	return res, true, nil
}

func (p *Picker) skip(ctx context.Context, occ occurrence.Occurrence) bool {
	return p.deduper != nil && p.deduper.SeenAndRecord(ctx, dedupe.Key(occ))
}
