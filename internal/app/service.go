// Package service wires the history store and roster sources to the
// candidate generator, scorer and picker.
package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/groupsplit/internal/adapters/repository"
	"github.com/okian/groupsplit/internal/adapters/source"
	"github.com/okian/groupsplit/internal/domain/dedupe"
	"github.com/okian/groupsplit/internal/domain/generator"
	"github.com/okian/groupsplit/internal/domain/picker"
	"github.com/okian/groupsplit/internal/domain/scoring"
	"github.com/okian/groupsplit/pkg/logger"
	"github.com/okian/groupsplit/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultGroupSize   = 2
	defaultWeight      = 3
	defaultWorkers     = 1
	defaultDedupeSize  = 50000
	defaultBackend     = repository.BackendJSON
	defaultHistoryPath = "History.json"
)

// Service picks the next occurrence from the current roster and history.
type Service struct {
	mu sync.RWMutex
	// commitMu serializes load-pick-append so two commits never score
	// against the same history.
	commitMu sync.Mutex

	store repository.Store

	// Configuration
	groupSize   int
	rosterFile  string
	exemptFile  string
	roster      []string
	exempt      [][]string
	exemptFixed bool
	backend     string
	historyPath string
	weight      float64
	workers     int
	dedupeSize  int

	// State
	started bool
	picks   atomic.Int64
	commits atomic.Int64

	logger logger.Logger
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		groupSize:   defaultGroupSize,
		backend:     defaultBackend,
		historyPath: defaultHistoryPath,
		weight:      defaultWeight,
		workers:     defaultWorkers,
		dedupeSize:  defaultDedupeSize,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start opens the history store.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	if s.store == nil {
		store, err := repository.Open(ctx, s.backend, s.historyPath)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		s.store = store
	}

	n, err := s.store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count history: %w", err)
	}
	metrics.UpdateHistorySize(n)

	s.started = true
	s.logger.Info(ctx, "groupsplit service started",
		logger.String("backend", s.backend),
		logger.String("history", s.historyPath),
		logger.Int("occurrences", n),
		logger.Int("groupSize", s.groupSize),
		logger.Int("workers", s.workers),
	)
	return nil
}

// Stop closes the history store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error(context.Background(), "error closing history store", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(context.Background(), "groupsplit service stopped")
}

// Pick returns the best occurrence for date without recording it. A zero
// date means now.
func (s *Service) Pick(ctx context.Context, date time.Time) (picker.Result, error) {
	store, err := s.activeStore()
	if err != nil {
		return picker.Result{}, err
	}
	return s.pick(ctx, store, date)
}

// Commit picks the best occurrence for date and appends it to history.
func (s *Service) Commit(ctx context.Context, date time.Time) (repository.Record, picker.Result, error) {
	store, err := s.activeStore()
	if err != nil {
		return repository.Record{}, picker.Result{}, err
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	res, err := s.pick(ctx, store, date)
	if err != nil {
		return repository.Record{}, picker.Result{}, err
	}

	rec, err := store.Append(ctx, res.Occurrence)
	if err != nil {
		metrics.RecordErrorByComponent("service", "history_append")
		return repository.Record{}, picker.Result{}, fmt.Errorf("append history: %w", err)
	}
	s.commits.Add(1)
	s.logger.Info(ctx, "occurrence recorded",
		logger.String("id", rec.ID),
		logger.Time("date", res.Occurrence.Date()),
		logger.String("groupings", res.Occurrence.String()),
	)
	return rec, res, nil
}

// History returns up to limit stored records, most recent first.
func (s *Service) History(ctx context.Context, limit int) ([]repository.Record, error) {
	store, err := s.activeStore()
	if err != nil {
		return nil, err
	}
	return store.List(ctx, limit)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":    s.started,
		"backend":    s.backend,
		"groupSize":  s.groupSize,
		"workers":    s.workers,
		"dedupeSize": s.dedupeSize,
		"picks":      s.picks.Load(),
		"commits":    s.commits.Load(),
	}

	if s.started {
		if n, err := s.store.Count(context.Background()); err == nil {
			stats["historySize"] = n
			metrics.UpdateHistorySize(n)
		}
	}

	return stats
}

func (s *Service) activeStore() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

func (s *Service) pick(ctx context.Context, store repository.Store, date time.Time) (picker.Result, error) {
	if date.IsZero() {
		date = time.Now()
	}

	roster, err := s.loadRoster(ctx)
	if err != nil {
		return picker.Result{}, err
	}
	exempt, err := s.loadExempt(ctx)
	if err != nil {
		return picker.Result{}, err
	}
	history, err := store.Load(ctx)
	if err != nil {
		return picker.Result{}, fmt.Errorf("load history: %w", err)
	}

	gen, err := generator.NewRotationGenerator(roster,
		generator.WithGroupSize(s.groupSize),
		generator.WithDate(date),
		generator.WithExemptMeetings(exempt...),
	)
	if err != nil {
		return picker.Result{}, err
	}
	scorer := scoring.NewHistoryScorer(history, scoring.WithLinearWeight(s.weight))

	opts := []picker.Option{
		picker.WithLogger(s.logger.Named("picker")),
		picker.WithWorkers(s.workers),
	}
	if s.dedupeSize > 0 {
		opts = append(opts, picker.WithDeduper(dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))))
	}

	res, ok, err := picker.New(gen, scorer, opts...).PickBest(ctx)
	if err != nil {
		return picker.Result{}, err
	}
	s.picks.Add(1)
	if !ok {
		return picker.Result{}, fmt.Errorf("%w: every candidate grouping is exempt", ErrNoCandidates)
	}
	if err := res.Occurrence.Validate(roster); err != nil {
		metrics.RecordErrorByComponent("service", "invalid_partition")
		return picker.Result{}, fmt.Errorf("picked occurrence: %w", err)
	}

	s.logger.Debug(ctx, "occurrence picked",
		logger.String("groupings", res.Occurrence.String()),
		logger.Float64("score", res.Score),
		logger.Int("candidates", res.Candidates),
		logger.Int("history", len(history)),
	)
	return res, nil
}

func (s *Service) loadRoster(ctx context.Context) ([]string, error) {
	if s.roster != nil {
		return s.roster, nil
	}
	return source.LoadRoster(ctx, s.rosterFile)
}

func (s *Service) loadExempt(ctx context.Context) ([][]string, error) {
	if s.exemptFixed {
		return s.exempt, nil
	}
	return source.LoadExemptMeetings(ctx, s.exemptFile)
}
