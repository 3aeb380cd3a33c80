package service

import (
	"github.com/okian/groupsplit/internal/adapters/repository"
	"github.com/okian/groupsplit/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithGroupSize sets the target grouping size.
func WithGroupSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.groupSize = size
		}
	}
}

// WithRosterFile reads the roster from path on every pick.
func WithRosterFile(path string) Option {
	return func(s *Service) {
		s.rosterFile = path
	}
}

// WithExemptFile reads exempt meetings from path on every pick.
func WithExemptFile(path string) Option {
	return func(s *Service) {
		s.exemptFile = path
	}
}

// WithRoster fixes the roster instead of reading a file.
func WithRoster(roster []string) Option {
	return func(s *Service) {
		s.roster = append([]string(nil), roster...)
	}
}

// WithExemptMeetings fixes the exempt meetings instead of reading a file.
func WithExemptMeetings(sets ...[]string) Option {
	return func(s *Service) {
		s.exempt = sets
		s.exemptFixed = true
	}
}

// WithHistory selects the history backend and where it stores data.
func WithHistory(backend, path string) Option {
	return func(s *Service) {
		if backend != "" {
			s.backend = backend
		}
		if path != "" {
			s.historyPath = path
		}
	}
}

// WithStore uses an already opened store; Stop still closes it.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithWeightCoefficient scales recency ranks into scores.
func WithWeightCoefficient(c float64) Option {
	return func(s *Service) {
		if c > 0 {
			s.weight = c
		}
	}
}

// WithWorkers sets how many goroutines score candidates.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithDedupeSize bounds the candidate deduper; 0 disables it.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size >= 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
