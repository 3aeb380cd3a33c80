// Package scoring rates how much two individuals deserve to meet again.
package scoring

import (
	"slices"
	"sync"
	"time"

	"github.com/okian/groupsplit/internal/domain/occurrence"
	"golang.org/x/text/cases"
)

// Default scoring configuration constants.
const (
	defaultWeightCoefficient = 3
)

// WeightFunc converts a rank into a score. The rank counts how many distinct
// other partners an individual has met since last meeting the partner; a
// never-met partner ranks one past the last known partner. Implementations
// should be non-decreasing so that staler pairings score higher.
type WeightFunc func(rank int) float64

// LinearWeight returns a WeightFunc computing coefficient * rank.
func LinearWeight(coefficient float64) WeightFunc {
	return func(rank int) float64 {
		return coefficient * float64(rank)
	}
}

// DefaultWeight is the weight used when none is configured.
var DefaultWeight = LinearWeight(defaultWeightCoefficient) //nolint:gochecknoglobals // immutable default strategy

// Option applies a configuration option to the HistoryScorer.
type Option func(*HistoryScorer)

// WithWeightFunc sets the rank-to-score mapping.
func WithWeightFunc(fn WeightFunc) Option {
	return func(s *HistoryScorer) {
		if fn != nil {
			s.weight = fn
		}
	}
}

// WithLinearWeight is shorthand for WithWeightFunc(LinearWeight(coefficient)).
func WithLinearWeight(coefficient float64) Option {
	return WithWeightFunc(LinearWeight(coefficient))
}

// PairingScorer rates the merit of individual meeting partner. Higher is
// more deserving. The result need not be symmetric.
type PairingScorer interface {
	ScorePairing(individual, partner string) float64
}

// ScorerFunc adapts an ordinary function to PairingScorer.
type ScorerFunc func(individual, partner string) float64

// ScorePairing calls f(individual, partner).
func (f ScorerFunc) ScorePairing(individual, partner string) float64 {
	return f(individual, partner)
}

// HistoryScorer scores pairings by how recently the two individuals met.
// It is read-only after construction and safe for concurrent use.
type HistoryScorer struct {
	// rankings maps folded individual -> folded partner -> rank (0 = most recent).
	rankings map[string]map[string]int
	weight   WeightFunc
}

// NewHistoryScorer builds the ranking table from history. The order of
// history does not matter; dates are compared explicitly.
func NewHistoryScorer(history []occurrence.Occurrence, opts ...Option) *HistoryScorer {
	s := &HistoryScorer{
		weight: DefaultWeight,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.rankings = buildRankings(history)
	return s
}

// ScorePairing returns the weight of the partner's rank for individual.
// An individual missing from history ranks everyone 0; a partner that
// individual never met ranks one past individual's known partners.
// Lookups ignore case.
func (s *HistoryScorer) ScorePairing(individual, partner string) float64 {
	return s.weight(s.Rank(individual, partner))
}

// Rank returns the rank that ScorePairing feeds into the weight function.
func (s *HistoryScorer) Rank(individual, partner string) int {
	ranks, ok := s.rankings[fold(individual)]
	if !ok {
		return 0
	}
	if rank, ok := ranks[fold(partner)]; ok {
		return rank
	}
	return len(ranks)
}

// Known reports whether individual appears anywhere in history.
func (s *HistoryScorer) Known(individual string) bool {
	_, ok := s.rankings[fold(individual)]
	return ok
}

// Individuals returns the number of individuals in the ranking table.
func (s *HistoryScorer) Individuals() int {
	return len(s.rankings)
}

func buildRankings(history []occurrence.Occurrence) map[string]map[string]int {
	var individuals []string
	seen := make(map[string]struct{})
	for _, occ := range history {
		occ.Each(func(g occurrence.Grouping) {
			for _, id := range g {
				if _, ok := seen[id]; !ok {
					seen[id] = struct{}{}
					individuals = append(individuals, id)
				}
			}
		})
	}

	rankings := make(map[string]map[string]int, len(individuals))
	for _, id := range individuals {
		key := fold(id)
		// Spellings that differ only in case share one entry; the first one
		// found in history owns it.
		if _, taken := rankings[key]; taken {
			continue
		}
		rankings[key] = rankPartners(id, history)
	}
	return rankings
}

type partnerSeen struct {
	key  string
	last time.Time
}

// rankPartners orders everyone who shared a grouping with individual by the
// most recent shared date, newest first. Equal dates keep first-appearance
// order.
func rankPartners(individual string, history []occurrence.Occurrence) map[string]int {
	var partners []partnerSeen
	index := make(map[string]int)
	for _, occ := range history {
		date := occ.Date()
		occ.Each(func(g occurrence.Grouping) {
			if !g.Contains(individual) {
				return
			}
			for _, p := range g {
				if p == individual {
					continue
				}
				key := fold(p)
				if i, ok := index[key]; ok {
					if date.After(partners[i].last) {
						partners[i].last = date
					}
					continue
				}
				index[key] = len(partners)
				partners = append(partners, partnerSeen{key: key, last: date})
			}
		})
	}

	slices.SortStableFunc(partners, func(a, b partnerSeen) int {
		return b.last.Compare(a.last)
	})

	ranks := make(map[string]int, len(partners))
	for i, p := range partners {
		ranks[p.key] = i
	}
	return ranks
}

// cases.Caser is stateful, so each goroutine borrows its own.
var folders = sync.Pool{ //nolint:gochecknoglobals // pool of case folders
	New: func() any {
		c := cases.Fold()
		return &c
	},
}

func fold(s string) string {
	c := folders.Get().(*cases.Caser)
	out := c.String(s)
	folders.Put(c)
	return out
}
