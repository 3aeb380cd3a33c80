// Package generator produces candidate occurrences for a roster.
package generator

import (
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/okian/groupsplit/internal/domain/occurrence"
	"github.com/okian/groupsplit/pkg/metrics"
)

// Default generator configuration constants.
const (
	defaultGroupSize = 2
)

// Generator produces candidate occurrences.
type Generator interface {
	// Occurrences returns a lazy sequence of candidates. Each call starts
	// the sequence over. Implementations are not safe for concurrent
	// iteration of the same sequence.
	Occurrences() iter.Seq[occurrence.Occurrence]
}

// RotationGenerator enumerates candidates by swapping roster positions and
// chunking the rotated roster into consecutive groupings.
//
// It is a heuristic: it yields O(n^3) candidates, many of them duplicates,
// and for some roster/group sizes (e.g. 9 and 3) not every trio ends up
// together in some candidate.
type RotationGenerator struct {
	roster []string
	size   int
	date   time.Time
	exempt []map[string]struct{}
}

// NewRotationGenerator validates the configuration and returns a generator.
// It fails with ErrInvalidConfiguration when the roster is empty, holds
// duplicate identifiers, or the group size is not positive.
func NewRotationGenerator(roster []string, opts ...Option) (*RotationGenerator, error) {
	g := &RotationGenerator{
		roster: slices.Clone(roster),
		size:   defaultGroupSize,
		date:   time.Now(),
	}

	for _, opt := range opts {
		opt(g)
	}

	if len(g.roster) == 0 {
		return nil, fmt.Errorf("%w: roster is empty", ErrInvalidConfiguration)
	}
	if g.size <= 0 {
		return nil, fmt.Errorf("%w: group size must be positive, got %d", ErrInvalidConfiguration, g.size)
	}
	seen := make(map[string]struct{}, len(g.roster))
	for _, id := range g.roster {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %q appears more than once in the roster", ErrInvalidConfiguration, id)
		}
		seen[id] = struct{}{}
	}

	return g, nil
}

// GroupSize returns the target grouping size.
func (g *RotationGenerator) GroupSize() int { return g.size }

// Roster returns a copy of the roster in its configured order.
func (g *RotationGenerator) Roster() []string { return slices.Clone(g.roster) }

// Date returns the date stamped on generated occurrences.
func (g *RotationGenerator) Date() time.Time { return g.date }

// Occurrences returns the candidate sequence.
//
// For every h the working array is reset to roster order; then for every
// i >= h and every j the elements at i and j are swapped and the array is
// chunked. Swaps accumulate across i and j within one h.
func (g *RotationGenerator) Occurrences() iter.Seq[occurrence.Occurrence] {
	return func(yield func(occurrence.Occurrence) bool) {
		var generated, suppressed int
		defer func() {
			metrics.AddCandidatesGenerated(generated)
			metrics.AddCandidatesSuppressed(suppressed)
		}()

		n := len(g.roster)
		work := make([]string, n)
		for h := 0; h < n; h++ {
			copy(work, g.roster)
			for i := h; i < n; i++ {
				for j := 0; j < n; j++ {
					work[i], work[j] = work[j], work[i]

					groupings := chunk(work, g.size)
					if g.exempted(groupings) {
						suppressed++
						continue
					}

					generated++
					// New copies groupings, which alias work.
					if !yield(occurrence.New(g.date, groupings)) {
						return
					}
				}
			}
		}
	}
}

// chunk splits ids into consecutive groupings of size. The last grouping
// absorbs the remainder, so it holds size + len(ids)%size members; fewer
// than size ids yield a single grouping. The result aliases ids.
func chunk(ids []string, size int) [][]string {
	n := len(ids)
	out := make([][]string, 0, n/size+1)
	for start := 0; start < n; {
		end := start + size
		if n-end < size {
			end = n
		}
		out = append(out, ids[start:end])
		start = end
	}
	return out
}

// exempted reports whether any grouping is a subset of any exempt set.
func (g *RotationGenerator) exempted(groupings [][]string) bool {
	for _, set := range g.exempt {
		for _, grouping := range groupings {
			if subset(grouping, set) {
				return true
			}
		}
	}
	return false
}

func subset(grouping []string, set map[string]struct{}) bool {
	for _, id := range grouping {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}
