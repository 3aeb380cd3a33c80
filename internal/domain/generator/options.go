// Package generator produces candidate occurrences for a roster.
package generator

import (
	"slices"
	"time"
)

// Option applies a configuration option to the RotationGenerator.
type Option func(*RotationGenerator)

// WithGroupSize sets the target number of individuals per grouping.
// Values <= 0 are rejected by NewRotationGenerator.
func WithGroupSize(size int) Option {
	return func(g *RotationGenerator) {
		g.size = size
	}
}

// WithDate sets the date stamped on every generated occurrence.
func WithDate(date time.Time) Option {
	return func(g *RotationGenerator) {
		if !date.IsZero() {
			g.date = date
		}
	}
}

// WithExemptMeetings adds sets of individuals who already see each other.
// A candidate is dropped when one of its groupings falls entirely inside one
// of these sets.
func WithExemptMeetings(sets ...[]string) Option {
	return func(g *RotationGenerator) {
		for _, set := range sets {
			if len(set) == 0 {
				continue
			}
			m := make(map[string]struct{}, len(set))
			for _, id := range slices.Clone(set) {
				m[id] = struct{}{}
			}
			g.exempt = append(g.exempt, m)
		}
	}
}
