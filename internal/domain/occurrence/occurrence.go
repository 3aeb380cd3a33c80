// Package occurrence contains the dated partition of a roster into groupings.
package occurrence

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Grouping is a set of individuals meeting together. Order carries no meaning.
type Grouping []string

// Contains reports whether id is a member of the grouping. Comparison is case-sensitive.
func (g Grouping) Contains(id string) bool {
	return slices.Contains(g, id)
}

// Occurrence is an immutable dated partition of a roster into groupings.
// The zero value is an empty occurrence with a zero date.
type Occurrence struct {
	date      time.Time
	groupings []Grouping
}

// New builds an Occurrence from date and groupings. The groupings are copied,
// so later changes to the caller's slices never reach the Occurrence.
func New(date time.Time, groupings [][]string) Occurrence {
	cp := make([]Grouping, len(groupings))
	for i, g := range groupings {
		cp[i] = slices.Clone(Grouping(g))
	}
	return Occurrence{date: date, groupings: cp}
}

// Date returns when the individuals meet.
func (o Occurrence) Date() time.Time { return o.date }

// Len returns the number of groupings.
func (o Occurrence) Len() int { return len(o.groupings) }

// Grouping returns a copy of the i-th grouping.
func (o Occurrence) Grouping(i int) Grouping {
	return slices.Clone(o.groupings[i])
}

// Groupings returns a copy of all groupings.
func (o Occurrence) Groupings() []Grouping {
	out := make([]Grouping, len(o.groupings))
	for i, g := range o.groupings {
		out[i] = slices.Clone(g)
	}
	return out
}

// Each calls fn for every grouping without copying. fn must not retain or
// modify the slice it receives.
func (o Occurrence) Each(fn func(g Grouping)) {
	for _, g := range o.groupings {
		fn(g)
	}
}

// Together reports whether a and b share a grouping.
func (o Occurrence) Together(a, b string) bool {
	for _, g := range o.groupings {
		if g.Contains(a) && g.Contains(b) {
			return true
		}
	}
	return false
}

// Members returns every individual in grouping order.
func (o Occurrence) Members() []string {
	var out []string
	for _, g := range o.groupings {
		out = append(out, g...)
	}
	return out
}

// Validate checks that o partitions roster: every roster member appears in
// exactly one grouping, no grouping is empty and nobody outside the roster
// is present.
func (o Occurrence) Validate(roster []string) error {
	want := make(map[string]struct{}, len(roster))
	for _, id := range roster {
		want[id] = struct{}{}
	}
	seen := make(map[string]struct{}, len(roster))
	for i, g := range o.groupings {
		if len(g) == 0 {
			return fmt.Errorf("%w: grouping %d is empty", ErrInvalidPartition, i)
		}
		for _, id := range g {
			if _, ok := want[id]; !ok {
				return fmt.Errorf("%w: %q is not on the roster", ErrInvalidPartition, id)
			}
			if _, dup := seen[id]; dup {
				return fmt.Errorf("%w: %q appears more than once", ErrInvalidPartition, id)
			}
			seen[id] = struct{}{}
		}
	}
	if len(seen) != len(want) {
		for _, id := range roster {
			if _, ok := seen[id]; !ok {
				return fmt.Errorf("%w: %q is missing", ErrInvalidPartition, id)
			}
		}
	}
	return nil
}

// Signature returns a canonical form of the partition that ignores both the
// order of members within a grouping and the order of groupings. Two
// occurrences with equal signatures group the same people together.
func (o Occurrence) Signature() string {
	parts := make([]string, len(o.groupings))
	for i, g := range o.groupings {
		members := slices.Clone(g)
		slices.Sort(members)
		parts[i] = strings.Join(members, "\x1f")
	}
	slices.Sort(parts)
	return strings.Join(parts, "\x1e")
}

// String renders the groupings for logs, e.g. "[A B] [C D]".
func (o Occurrence) String() string {
	var b strings.Builder
	for i, g := range o.groupings {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteByte('[')
		b.WriteString(strings.Join(g, " "))
		b.WriteByte(']')
	}
	return b.String()
}

// wireOccurrence is the external JSON shape { date, groupings }.
type wireOccurrence struct {
	Date      time.Time  `json:"date"`
	Groupings [][]string `json:"groupings"`
}

// MarshalJSON implements json.Marshaler.
func (o Occurrence) MarshalJSON() ([]byte, error) {
	w := wireOccurrence{Date: o.date, Groupings: make([][]string, len(o.groupings))}
	for i, g := range o.groupings {
		w.Groupings[i] = g
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Occurrence) UnmarshalJSON(data []byte) error {
	var w wireOccurrence
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*o = New(w.Date, w.Groupings)
	return nil
}
