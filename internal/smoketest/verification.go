package smoketest

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/okian/groupsplit/pkg/logger"
)

// verifyHistory checks that every committed occurrence is in history, most
// recent first, and that each one partitions the same members.
func verifyHistory(ctx context.Context, committed []Pick, history []Record, stats *Stats) error {
	log := logger.Get().Named("smoketest")
	stats.HistoryRecords = len(history)

	if len(history) == 0 {
		return fmt.Errorf("history is empty")
	}
	if len(history) < len(committed) {
		return fmt.Errorf("history holds %d records, committed %d", len(history), len(committed))
	}

	for i := 1; i < len(history); i++ {
		if history[i].Date.After(history[i-1].Date) {
			return fmt.Errorf("history not ordered: record %d is newer than record %d", i, i-1)
		}
	}

	ids := make(map[string]struct{}, len(history))
	for _, r := range history {
		if r.ID == "" {
			return fmt.Errorf("record dated %s has no id", r.Date)
		}
		if _, dup := ids[r.ID]; dup {
			return fmt.Errorf("duplicate record id %s", r.ID)
		}
		ids[r.ID] = struct{}{}
	}
	for _, p := range committed {
		if _, found := ids[p.ID]; !found {
			return fmt.Errorf("committed occurrence %s missing from history", p.ID)
		}
	}

	want := members(history[0].Groupings)
	for i, r := range history[1:] {
		if got := members(r.Groupings); !slices.Equal(got, want) {
			return fmt.Errorf("record %d partitions %v, want %v", i+1, got, want)
		}
	}

	stats.RepeatedGroupings = countRepeats(committed)
	if stats.RepeatedGroupings > 0 {
		log.Warn(ctx, "groupings repeated between consecutive occurrences",
			logger.Int("repeats", stats.RepeatedGroupings))
	}

	log.Info(ctx, "history verified", logger.Int("records", len(history)))
	return nil
}

// members returns the sorted identifiers in groupings.
func members(groupings [][]string) []string {
	var out []string
	for _, g := range groupings {
		out = append(out, g...)
	}
	slices.Sort(out)
	return out
}

// countRepeats counts groupings that also appear in the previous occurrence.
func countRepeats(picks []Pick) int {
	repeats := 0
	for i := 1; i < len(picks); i++ {
		prev := make(map[string]struct{}, len(picks[i-1].Groupings))
		for _, g := range picks[i-1].Groupings {
			prev[groupingKey(g)] = struct{}{}
		}
		for _, g := range picks[i].Groupings {
			if _, ok := prev[groupingKey(g)]; ok {
				repeats++
			}
		}
	}
	return repeats
}

func groupingKey(g []string) string {
	s := slices.Clone(g)
	slices.Sort(s)
	return strings.Join(s, "\x00")
}
