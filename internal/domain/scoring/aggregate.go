package scoring

import "github.com/okian/groupsplit/internal/domain/occurrence"

// ScoreGrouping sums s.ScorePairing over every ordered pair of distinct
// members, so each unordered pair is counted once from each side.
func ScoreGrouping(s PairingScorer, g occurrence.Grouping) float64 {
	var total float64
	for _, individual := range g {
		for _, partner := range g {
			if individual != partner {
				total += s.ScorePairing(individual, partner)
			}
		}
	}
	return total
}

// ScoreOccurrence sums ScoreGrouping over all groupings of o.
func ScoreOccurrence(s PairingScorer, o occurrence.Occurrence) float64 {
	var total float64
	o.Each(func(g occurrence.Grouping) {
		total += ScoreGrouping(s, g)
	})
	return total
}
