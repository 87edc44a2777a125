// internal/council/aggregate.go
package council

import "sort"

// Aggregate computes the consensus ordering from all valid Stage-2 rankings.
// Each member's score is the arithmetic mean of its 1-indexed positions
// across the rankings that mention it; rankings that omit a member simply do
// not count toward it. Sort order: ascending average rank, then descending
// vote count, then Stage-1 arrival order. Pure function of its inputs.
func Aggregate(rankings []Stage2Result, m AnonymizationMap, arrival []Stage1Result) []AggregateEntry {
	rankSums := make(map[string]float64)
	voteCounts := make(map[string]int)

	for _, ranking := range rankings {
		for pos, label := range ranking.ParsedRanking {
			res, ok := m.ResultFor(label)
			if !ok {
				continue
			}
			rankSums[res.MemberID] += float64(pos + 1)
			voteCounts[res.MemberID]++
		}
	}

	arrivalIndex := make(map[string]int, len(arrival))
	for i, res := range arrival {
		arrivalIndex[res.MemberID] = i
	}

	var entries []AggregateEntry
	for _, res := range arrival {
		votes := voteCounts[res.MemberID]
		if votes == 0 {
			continue
		}
		entries = append(entries, AggregateEntry{
			MemberID:    res.MemberID,
			Name:        res.Name,
			Model:       res.Model,
			AverageRank: rankSums[res.MemberID] / float64(votes),
			VoteCount:   votes,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].AverageRank != entries[j].AverageRank {
			return entries[i].AverageRank < entries[j].AverageRank
		}
		if entries[i].VoteCount != entries[j].VoteCount {
			return entries[i].VoteCount > entries[j].VoteCount
		}
		return arrivalIndex[entries[i].MemberID] < arrivalIndex[entries[j].MemberID]
	})
	return entries
}
