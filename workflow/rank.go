// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package workflow

import "sort"

// Rank orders matches by the compound score of spec.md §4.6, descending.
// Ties retain their original (registry-insertion) order, per spec.md
// §4.7.4 — sort.SliceStable preserves that since matches already arrive
// from Evaluate in insertion order.
func Rank(matches []Match) []Match {
	ranked := make([]Match, len(matches))
	copy(ranked, matches)
	for i := range ranked {
		ranked[i].compoundScore = compoundScore(ranked[i])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].compoundScore > ranked[j].compoundScore
	})
	return ranked
}

func compoundScore(m Match) float64 {
	durationPenalty := min(0.1, m.Duration.Minutes()/1440)
	agentPenalty := min(0.05, 0.01*float64(len(m.RequiredRoles)))
	prereqPenalty := min(0.05, 0.01*float64(len(m.Prerequisites)))
	return 0.7*m.Relevance + 0.3*m.Confidence - durationPenalty - agentPenalty - prereqPenalty
}
