package cluster

import (
	"sort"

	"github.com/fogsim/fogsim/sim/trace"
)

// computeCounterfactual ranks the candidate units a placement considered and
// computes regret: how much better the best candidate was than the chosen one.
//
// higher selects the score direction. For minimising policies (cost-greedy)
// the lowest score ranks first and regret is chosen - best.
//
// Returns the top-k candidates, best first, and regret (>= 0).
func computeCounterfactual(chosenUnit int, scores map[int]float64, higher bool, k int) ([]trace.CandidateScore, float64) {
	if k <= 0 || len(scores) == 0 {
		return nil, 0
	}
	chosenScore, ok := scores[chosenUnit]
	if !ok {
		return nil, 0
	}

	all := make([]trace.CandidateScore, 0, len(scores))
	for id, s := range scores {
		all = append(all, trace.CandidateScore{UnitID: id, Score: s})
	}
	better := func(a, b float64) bool {
		if higher {
			return a > b
		}
		return a < b
	}
	// Tie-break by unit ID ascending for determinism
	sort.Slice(all, func(i, j int) bool {
		if all[i].Score != all[j].Score {
			return better(all[i].Score, all[j].Score)
		}
		return all[i].UnitID < all[j].UnitID
	})

	regret := chosenScore - all[0].Score
	if higher {
		regret = -regret
	}
	if regret < 0 {
		regret = 0
	}

	n := min(k, len(all))
	return all[:n:n], regret
}
