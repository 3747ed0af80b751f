package sim

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// PlacementResult is one placement pass over the pending requests.
type PlacementResult struct {
	Assignments []Assignment
	// Starved lists requests no unit could host this tick. They carry no
	// assignment and are excluded from cost and latency totals.
	Starved []int
	// Scores maps request ID -> unit ID -> score for every feasible candidate
	// considered. Lower is better for cost-greedy, higher for layer-scored.
	Scores map[int]map[int]float64
}

// PlacementPolicy assigns pending requests to units, consuming unit capacity.
// Assignments are irrevocable within a pass; no backtracking.
type PlacementPolicy interface {
	Place(requests []ServiceRequest, units []ResourceUnit, w WeightVector) PlacementResult
	// Higher reports whether the policy's scores prefer larger values.
	Higher() bool
}

// CostGreedy assigns each request, in order, to the feasible unit with the
// minimum decision cost. Ties keep the earliest-scanned unit (strict <).
type CostGreedy struct{}

// Place implements PlacementPolicy for CostGreedy.
func (CostGreedy) Place(requests []ServiceRequest, units []ResourceUnit, w WeightVector) PlacementResult {
	res := PlacementResult{Scores: make(map[int]map[int]float64, len(requests))}
	for r := range requests {
		req := &requests[r]
		best := -1
		minCost := math.MaxFloat64
		scores := make(map[int]float64)
		for i := range units {
			if !units[i].Fits(req.Load) {
				continue
			}
			cost := DecisionCost(req, &units[i], w)
			scores[units[i].ID] = cost
			if cost < minCost {
				minCost = cost
				best = i
			}
		}
		res.Scores[req.ID] = scores
		if best == -1 {
			res.Starved = append(res.Starved, req.ID)
			continue
		}
		units[best].Consume(req.Load)
		res.Assignments = append(res.Assignments, Assignment{RequestID: req.ID, UnitID: units[best].ID, Cost: minCost})
	}
	return res
}

// Higher implements PlacementPolicy. Cost-greedy minimises.
func (CostGreedy) Higher() bool { return false }

// validPlacementPolicies maps placement policy names to validity.
var validPlacementPolicies = map[string]bool{"": true, "cost-greedy": true, "layer-scored": true}

// IsValidPlacementPolicy returns true if name is a recognized placement policy.
func IsValidPlacementPolicy(name string) bool { return validPlacementPolicies[name] }

// ValidPlacementPolicyNames returns sorted valid placement policy names.
func ValidPlacementPolicyNames() []string { return validNamesList(validPlacementPolicies) }

// NewPlacementPolicy creates a placement policy by name.
// Empty string defaults to cost-greedy. layer-scored uses src for
// exploration noise, catalog for layer sizes, and policy as its tie-break
// prior (nil for none). Panics on unrecognized names.
func NewPlacementPolicy(name string, src rand.Source, catalog LayerCatalog, policy *PolicyScore) PlacementPolicy {
	if !IsValidPlacementPolicy(name) {
		panic(fmt.Sprintf("unknown placement policy %q", name))
	}
	switch name {
	case "", "cost-greedy":
		return CostGreedy{}
	case "layer-scored":
		return NewLayerScored(src, catalog, policy)
	default:
		panic(fmt.Sprintf("unhandled placement policy %q", name))
	}
}

// === Prefetch ===

// DefaultPrefetchCostMultiplier scales a bundle's prefetch cost into tick cost.
const DefaultPrefetchCostMultiplier = 0.05

// Prefetch records a bundle staged on a unit.
type Prefetch struct {
	BundleID int `json:"bundle_id"`
	UnitID   int `json:"unit_id"`
}

// PrefetchBundles bin-packs bundles first-fit into each unit's spare
// capacity, scanning units then bundles in order. A bundle may be staged on
// several units. Staged bundles consume capacity like requests.
func PrefetchBundles(units []ResourceUnit, bundles []PrefetchBundle) []Prefetch {
	var out []Prefetch
	for i := range units {
		for _, b := range bundles {
			if b.Size <= 0 || !units[i].Fits(b.Size) {
				continue
			}
			units[i].Consume(b.Size)
			out = append(out, Prefetch{BundleID: b.ID, UnitID: units[i].ID})
		}
	}
	return out
}

// PrefetchCost charges multiplier·prefetchCost once per distinct bundle staged.
func PrefetchCost(bundles []PrefetchBundle, staged []Prefetch, multiplier float64) float64 {
	seen := make(map[int]bool, len(staged))
	for _, p := range staged {
		seen[p.BundleID] = true
	}
	total := 0.0
	for _, b := range bundles {
		if seen[b.ID] {
			total += multiplier * b.PrefetchCost
		}
	}
	return total
}

// === Transfer ===

// DefaultTransferPenalty weights unit utilisation against request distance.
const DefaultTransferPenalty = 0.1

// Transfer records a request's demand moved onto a unit.
type Transfer struct {
	RequestID int     `json:"request_id"`
	UnitID    int     `json:"unit_id"`
	Cost      float64 `json:"cost"`
}

// PlanTransfers places each request's Demand on the unit minimising
// distance + penalty·(used/max), among units with room for it. Requests with
// no demand are skipped; infeasible demands are dropped for the tick.
func PlanTransfers(requests []ServiceRequest, units []ResourceUnit, penalty float64) []Transfer {
	var out []Transfer
	for r := range requests {
		req := &requests[r]
		if req.Demand <= 0 {
			continue
		}
		best := -1
		minCost := math.MaxFloat64
		for i := range units {
			u := &units[i]
			if u.MaxCapacity <= 0 || !u.Fits(req.Demand) {
				continue
			}
			cost := req.Distance + penalty*(u.UsedCapacity/u.MaxCapacity)
			if cost < minCost {
				minCost = cost
				best = i
			}
		}
		if best == -1 {
			continue
		}
		units[best].Consume(req.Demand)
		out = append(out, Transfer{RequestID: req.ID, UnitID: units[best].ID, Cost: minCost})
	}
	return out
}
