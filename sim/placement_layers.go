package sim

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// LayerCatalog maps an image layer ID to its size.
type LayerCatalog map[int]float64

// Exploration noise bounds (±5%).
const (
	explorationMin = 0.95
	explorationMax = 1.05
)

// LayerScored is the feature-scored (RL-flavoured) placement strategy.
// A unit's score is the size of the request's layers it already caches,
// per unit of cpuFrequency·bandwidth, times a ±5% exploration factor.
// The highest score wins; a PolicyScore prior only breaks exact ties.
// LayerScored never writes to the prior.
type LayerScored struct {
	catalog LayerCatalog
	policy  *PolicyScore
	noise   distuv.Uniform
}

// NewLayerScored creates a LayerScored drawing exploration noise from src.
// policy may be nil.
func NewLayerScored(src rand.Source, catalog LayerCatalog, policy *PolicyScore) *LayerScored {
	return &LayerScored{
		catalog: catalog,
		policy:  policy,
		noise:   distuv.Uniform{Min: explorationMin, Max: explorationMax, Src: src},
	}
}

// ExtractFeatures sums the (noisy) sizes of the request's layers cached on unit.
func (ls *LayerScored) ExtractFeatures(req *ServiceRequest, unit *ResourceUnit) float64 {
	score := 0.0
	for _, layer := range req.Layers {
		if unit.HasLayer(layer) {
			score += ls.catalog[layer] * ls.noise.Rand()
		}
	}
	return score
}

// hasSlot reports whether unit can take one more container for req.
func hasSlot(req *ServiceRequest, unit *ResourceUnit) bool {
	return unit.MaxContainers-unit.Containers > 0 &&
		unit.StorageCapacity > 0 &&
		unit.CPUFrequency*unit.Bandwidth > 0 &&
		unit.Fits(req.Load)
}

// selectUnit returns the index of the best unit for req, its score, and the
// scores of all feasible candidates. Index is -1 when nothing is feasible.
func (ls *LayerScored) selectUnit(req *ServiceRequest, units []ResourceUnit) (int, float64, map[int]float64) {
	best := -1
	bestScore := math.Inf(-1)
	scores := make(map[int]float64)
	for i := range units {
		u := &units[i]
		if !hasSlot(req, u) {
			continue
		}
		features := ls.ExtractFeatures(req, u)
		score := features / (u.CPUFrequency * u.Bandwidth) * ls.noise.Rand()
		scores[u.ID] = score
		switch {
		case score > bestScore:
		case score == bestScore && ls.prior(u.ID) > ls.prior(units[best].ID):
		default:
			continue
		}
		best = i
		bestScore = score
	}
	return best, bestScore, scores
}

func (ls *LayerScored) prior(unitID int) float64 {
	if ls.policy == nil {
		return 0
	}
	return ls.policy.Get(unitID)
}

// Place implements PlacementPolicy for LayerScored. Each assignment consumes
// the request load and one container slot on the chosen unit.
func (ls *LayerScored) Place(requests []ServiceRequest, units []ResourceUnit, _ WeightVector) PlacementResult {
	res := PlacementResult{Scores: make(map[int]map[int]float64, len(requests))}
	for r := range requests {
		req := &requests[r]
		best, score, scores := ls.selectUnit(req, units)
		res.Scores[req.ID] = scores
		if best == -1 {
			res.Starved = append(res.Starved, req.ID)
			continue
		}
		units[best].Consume(req.Load)
		units[best].Containers++
		res.Assignments = append(res.Assignments, Assignment{RequestID: req.ID, UnitID: units[best].ID, Cost: score})
	}
	return res
}

// Higher implements PlacementPolicy. Layer-scored maximises.
func (*LayerScored) Higher() bool { return true }

// Offline policy optimisation defaults.
const (
	DefaultPolicyIterations = 300
	DefaultLearningRate     = 0.01
)

// OptimizePolicy runs the offline pass: for each iteration, every request is
// scored against the units (without consuming capacity) and the selected
// unit's prior grows by learningRate/(step+1).
func (ls *LayerScored) OptimizePolicy(requests []ServiceRequest, units []ResourceUnit, iterations int, learningRate float64) {
	if ls.policy == nil {
		return
	}
	for i := 0; i < iterations; i++ {
		for r := range requests {
			if best, _, _ := ls.selectUnit(&requests[r], units); best != -1 {
				ls.policy.Reward(units[best].ID, learningRate)
			}
		}
		ls.policy.Advance()
	}
}

// PolicyScore is the per-unit prior accumulated by policy optimisation.
// Scores never decrease. The step counter sets the decaying learning step
// lr/(step+1), so online updates continue where the offline pass stopped.
type PolicyScore struct {
	scores map[int]float64
	step   int
}

// NewPolicyScore returns an empty PolicyScore.
func NewPolicyScore() *PolicyScore {
	return &PolicyScore{scores: make(map[int]float64)}
}

// Get returns the accumulated score for unitID (0 if never rewarded).
func (p *PolicyScore) Get(unitID int) float64 { return p.scores[unitID] }

// Reward adds learningRate/(step+1) to unitID.
func (p *PolicyScore) Reward(unitID int, learningRate float64) {
	if learningRate <= 0 {
		return
	}
	p.scores[unitID] += learningRate / float64(p.step+1)
}

// Advance moves to the next learning step.
func (p *PolicyScore) Advance() { p.step++ }

// Step returns the number of completed learning steps.
func (p *PolicyScore) Step() int { return p.step }

// Snapshot returns a copy of the scores.
func (p *PolicyScore) Snapshot() map[int]float64 {
	out := make(map[int]float64, len(p.scores))
	for k, v := range p.scores {
		out[k] = v
	}
	return out
}

// Units returns the rewarded unit IDs in ascending order.
func (p *PolicyScore) Units() []int {
	ids := make([]int, 0, len(p.scores))
	for id := range p.scores {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// ApplyOnline folds one tick's assignments into the prior, then advances a step.
func (p *PolicyScore) ApplyOnline(assignments []Assignment, learningRate float64) {
	for _, a := range assignments {
		p.Reward(a.UnitID, learningRate)
	}
	p.Advance()
}
