// Package trace provides decision-trace recording for placement, scaling and
// container lifecycle analysis.
// This package has no dependencies on sim/ or sim/cluster/; it stores pure data types.
package trace

// CandidateScore captures a counterfactual candidate unit with its score.
type CandidateScore struct {
	UnitID int
	Score  float64
}

// PlacementRecord captures a single placement decision with optional
// counterfactual analysis. Starved records have ChosenUnit -1.
type PlacementRecord struct {
	Tick       int
	RequestID  int
	ChosenUnit int
	Score      float64
	Starved    bool
	Candidates []CandidateScore // top-k candidates, best first (nil if k=0)
	Regret     float64          // gap between the best alternative and the chosen score; 0 if chosen is best
}

// ScalingRecord captures one autoscaler replica change.
type ScalingRecord struct {
	Tick     int
	UnitID   int
	Pressure float64
	From     int
	To       int
}

// LifecycleRecord captures one container lifecycle transition.
type LifecycleRecord struct {
	Tick        int
	Function    string
	Action      string
	Helper      string
	ContainerID string
	Cost        float64
}
