// Per-tick output records emitted by the simulator.

package sim

// UnitReplicas reports one unit's replica count after autoscaling.
type UnitReplicas struct {
	UnitID   int `json:"unit_id"`
	Replicas int `json:"replicas"`
}

// TickRecord is the metrics record emitted at the end of every tick.
// Slices are in deterministic order (request order, unit order, or sorted
// function name) so identical runs serialise to identical bytes.
type TickRecord struct {
	Tick           int          `json:"tick"`
	Load           float64      `json:"load"`
	Weights        WeightVector `json:"weights"`
	TotalCost      float64      `json:"total_cost"`
	TotalLatencyUs float64      `json:"total_latency_us"`

	Assignments []Assignment        `json:"assignments"`
	Starved     []int               `json:"starved"`
	Prefetched  []Prefetch          `json:"prefetched,omitempty"`
	Transfers   []Transfer          `json:"transfers,omitempty"`
	Retained    []RetentionDecision `json:"retained"`
	Replicas    []UnitReplicas      `json:"replicas"`
	Scaling     []ScalingDecision   `json:"scaling,omitempty"`
	// NewInstanceUnit is the unit ID a new instance would be placed on, or -1.
	NewInstanceUnit int               `json:"new_instance_unit"`
	Routing         []FunctionRouting `json:"routing,omitempty"`

	// Cost breakdown; TotalCost is their sum.
	AssignmentCost float64 `json:"assignment_cost"`
	PrefetchCost   float64 `json:"prefetch_cost"`
	InstanceCost   float64 `json:"instance_cost"`
	ContainerCost  float64 `json:"container_cost"`

	// Unreachable counts assignments or instances whose cost hit a
	// zero-denominator guard and were excluded from the totals.
	Unreachable int `json:"unreachable,omitempty"`
}
