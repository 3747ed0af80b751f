package sim

import "fmt"

// ResourceUnit is one heterogeneous compute unit (an RSU, edge node or cloud
// server). The unit collection is the sole owner of its units; other entities
// refer to a unit by its index in that collection.
type ResourceUnit struct {
	ID   int
	Name string

	MaxCapacity  float64
	UsedCapacity float64 // invariant: UsedCapacity <= MaxCapacity; mutate only via Consume

	// Per-unit cost coefficients
	ComputationCost float64
	RetentionCost   float64
	PreparationCost float64

	NetworkLatency float64 // ms to peers; drives RTT pressure and routing weights
	CPUUsage       float64 // percent of MaxCPU

	Replicas    int
	MinReplicas int // scale-down floor; values below 1 are treated as 1
	MaxReplicas int

	// Layer-aware placement attributes
	CPUFrequency    float64 // GHz
	Bandwidth       float64
	StorageCapacity float64
	Distance        float64 // network distance from the ingress unit
	MaxContainers   int
	Containers      int
	LocalLayers     []int
}

// SpareCapacity returns MaxCapacity - UsedCapacity.
func (u *ResourceUnit) SpareCapacity() float64 {
	return u.MaxCapacity - u.UsedCapacity
}

// Fits reports whether amount can be consumed without breaking the capacity invariant.
func (u *ResourceUnit) Fits(amount float64) bool {
	return u.UsedCapacity+amount <= u.MaxCapacity
}

// Consume adds amount to UsedCapacity.
// Matchers check Fits before calling; reaching the panic means a matcher
// skipped its feasibility check, which is an internal-consistency failure.
func (u *ResourceUnit) Consume(amount float64) {
	if !u.Fits(amount) {
		panic(fmt.Sprintf("unit %d: consuming %.4f would exceed capacity (used=%.4f, max=%.4f)",
			u.ID, amount, u.UsedCapacity, u.MaxCapacity))
	}
	u.UsedCapacity += amount
}

// Release returns all consumed capacity and container slots.
// Used by the reset capacity policy at tick boundaries.
func (u *ResourceUnit) Release() {
	u.UsedCapacity = 0
	u.Containers = 0
}

// HasLayer reports whether layer is cached locally on the unit.
func (u *ResourceUnit) HasLayer(layer int) bool {
	for _, l := range u.LocalLayers {
		if l == layer {
			return true
		}
	}
	return false
}

// ScaleFloor returns the minimum replica count, never below 1.
func (u *ResourceUnit) ScaleFloor() int {
	return max(1, u.MinReplicas)
}

// ServiceRequest is a latency- and capacity-constrained workload.
// Immutable during a tick; workload jitter mutates it between ticks.
type ServiceRequest struct {
	ID              int
	Deadline        float64
	Load            float64 // computation load; consumed from the unit on assignment
	TransferCost    float64
	PreparationCost float64
	Demand          float64 // capacity claimed by the transfer pass (0 = no transfer)
	Distance        float64 // distance to the serving unit for transfer matching

	// Layer-aware placement attributes
	DataSize               float64
	ComputationRequirement float64
	Layers                 []int // image layers the request needs
}

// PrefetchBundle is a service bundle staged on a unit ahead of demand.
type PrefetchBundle struct {
	ID           int
	Size         float64
	PrefetchCost float64
}

// FunctionInstance is a live instance of a serverless function.
// Unit is a non-owning index into the unit collection, resolved on each access.
type FunctionInstance struct {
	ID       string
	Function string
	Unit     int
}

// Assignment maps a request to the unit serving it for one tick.
type Assignment struct {
	RequestID int     `json:"request_id"`
	UnitID    int     `json:"unit_id"`
	Cost      float64 `json:"decision_cost"`
}

// ClusterLoad returns Σused / Σmax across units, or 0 when Σmax is 0.
func ClusterLoad(units []ResourceUnit) float64 {
	var used, total float64
	for i := range units {
		used += units[i].UsedCapacity
		total += units[i].MaxCapacity
	}
	if total <= 0 {
		return 0
	}
	return used / total
}

// UnitIndex returns the slice index of the unit with the given ID, or -1.
func UnitIndex(units []ResourceUnit, id int) int {
	for i := range units {
		if units[i].ID == id {
			return i
		}
	}
	return -1
}
