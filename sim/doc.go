// Package sim provides the core of a discrete-tick simulator for placing
// service requests onto capacity-limited edge and fog resource units.
//
// # Reading Guide
//
// Start with these files to understand one tick:
//   - unit.go: ResourceUnit, ServiceRequest and the capacity invariant
//   - weights.go: load-adaptive cost weights (slope, logistic)
//   - placement.go: greedy placement, bundle prefetch and demand transfers
//   - cost.go: decision cost, reporting cost lenses and instance cost
//
// # Architecture
//
// The sim package defines the data model, the per-phase policies and the
// factories that select them by name; composition lives in sub-packages:
//   - sim/cluster/: the tick loop, run metrics and the Prometheus exporter
//   - sim/container/: per-function container pools, zygotes, forks and the cost ledger
//   - sim/workload/: topology YAML, scenario presets and per-tick jitter
//   - sim/trace/: decision trace recording
//
// # Key Interfaces
//
// The extension points are small interfaces selected by name from a PolicyBundle:
//   - WeightAdapter: map cluster load to a WeightVector
//   - PlacementPolicy: assign requests to units without breaking capacity
//   - CostLens: price an assignment for reporting
//   - Randomness: supply one independent source per subsystem
package sim
