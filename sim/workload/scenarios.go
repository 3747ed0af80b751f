package workload

import (
	"fmt"
	"sort"

	"k8s.io/utils/ptr"

	"github.com/fogsim/fogsim/sim"
)

// Built-in scenario presets reproducing the reference fixtures.
// Each returns a fresh, valid TopologySpec.

var scenarios = map[string]func() *TopologySpec{
	"onco":    ScenarioONCO,
	"pbo":     ScenarioPBO,
	"pagurus": ScenarioPagurus,
	"mmto":    ScenarioMMTO,
	"ldls":    ScenarioLDLS,
	"full":    ScenarioFull,
}

// ScenarioNames returns the preset names, sorted.
func ScenarioNames() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Scenario returns the named preset.
func Scenario(name string) (*TopologySpec, error) {
	build, ok := scenarios[name]
	if !ok {
		return nil, fmt.Errorf("unknown scenario %q; valid: %v", name, ScenarioNames())
	}
	return build(), nil
}

// roadsideUnits are the three roadside units shared by the cost-driven presets.
func roadsideUnits() []UnitSpec {
	return []UnitSpec{
		{ID: 0, Name: "rsu_0", MaxCapacity: 110, RetentionCost: 0.02, ComputationCost: 0.03, PreparationCost: 0.01},
		{ID: 1, Name: "rsu_1", MaxCapacity: 120, RetentionCost: 0.04, ComputationCost: 0.02, PreparationCost: 0.025},
		{ID: 2, Name: "rsu_2", MaxCapacity: 130, RetentionCost: 0.025, ComputationCost: 0.05, PreparationCost: 0.02},
	}
}

// ScenarioONCO is load-adaptive greedy placement with slope weights over
// three roadside units and three requests for five ticks.
func ScenarioONCO() *TopologySpec {
	return &TopologySpec{
		Version: "1", Name: "onco", Ticks: 5,
		Units: roadsideUnits(),
		Requests: []RequestSpec{
			{ID: 0, Deadline: 4, Load: 25, TransferCost: 0.025, PreparationCost: 0.02, Distance: 110},
			{ID: 1, Deadline: 5, Load: 35, TransferCost: 0.035, PreparationCost: 0.02, Distance: 130},
			{ID: 2, Deadline: 2, Load: 12, TransferCost: 0.015, PreparationCost: 0.008, Distance: 90},
		},
		Policy: &sim.PolicyBundle{
			WeightAdapter:      "slope",
			Placement:          "cost-greedy",
			CostLens:           "fixed-weight",
			RetentionThreshold: ptr.To(sim.DefaultRetentionThreshold),
		},
	}
}

// ScenarioPBO is pressure-based autoscaling over two edge units and a cloud
// unit, with one function routed across both edges.
func ScenarioPBO() *TopologySpec {
	return &TopologySpec{
		Version: "1", Name: "pbo", Ticks: 5,
		Units: []UnitSpec{
			{ID: 0, Name: "edge_1", CPUUsage: 30, NetworkLatency: 50, Replicas: 3, MinReplicas: 1, MaxReplicas: 10},
			{ID: 1, Name: "edge_2", CPUUsage: 40, NetworkLatency: 60, Replicas: 2, MinReplicas: 1, MaxReplicas: 10},
			{ID: 2, Name: "cloud", CPUUsage: 70, NetworkLatency: 150, Replicas: 5, MinReplicas: 1, MaxReplicas: 20},
		},
		Instances: []InstanceSpec{
			{ID: "instance_1", Function: "func_a", Unit: 0},
			{ID: "instance_2", Function: "func_a", Unit: 1},
		},
		Policy: &sim.PolicyBundle{
			PressureHigh: ptr.To(sim.DefaultPressureHigh),
			PressureLow:  ptr.To(sim.DefaultPressureLow),
		},
	}
}

// ScenarioPagurus is two mutually helpful functions, each with one idle
// private container, invoked once per tick.
func ScenarioPagurus() *TopologySpec {
	return &TopologySpec{
		Version: "1", Name: "pagurus", Ticks: 5,
		Containers: []ContainerSpec{
			{Function: "function_a", State: "private", Idle: true},
			{Function: "function_b", State: "private", Idle: true},
		},
		Dependencies: []DependencySpec{{Helper: "function_a", Target: "function_b", Mutual: true}},
		Invocations:  []string{"function_a", "function_b"},
	}
}

// ScenarioMMTO is logistic-weighted placement with demand-driven transfers,
// bundle prefetching and decaying request load.
func ScenarioMMTO() *TopologySpec {
	return &TopologySpec{
		Version: "1", Name: "mmto", Ticks: 5, Jitter: JitterDecay,
		Units: roadsideUnits(),
		Requests: []RequestSpec{
			{ID: 0, Deadline: 4, Load: 25, TransferCost: 0.025, PreparationCost: 0.02, Demand: 10, Distance: 110},
			{ID: 1, Deadline: 5, Load: 35, TransferCost: 0.035, PreparationCost: 0.02, Demand: 15, Distance: 130},
			{ID: 2, Deadline: 2, Load: 12, TransferCost: 0.015, PreparationCost: 0.008, Demand: 5, Distance: 90},
		},
		Bundles: []BundleSpec{
			{ID: 0, Size: 10, PrefetchCost: 2},
			{ID: 1, Size: 15, PrefetchCost: 3},
			{ID: 2, Size: 8, PrefetchCost: 1.5},
		},
		Policy: &sim.PolicyBundle{
			WeightAdapter:          "logistic",
			Placement:              "cost-greedy",
			CostLens:               "fixed-weight",
			ReportingWeights:       []float64{1, 1, 1, 1},
			PrefetchCostMultiplier: ptr.To(sim.DefaultPrefetchCostMultiplier),
			TransferPenalty:        ptr.To(sim.DefaultTransferPenalty),
		},
	}
}

// ScenarioLDLS is layer-aware scheduling of two image-backed tasks on two
// nodes with learned placement priors.
func ScenarioLDLS() *TopologySpec {
	return &TopologySpec{
		Version: "1", Name: "ldls", Ticks: 5, Jitter: JitterFluctuate,
		Units: []UnitSpec{
			{ID: 0, Name: "node_0", MaxCapacity: 10, CPUFrequency: 1.2, Bandwidth: 100,
				StorageCapacity: 15, MaxContainers: 10, LocalLayers: []int{1, 2}},
			{ID: 1, Name: "node_1", MaxCapacity: 8, CPUFrequency: 0.9, Bandwidth: 80,
				StorageCapacity: 10, Distance: 5, MaxContainers: 8, LocalLayers: []int{3, 4}},
		},
		Layers: []LayerSpec{{ID: 1, Size: 2.5}, {ID: 2, Size: 3.0}, {ID: 3, Size: 1.5}, {ID: 4, Size: 4.0}},
		Images: []ImageSpec{{ID: 0, Layers: []int{1, 2}}, {ID: 1, Layers: []int{3, 4}}},
		Requests: []RequestSpec{
			{ID: 0, Image: ptr.To(0), Load: 0.8, DataSize: 1000, ComputationRequirement: 50},
			{ID: 1, Image: ptr.To(1), Load: 1.0, DataSize: 1500, ComputationRequirement: 100},
		},
		Policy: &sim.PolicyBundle{
			WeightAdapter:      "logistic",
			Placement:          "layer-scored",
			CostLens:           "layer-aware",
			CapacityPolicy:     sim.CapacityReset,
			RetentionThreshold: ptr.To(sim.StrictRetentionThreshold),
		},
	}
}

// ScenarioFull exercises every phase at once: cost-driven placement with
// prefetch and transfers, autoscaling with routing, and container lifecycle.
func ScenarioFull() *TopologySpec {
	units := roadsideUnits()
	attrs := []struct {
		cpu, latency      float64
		replicas, maxReps int
	}{{30, 50, 3, 10}, {40, 60, 2, 10}, {70, 150, 5, 20}}
	for i := range units {
		units[i].CPUUsage = attrs[i].cpu
		units[i].NetworkLatency = attrs[i].latency
		units[i].Replicas = attrs[i].replicas
		units[i].MinReplicas = 1
		units[i].MaxReplicas = attrs[i].maxReps
	}
	mmto := ScenarioMMTO()
	return &TopologySpec{
		Version: "1", Name: "full", Ticks: 10,
		Units:    units,
		Requests: mmto.Requests,
		Bundles:  mmto.Bundles,
		Instances: []InstanceSpec{
			{ID: "instance_1", Function: "function_a", Unit: 0},
			{ID: "instance_2", Function: "function_a", Unit: 1},
			{ID: "instance_3", Function: "function_b", Unit: 2},
		},
		Containers: []ContainerSpec{
			{Function: "function_a", Idle: true},
			{Function: "function_b", Idle: true},
		},
		Dependencies: []DependencySpec{{Helper: "function_a", Target: "function_b", Mutual: true}},
		Invocations:  []string{"function_a", "function_b", "function_a"},
		Policy: &sim.PolicyBundle{
			WeightAdapter:          "slope",
			Placement:              "cost-greedy",
			CapacityPolicy:         sim.CapacityReset,
			PrefetchCostMultiplier: ptr.To(sim.DefaultPrefetchCostMultiplier),
			TransferPenalty:        ptr.To(sim.DefaultTransferPenalty),
		},
	}
}
