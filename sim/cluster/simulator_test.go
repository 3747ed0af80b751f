package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fogsim/fogsim/sim"
	"github.com/fogsim/fogsim/sim/container"
	"github.com/fogsim/fogsim/sim/internal/testutil"
	"github.com/fogsim/fogsim/sim/trace"
	"github.com/fogsim/fogsim/sim/workload"
)

func TestSimulator_EveryScenarioKeepsCapacityInvariant(t *testing.T) {
	for _, name := range workload.ScenarioNames() {
		t.Run(name, func(t *testing.T) {
			cfg, topo := scenarioConfig(t, name)
			s := NewSimulator(cfg, topo, sim.NewPartitionedRNG(sim.NewSimulationKey(42)))

			records := s.Run()

			require.Len(t, records, cfg.Ticks)
			for i, rec := range records {
				assert.Equal(t, i, rec.Tick)
				assert.InDelta(t, rec.AssignmentCost+rec.PrefetchCost+rec.InstanceCost+rec.ContainerCost, rec.TotalCost, 1e-9)
				assert.GreaterOrEqual(t, rec.Load, 0.0)
				assert.LessOrEqual(t, rec.Load, 1.0)
			}
			for _, u := range s.Units() {
				assert.LessOrEqual(t, u.UsedCapacity, u.MaxCapacity+1e-9, "unit %d", u.ID)
				assert.GreaterOrEqual(t, u.UsedCapacity, 0.0)
				if u.MaxReplicas > 0 {
					assert.GreaterOrEqual(t, u.Replicas, u.ScaleFloor())
					assert.LessOrEqual(t, u.Replicas, u.MaxReplicas)
				}
			}
		})
	}
}

func TestSimulator_RoadsideFirstTick(t *testing.T) {
	// GIVEN the three roadside units, empty, with three requests
	_, records := runScenario(t, "onco", sim.NewPartitionedRNG(sim.NewSimulationKey(42)))

	// THEN tick 0 observes zero load and uses the low-load weights
	first := records[0]
	assert.Equal(t, 0.0, first.Load)
	assert.Equal(t, sim.LowLoadWeights, first.Weights)

	// AND every request is placed with nothing starved
	require.Len(t, first.Assignments, 3)
	assert.Empty(t, first.Starved)
	assert.Len(t, first.Retained, 3)

	// AND with no pools or instances, the cost is the assignment cost alone
	assert.Equal(t, 0.0, first.ContainerCost)
	assert.Equal(t, 0.0, first.InstanceCost)
	assert.InDelta(t, first.AssignmentCost, first.TotalCost, 1e-12)

	// AND load grows as capacity persists
	assert.Greater(t, records[1].Load, 0.0)
}

func TestSimulator_ResetPolicyReleasesEachTick(t *testing.T) {
	cfg, topo := scenarioConfig(t, "onco")
	cfg.Policy.CapacityPolicy = sim.CapacityReset
	s := NewSimulator(cfg, topo, sim.NewPartitionedRNG(sim.NewSimulationKey(1)))

	records := s.Run()

	// load is observed before the release, so every later tick sees one tick's worth
	for _, rec := range records[1:] {
		assert.InDelta(t, records[1].Load, rec.Load, 1e-12)
		assert.Len(t, rec.Assignments, 3)
	}
}

func TestSimulator_PressureScenarioScalesAndRoutes(t *testing.T) {
	_, records := runScenario(t, "pbo", sim.NewPartitionedRNG(sim.NewSimulationKey(42)))

	first := records[0]
	// both edges fall below the low threshold; the cloud holds
	require.Len(t, first.Scaling, 2)
	assert.Equal(t, []sim.UnitReplicas{{UnitID: 0, Replicas: 2}, {UnitID: 1, Replicas: 1}, {UnitID: 2, Replicas: 5}}, first.Replicas)
	assert.Equal(t, 0, first.NewInstanceUnit)

	// func_a splits across the two edges
	require.Len(t, first.Routing, 1)
	assert.Equal(t, "func_a", first.Routing[0].Function)
	assert.Len(t, first.Routing[0].Instances, 2)

	// instance cost is charged, and replicas never drop below the floor
	assert.Greater(t, first.InstanceCost, 0.0)
	assert.Greater(t, first.TotalLatencyUs, 0.0)
	last := records[len(records)-1]
	for _, r := range last.Replicas {
		assert.GreaterOrEqual(t, r.Replicas, 1)
	}
}

func TestSimulator_TwoFunctionLifecycleCosts(t *testing.T) {
	// GIVEN pinned randomness so every cost variation is exactly 0.2
	s, records := runScenario(t, "pagurus", sim.NewFixedRandomness(0.5))

	// THEN tick 0 charges two zygotes, two forks and the balancer
	assert.InDelta(t, 2*0.3+2*0.25+0.25, records[0].ContainerCost, 1e-9)
	// AND later ticks serve both functions warm
	assert.InDelta(t, 2*0.22+0.25, records[1].ContainerCost, 1e-9)
	assert.InDelta(t, records[0].ContainerCost, records[0].TotalCost, 1e-12)

	testutil.AssertFloat64Equal(t, "ledger total", s.Containers().Ledger().Total(), CollectRunMetrics(records).ContainerCost, 1e-9)
	assert.Len(t, s.Containers().Pool("function_a"), 2)
}

func TestSimulator_ContainerCostOverride(t *testing.T) {
	cfg, topo := scenarioConfig(t, "pagurus")
	costs := container.DefaultCosts()
	costs.VariationMin, costs.VariationMax = 0, 0
	costs.Balance = 1
	cfg.ContainerCosts = &costs
	cfg.Ticks = 2

	records := NewSimulator(cfg, topo, nil).Run()

	assert.InDelta(t, 2*0.02+1, records[1].ContainerCost, 1e-12)
}

func TestSimulator_LayerScenarioLearnsPrior(t *testing.T) {
	s, records := runScenario(t, "ldls", sim.NewPartitionedRNG(sim.NewSimulationKey(42)))

	require.NotNil(t, s.Policy())
	assert.Equal(t, sim.DefaultPolicyIterations, s.Policy().Step())
	for _, rec := range records {
		require.Len(t, rec.Assignments, 2)
		assert.Equal(t, 0, rec.Assignments[0].UnitID)
		assert.Equal(t, 1, rec.Assignments[1].UnitID)
	}
}

func TestSimulator_CostGreedyHasNoPrior(t *testing.T) {
	s, _ := runScenario(t, "onco", nil)
	assert.Nil(t, s.Policy())
}

func TestSimulator_RunTwicePanics(t *testing.T) {
	cfg, topo := scenarioConfig(t, "onco")
	s := NewSimulator(cfg, topo, nil)
	s.Run()
	assert.Panics(t, func() { s.Run() })
}

func TestSimulator_CallerTopologyUntouched(t *testing.T) {
	cfg, topo := scenarioConfig(t, "mmto")
	before := topo.Clone()

	NewSimulator(cfg, topo, sim.NewPartitionedRNG(sim.NewSimulationKey(3))).Run()

	assert.Equal(t, before.Units, topo.Units)
	assert.Equal(t, before.Requests, topo.Requests)
}

func TestSimulator_ZeroTicks(t *testing.T) {
	cfg, topo := scenarioConfig(t, "onco")
	cfg.Ticks = 0
	assert.Empty(t, NewSimulator(cfg, topo, nil).Run())

	cfg.Ticks = -1
	assert.Panics(t, func() { NewSimulator(cfg, topo, nil) })
	assert.Panics(t, func() { NewSimulator(Config{}, nil, nil) })
}

func TestSimulator_TraceRecordsDecisions(t *testing.T) {
	// GIVEN decision tracing with two counterfactual candidates
	cfg, topo := scenarioConfig(t, "full")
	cfg.Trace = trace.TraceConfig{Level: trace.TraceLevelDecisions, CounterfactualK: 2}
	s := NewSimulator(cfg, topo, sim.NewPartitionedRNG(sim.NewSimulationKey(42)))

	records := s.Run()

	// THEN one placement record per request per tick
	st := s.Trace()
	require.NotNil(t, st)
	assert.Len(t, st.Placements, len(topo.Requests)*cfg.Ticks)
	for _, p := range st.Placements {
		if p.Starved {
			assert.Equal(t, -1, p.ChosenUnit)
			continue
		}
		assert.LessOrEqual(t, len(p.Candidates), 2)
		// cost-greedy picks the minimum, so there is never regret
		assert.Equal(t, 0.0, p.Regret)
	}

	// AND lifecycle and scaling events match the records
	scalings := 0
	for _, rec := range records {
		scalings += len(rec.Scaling)
	}
	assert.Len(t, st.Scalings, scalings)
	assert.NotEmpty(t, st.Lifecycle)
}

func TestSimulator_TraceDisabledByDefault(t *testing.T) {
	s, _ := runScenario(t, "onco", nil)
	assert.Nil(t, s.Trace())
}

func TestSimulator_NewInstanceUsesPostScalePressure(t *testing.T) {
	// GIVEN two units at the target RTT: unit 0 has more replicas but less CPU
	spec := &workload.TopologySpec{
		Ticks: 1,
		Units: []workload.UnitSpec{
			{ID: 0, MaxCapacity: 10, NetworkLatency: 70, CPUUsage: 50, Replicas: 2, MaxReplicas: 10},
			{ID: 1, MaxCapacity: 10, NetworkLatency: 70, CPUUsage: 80, Replicas: 1, MaxReplicas: 10},
		},
	}
	cfg, topo := specConfig(t, spec)
	before := sim.SnapshotPressures(topo.Units, cfg.Policy.Pressure)
	require.InDelta(t, 0.05, before[0].Value, 1e-12)
	require.InDelta(t, 0.04, before[1].Value, 1e-12)
	a := sim.NewAutoscaler(cfg.Policy.PressureHigh, cfg.Policy.PressureLow)
	require.Equal(t, 1, a.FindPlacement(topo.Units, before), "unit 1 wins before scaling")

	// WHEN one tick scales unit 0 down to a single replica
	rec := NewSimulator(cfg, topo, nil).Run()[0]

	// THEN its pressure halves to 0.025 and the new instance goes there
	require.Equal(t, []sim.ScalingDecision{{UnitID: 0, Pressure: before[0].Value, From: 2, To: 1}}, rec.Scaling)
	assert.Equal(t, 0, rec.NewInstanceUnit)
}

func TestSimulator_StarvedRequestExcludedFromCost(t *testing.T) {
	// GIVEN two units with room for 10 each and a request of load 50
	units := []workload.UnitSpec{
		{ID: 0, MaxCapacity: 10, ComputationCost: 0.03, RetentionCost: 0.02},
		{ID: 1, MaxCapacity: 10, ComputationCost: 0.05, RetentionCost: 0.01},
	}
	fits := []workload.RequestSpec{
		{ID: 0, Load: 4, TransferCost: 0.02, PreparationCost: 0.01},
		{ID: 2, Load: 3, TransferCost: 0.03, PreparationCost: 0.02},
	}
	oversized := workload.RequestSpec{ID: 1, Load: 50, TransferCost: 0.5, PreparationCost: 0.5}

	cfg, topo := specConfig(t, &workload.TopologySpec{
		Ticks: 1, Units: units, Requests: []workload.RequestSpec{fits[0], oversized, fits[1]},
	})
	rec := NewSimulator(cfg, topo, nil).Run()[0]

	// THEN the oversized request is starved with no assignment
	assert.Equal(t, []int{1}, rec.Starved)
	require.Len(t, rec.Assignments, 2)
	for _, a := range rec.Assignments {
		assert.NotEqual(t, 1, a.RequestID)
	}

	// AND the tick cost is the reporting cost of the placed requests only
	want := 0.0
	for _, a := range rec.Assignments {
		ri, ui := -1, sim.UnitIndex(topo.Units, a.UnitID)
		for i := range topo.Requests {
			if topo.Requests[i].ID == a.RequestID {
				ri = i
			}
		}
		want += sim.ReportingCost(&topo.Requests[ri], &topo.Units[ui], cfg.Policy.ReportingWeights)
	}
	assert.InDelta(t, want, rec.AssignmentCost, 1e-12)
	assert.InDelta(t, rec.AssignmentCost, rec.TotalCost, 1e-12)

	// AND matches a run without the oversized request at all
	cfg, topo = specConfig(t, &workload.TopologySpec{Ticks: 1, Units: units, Requests: fits})
	without := NewSimulator(cfg, topo, nil).Run()[0]
	assert.InDelta(t, without.TotalCost, rec.TotalCost, 1e-12)
	assert.Equal(t, without.Assignments, rec.Assignments)
}
