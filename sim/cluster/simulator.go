// Package cluster composes the per-tick phases of the simulation: workload
// jitter, load observation, weight adaptation, prefetch, placement,
// transfers, retention, autoscaling, routing and container lifecycle.
package cluster

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/fogsim/fogsim/sim"
	"github.com/fogsim/fogsim/sim/container"
	"github.com/fogsim/fogsim/sim/trace"
	"github.com/fogsim/fogsim/sim/workload"
)

// Config holds the run parameters of a Simulator.
type Config struct {
	Ticks  int
	Jitter string // workload jitter name; see workload.NewJitter
	Policy sim.PolicyConfig
	Trace  trace.TraceConfig
	// ContainerCosts overrides the lifecycle cost tiers; zero value means defaults.
	ContainerCosts *container.Costs
}

// Simulator runs the discrete tick loop over one topology. It owns a private
// copy of the topology; the caller's copy is never mutated.
// Not safe for concurrent use.
type Simulator struct {
	config Config
	topo   *workload.Topology

	jitter     workload.Jitter
	adapter    sim.WeightAdapter
	weights    sim.WeightAdapterState
	placement  sim.PlacementPolicy
	lens       sim.CostLens
	policy     *sim.PolicyScore
	autoscaler *sim.Autoscaler
	containers *container.Manager
	instance   distuv.Uniform

	trace   *trace.SimulationTrace
	records []sim.TickRecord
	ran     bool
}

// NewSimulator builds a Simulator. rnd supplies one source per subsystem;
// nil means a PartitionedRNG seeded with 0. Panics on invalid policy names
// or a nil topology; callers validate configuration first.
func NewSimulator(config Config, topo *workload.Topology, rnd sim.Randomness) *Simulator {
	if topo == nil {
		panic("NewSimulator: topology must not be nil")
	}
	if config.Ticks < 0 {
		panic(fmt.Sprintf("NewSimulator: ticks must be non-negative, got %d", config.Ticks))
	}
	if rnd == nil {
		rnd = sim.NewPartitionedRNG(sim.NewSimulationKey(0))
	}
	topo = topo.Clone()

	s := &Simulator{
		config:     config,
		topo:       topo,
		jitter:     workload.NewJitter(config.Jitter, rnd.Source(sim.SubsystemWorkload)),
		adapter:    sim.NewWeightAdapter(config.Policy.WeightAdapter),
		weights:    sim.NewWeightAdapterState(),
		lens:       sim.NewCostLens(config.Policy.CostLens, config.Policy.ReportingWeights, rnd.Source(sim.SubsystemCost)),
		autoscaler: sim.NewAutoscaler(config.Policy.PressureHigh, config.Policy.PressureLow),
		instance: distuv.Uniform{
			Min: sim.InstanceJitterMin,
			Max: sim.InstanceJitterMax,
			Src: rnd.Source(sim.SubsystemInstance),
		},
	}

	if config.Policy.Placement == "layer-scored" {
		s.policy = sim.NewPolicyScore()
	}
	s.placement = sim.NewPlacementPolicy(config.Policy.Placement, rnd.Source(sim.SubsystemPlacement), topo.Catalog, s.policy)
	if ls, ok := s.placement.(*sim.LayerScored); ok {
		ls.OptimizePolicy(topo.Requests, topo.Units, config.Policy.PolicyIterations, config.Policy.LearningRate)
		logrus.Debugf("offline policy after %d steps: %v", s.policy.Step(), s.policy.Snapshot())
	}

	costs := container.DefaultCosts()
	if config.ContainerCosts != nil {
		costs = *config.ContainerCosts
	}
	s.containers = container.NewManager(topo.Graph, rnd.Source(sim.SubsystemLifecycle), costs)
	for _, seed := range topo.Containers {
		s.containers.AddContainer(seed.Function, seed.State, seed.Idle)
	}

	if config.Trace.Level != "" && config.Trace.Level != trace.TraceLevelNone {
		s.trace = trace.NewSimulationTrace(config.Trace)
	}
	return s
}

// Run executes every tick and returns the tick records.
// Panics if called more than once.
func (s *Simulator) Run() []sim.TickRecord {
	if s.ran {
		panic("Simulator.Run called more than once")
	}
	s.ran = true
	s.records = make([]sim.TickRecord, 0, s.config.Ticks)
	for tick := 0; tick < s.config.Ticks; tick++ {
		rec := s.step(tick)
		logrus.Debugf("tick %d: load=%.4f cost=%.4f assigned=%d starved=%d",
			tick, rec.Load, rec.TotalCost, len(rec.Assignments), len(rec.Starved))
		s.records = append(s.records, rec)
	}
	return s.records
}

// Records returns the records emitted so far.
func (s *Simulator) Records() []sim.TickRecord { return s.records }

// Trace returns the decision trace, or nil when tracing is disabled.
func (s *Simulator) Trace() *trace.SimulationTrace { return s.trace }

// Units returns the simulator's unit collection.
func (s *Simulator) Units() []sim.ResourceUnit { return s.topo.Units }

// Requests returns the simulator's request collection after jitter.
func (s *Simulator) Requests() []sim.ServiceRequest { return s.topo.Requests }

// Policy returns the learned placement prior, or nil for cost-greedy.
func (s *Simulator) Policy() *sim.PolicyScore { return s.policy }

// Containers returns the container lifecycle manager.
func (s *Simulator) Containers() *container.Manager { return s.containers }

// step runs one tick. The phase order is fixed: jitter, observe load,
// weights, prefetch, placement, transfers, online policy, retention,
// autoscaling, routing, container lifecycle. A new instance is placed on the
// pressures seen after this tick's scaling.
func (s *Simulator) step(tick int) sim.TickRecord {
	units, requests := s.topo.Units, s.topo.Requests
	pc := &s.config.Policy

	s.jitter.Apply(requests, units)

	load := sim.ClusterLoad(units)
	if pc.CapacityPolicy == sim.CapacityReset {
		for i := range units {
			units[i].Release()
		}
	}
	w := s.adapter.Weights(load, &s.weights)

	rec := sim.TickRecord{
		Tick:        tick,
		Load:        load,
		Weights:     w,
		Assignments: []sim.Assignment{},
		Starved:     []int{},
	}

	rec.Prefetched = sim.PrefetchBundles(units, s.topo.Bundles)
	rec.PrefetchCost = sim.PrefetchCost(s.topo.Bundles, rec.Prefetched, pc.PrefetchCostMultiplier)

	placed := s.placement.Place(requests, units, w)
	if placed.Assignments != nil {
		rec.Assignments = placed.Assignments
	}
	if placed.Starved != nil {
		rec.Starved = placed.Starved
		logrus.Debugf("tick %d: %d request(s) starved: %v", tick, len(placed.Starved), placed.Starved)
	}
	s.priceAssignments(&rec, requests, units)
	s.tracePlacements(tick, placed)

	rec.Transfers = sim.PlanTransfers(requests, units, pc.TransferPenalty)

	if pc.OnlinePolicy && s.policy != nil {
		s.policy.ApplyOnline(placed.Assignments, pc.LearningRate)
	}

	rec.Retained = sim.DecideRetention(load, units, pc.RetentionThreshold)

	pressures := sim.SnapshotPressures(units, pc.Pressure)
	rec.Scaling = s.autoscaler.Scale(units, pressures)
	rec.NewInstanceUnit = -1
	if len(rec.Scaling) > 0 {
		pressures = sim.SnapshotPressures(units, pc.Pressure)
	}
	if idx := s.autoscaler.FindPlacement(units, pressures); idx >= 0 {
		rec.NewInstanceUnit = units[idx].ID
	}
	rec.Replicas = make([]sim.UnitReplicas, len(units))
	for i := range units {
		rec.Replicas[i] = sim.UnitReplicas{UnitID: units[i].ID, Replicas: units[i].Replicas}
	}
	if s.trace != nil {
		for _, d := range rec.Scaling {
			s.trace.RecordScaling(trace.ScalingRecord{Tick: tick, UnitID: d.UnitID, Pressure: d.Pressure, From: d.From, To: d.To})
		}
	}

	rec.Routing = sim.ComputeRouting(s.topo.Instances, units)
	s.priceInstances(&rec, units)

	if len(s.containers.Functions()) > 0 || len(s.topo.Invocations) > 0 {
		events := s.containers.Tick(tick, s.topo.Invocations)
		rec.ContainerCost = s.containers.Ledger().Cost(tick)
		if s.trace != nil {
			for _, e := range events {
				s.trace.RecordLifecycle(trace.LifecycleRecord{
					Tick: tick, Function: e.Function, Action: string(e.Action),
					Helper: e.Helper, ContainerID: e.ContainerID, Cost: e.Cost,
				})
			}
		}
	}

	rec.TotalCost = rec.AssignmentCost + rec.PrefetchCost + rec.InstanceCost + rec.ContainerCost
	return rec
}

// priceAssignments evaluates every assignment with the cost lens.
// Unreachable assignments are counted and left out of the totals.
func (s *Simulator) priceAssignments(rec *sim.TickRecord, requests []sim.ServiceRequest, units []sim.ResourceUnit) {
	byID := make(map[int]int, len(requests))
	for i := range requests {
		byID[requests[i].ID] = i
	}
	for _, a := range rec.Assignments {
		ui := sim.UnitIndex(units, a.UnitID)
		ri, ok := byID[a.RequestID]
		if ui < 0 || !ok {
			panic(fmt.Sprintf("assignment references unknown request %d or unit %d", a.RequestID, a.UnitID))
		}
		cost, latency, ok := s.lens.Evaluate(&requests[ri], &units[ui])
		if !ok {
			rec.Unreachable++
			logrus.Warnf("tick %d: request %d on unit %d has no finite cost", rec.Tick, a.RequestID, a.UnitID)
			continue
		}
		rec.AssignmentCost += cost
		rec.TotalLatencyUs += latency
	}
}

// priceInstances adds the jittered cost and latency of every routed instance.
func (s *Simulator) priceInstances(rec *sim.TickRecord, units []sim.ResourceUnit) {
	for _, inst := range s.topo.Instances {
		if inst.Unit < 0 || inst.Unit >= len(units) {
			continue
		}
		cost, latencyUs, ok := sim.InstanceCost(&units[inst.Unit], s.instance.Rand)
		if !ok {
			rec.Unreachable++
			logrus.Warnf("tick %d: instance %s on unit %d has no finite cost", rec.Tick, inst.ID, units[inst.Unit].ID)
			continue
		}
		rec.InstanceCost += cost
		rec.TotalLatencyUs += latencyUs
	}
}

func (s *Simulator) tracePlacements(tick int, placed sim.PlacementResult) {
	if s.trace == nil {
		return
	}
	higher := s.placement.Higher()
	k := s.trace.Config.CounterfactualK
	for _, a := range placed.Assignments {
		candidates, regret := computeCounterfactual(a.UnitID, placed.Scores[a.RequestID], higher, k)
		s.trace.RecordPlacement(trace.PlacementRecord{
			Tick: tick, RequestID: a.RequestID, ChosenUnit: a.UnitID,
			Score: a.Cost, Candidates: candidates, Regret: regret,
		})
	}
	for _, id := range placed.Starved {
		s.trace.RecordPlacement(trace.PlacementRecord{Tick: tick, RequestID: id, ChosenUnit: -1, Starved: true})
	}
}
