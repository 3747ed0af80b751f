package cluster

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fogsim/fogsim/sim"
	"github.com/fogsim/fogsim/sim/workload"
)

// scenarioConfig builds the topology and run config of a preset the way the
// CLI does when no flags override it.
func scenarioConfig(t *testing.T, name string) (Config, *workload.Topology) {
	t.Helper()
	spec, err := workload.Scenario(name)
	require.NoError(t, err)
	topo, err := spec.Build()
	require.NoError(t, err)

	var bundle sim.PolicyBundle
	bundle.Merge(spec.Policy)
	require.NoError(t, bundle.Validate())
	return Config{Ticks: spec.Ticks, Jitter: spec.Jitter, Policy: bundle.Resolve()}, topo
}

func runScenario(t *testing.T, name string, rnd sim.Randomness) (*Simulator, []sim.TickRecord) {
	t.Helper()
	cfg, topo := scenarioConfig(t, name)
	s := NewSimulator(cfg, topo, rnd)
	return s, s.Run()
}

// specConfig builds a one-off topology with default policies.
func specConfig(t *testing.T, spec *workload.TopologySpec) (Config, *workload.Topology) {
	t.Helper()
	topo, err := spec.Build()
	require.NoError(t, err)
	var bundle sim.PolicyBundle
	require.NoError(t, bundle.Validate())
	return Config{Ticks: spec.Ticks, Policy: bundle.Resolve()}, topo
}
