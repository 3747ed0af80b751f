package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func layerNodes() []ResourceUnit {
	return []ResourceUnit{
		{ID: 0, MaxCapacity: 10, CPUFrequency: 1.2, Bandwidth: 100, StorageCapacity: 15, MaxContainers: 10, LocalLayers: []int{1, 2}},
		{ID: 1, MaxCapacity: 8, CPUFrequency: 0.9, Bandwidth: 80, StorageCapacity: 10, Distance: 5, MaxContainers: 8, LocalLayers: []int{3, 4}},
	}
}

func layerTasks() []ServiceRequest {
	return []ServiceRequest{
		{ID: 0, Load: 0.8, DataSize: 1000, ComputationRequirement: 50, Layers: []int{1, 2}},
		{ID: 1, Load: 1.0, DataSize: 1500, ComputationRequirement: 100, Layers: []int{3, 4}},
	}
}

var layerSizes = LayerCatalog{1: 2.5, 2: 3.0, 3: 1.5, 4: 4.0}

func TestLayerScored_PrefersNodeCachingTheLayers(t *testing.T) {
	// GIVEN pinned exploration noise (factor 1.0)
	ls := NewLayerScored(NewFixedRandomness(0.5).Source(SubsystemPlacement), layerSizes, nil)
	units := layerNodes()

	// WHEN placing both tasks
	res := ls.Place(layerTasks(), units, WeightVector{})

	// THEN each task lands on the node that caches its image layers
	require.Len(t, res.Assignments, 2)
	assert.Equal(t, 0, res.Assignments[0].UnitID)
	assert.Equal(t, 1, res.Assignments[1].UnitID)
	assert.InDelta(t, 5.5/(1.2*100), res.Assignments[0].Cost, 1e-9)
	assert.InDelta(t, 5.5/(0.9*80), res.Assignments[1].Cost, 1e-9)

	// AND each consumed load and a container slot
	assert.Equal(t, 1, units[0].Containers)
	assert.Equal(t, 1, units[1].Containers)
	assert.InDelta(t, 0.8, units[0].UsedCapacity, 1e-12)
	assert.True(t, ls.Higher())
}

func TestLayerScored_NoSlotStarves(t *testing.T) {
	units := layerNodes()
	units[0].Containers = units[0].MaxContainers
	units[1].StorageCapacity = 0
	ls := NewLayerScored(NewFixedRandomness(0.5).Source(SubsystemPlacement), layerSizes, nil)

	res := ls.Place(layerTasks()[:1], units, WeightVector{})

	assert.Empty(t, res.Assignments)
	assert.Equal(t, []int{0}, res.Starved)
}

func TestLayerScored_PriorBreaksExactTiesOnly(t *testing.T) {
	// GIVEN two identical nodes with no cached layers (both score 0)
	units := []ResourceUnit{
		{ID: 0, MaxCapacity: 10, CPUFrequency: 1, Bandwidth: 10, StorageCapacity: 10, MaxContainers: 4},
		{ID: 1, MaxCapacity: 10, CPUFrequency: 1, Bandwidth: 10, StorageCapacity: 10, MaxContainers: 4},
	}
	req := []ServiceRequest{{ID: 0, Load: 1, Layers: []int{1}}}

	// WHEN unit 1 carries a higher prior
	prior := NewPolicyScore()
	prior.Reward(1, 0.5)
	ls := NewLayerScored(NewFixedRandomness(0.5).Source(SubsystemPlacement), layerSizes, prior)
	res := ls.Place(req, units, WeightVector{})

	// THEN the tie goes to unit 1
	require.Len(t, res.Assignments, 1)
	assert.Equal(t, 1, res.Assignments[0].UnitID)

	// AND without a prior the first unit wins
	units2 := []ResourceUnit{units[0], units[1]}
	units2[0].UsedCapacity, units2[0].Containers = 0, 0
	units2[1].UsedCapacity, units2[1].Containers = 0, 0
	res = NewLayerScored(NewFixedRandomness(0.5).Source(SubsystemPlacement), layerSizes, nil).Place(req, units2, WeightVector{})
	require.Len(t, res.Assignments, 1)
	assert.Equal(t, 0, res.Assignments[0].UnitID)
}

func TestLayerScored_PriorDoesNotOverrideHigherScore(t *testing.T) {
	units := layerNodes()
	prior := NewPolicyScore()
	prior.Reward(1, 100)
	ls := NewLayerScored(NewFixedRandomness(0.5).Source(SubsystemPlacement), layerSizes, prior)

	res := ls.Place(layerTasks()[:1], units, WeightVector{})

	require.Len(t, res.Assignments, 1)
	assert.Equal(t, 0, res.Assignments[0].UnitID)
}

func TestOptimizePolicy_RewardsSelectedUnits(t *testing.T) {
	// GIVEN an empty prior and 300 offline iterations
	prior := NewPolicyScore()
	ls := NewLayerScored(NewFixedRandomness(0.5).Source(SubsystemPlacement), layerSizes, prior)
	units := layerNodes()

	ls.OptimizePolicy(layerTasks(), units, DefaultPolicyIterations, DefaultLearningRate)

	// THEN each node is rewarded by the harmonic series of the learning step
	want := 0.0
	for i := 0; i < DefaultPolicyIterations; i++ {
		want += DefaultLearningRate / float64(i+1)
	}
	assert.InDelta(t, want, prior.Get(0), 1e-12)
	assert.InDelta(t, want, prior.Get(1), 1e-12)
	assert.Equal(t, DefaultPolicyIterations, prior.Step())
	assert.Equal(t, []int{0, 1}, prior.Units())

	// AND the offline pass consumed no capacity
	assert.Equal(t, 0.0, units[0].UsedCapacity)
	assert.Equal(t, 0, units[0].Containers)
}

func TestPolicyScore_NeverDecreases(t *testing.T) {
	p := NewPolicyScore()
	p.Reward(3, 0.1)
	before := p.Get(3)

	p.Reward(3, 0)
	p.Reward(3, -1)
	p.ApplyOnline([]Assignment{{RequestID: 0, UnitID: 3}}, 0.1)

	assert.GreaterOrEqual(t, p.Get(3), before)
	assert.Equal(t, 1, p.Step())

	snap := p.Snapshot()
	snap[3] = -5
	assert.Greater(t, p.Get(3), 0.0, "snapshot must be a copy")
}
