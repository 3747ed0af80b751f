package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecisionCost_SingleUnitLowLoad(t *testing.T) {
	// GIVEN one empty unit and one request at low cluster load
	unit := ResourceUnit{ID: 0, MaxCapacity: 100, ComputationCost: 0.03, RetentionCost: 0.04}
	req := ServiceRequest{ID: 0, Load: 25, TransferCost: 0.025, PreparationCost: 0.02}
	state := NewWeightAdapterState()
	w := SlopeAdapter{}.Weights(ClusterLoad([]ResourceUnit{unit}), &state)
	require.Equal(t, WeightVector{0.5, 0.2, 0.2, 0.1}, w)

	// WHEN computing the decision cost
	got := DecisionCost(&req, &unit, w)

	// THEN it is 0.5·0.03·25 + 0.2·retention + 0.2·0.025 + 0.1·0.02
	want := 0.5*0.03*25 + 0.2*unit.RetentionCost + 0.2*0.025 + 0.1*0.02
	assert.InDelta(t, want, got, 1e-12)
	assert.InDelta(t, 0.382+0.2*unit.RetentionCost, got, 1e-12)
}

func TestReportingCost_UsesFixedWeights(t *testing.T) {
	unit := ResourceUnit{ComputationCost: 0.02, RetentionCost: 0.04}
	req := ServiceRequest{Load: 35, TransferCost: 0.035, PreparationCost: 0.02}

	got := ReportingCost(&req, &unit, FixedReportingWeights)

	assert.InDelta(t, 0.3*(0.02*35+0.04+0.035+0.02), got, 1e-12)
}

func TestStandaloneCostForms_ZeroDenominatorIsUnreachable(t *testing.T) {
	tests := []struct {
		name string
		got  float64
	}{
		{"transfer with bandwidth -1", TransferCost(1, -1)},
		{"latency with zero rate", Latency(1, 0)},
		{"computation with zero power", ComputationCost(50, 0)},
		{"layer transfer with zero bandwidth and distance", LayerTransferCost(1000, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, IsUnreachable(tt.got))
		})
	}
}

func TestStandaloneCostForms_Values(t *testing.T) {
	assert.InDelta(t, 0.02/51, TransferCost(0.02, 50), 1e-15)
	assert.InDelta(t, 0.02/100, Latency(0.02, 100), 1e-15)
	assert.InDelta(t, 1000.0/30, ComputationCost(1000, 30), 1e-12)
	assert.InDelta(t, 1000.0/105, LayerTransferCost(1000, 100, 5), 1e-12)
	assert.Equal(t, 0.1, RetentionCostBySize(0.6))
	assert.Equal(t, 0.05, RetentionCostBySize(0.5))
}

func TestFixedWeightLens_Evaluate(t *testing.T) {
	unit := ResourceUnit{ComputationCost: 0.03, RetentionCost: 0.02}
	req := ServiceRequest{Load: 25, TransferCost: 0.025, PreparationCost: 0.02}
	lens := NewCostLens("", FixedReportingWeights, nil)

	cost, latency, ok := lens.Evaluate(&req, &unit)

	require.True(t, ok)
	assert.InDelta(t, ReportingCost(&req, &unit, FixedReportingWeights), cost, 1e-12)
	assert.InDelta(t, 25*0.03+0.025, latency, 1e-12)
}

func TestLayerAwareLens_FixedRandomness(t *testing.T) {
	// GIVEN a lens whose every draw is pinned at 0.5: cost noise 1.0, bandwidth factor 55
	lens := NewCostLens("layer-aware", FixedReportingWeights, NewFixedRandomness(0.5).Source(SubsystemCost))
	unit := ResourceUnit{CPUFrequency: 1.2, Bandwidth: 100, Distance: 0}
	req := ServiceRequest{DataSize: 1000, ComputationRequirement: 50}

	cost, latency, ok := lens.Evaluate(&req, &unit)

	require.True(t, ok)
	computation := 50 / 1.2
	transfer := 1000 / (100 * 55 * 0.8)
	assert.InDelta(t, LayerLensWeight*(computation+0.03+transfer), cost, 1e-9)
	// seconds are reported in µs
	assert.InDelta(t, 1000.0/100*1e6, latency, 1e-6)
}

func TestLayerAwareLens_ZeroFrequencyUnreachable(t *testing.T) {
	lens := NewLayerAwareLens(NewFixedRandomness(0.5).Source(SubsystemCost))
	unit := ResourceUnit{CPUFrequency: 0, Bandwidth: 100}
	req := ServiceRequest{DataSize: 1000, ComputationRequirement: 50}

	_, _, ok := lens.Evaluate(&req, &unit)

	assert.False(t, ok)
}

func TestInstanceCost_FixedJitter(t *testing.T) {
	// GIVEN an edge unit and a jitter that always returns 0.03
	unit := ResourceUnit{CPUUsage: 30, NetworkLatency: 50}
	jitter := func() float64 { return 0.03 }

	cost, latencyUs, ok := InstanceCost(&unit, jitter)

	require.True(t, ok)
	computation := 1000.0 / 30 * 0.03
	retention := 0.05 * 0.03
	transfer := 0.02 / 51 * 0.03
	latency := 0.02 / 100 * 0.03
	assert.InDelta(t, 0.3*computation+0.1*retention+0.3*transfer+0.4*latency, cost, 1e-12)
	assert.InDelta(t, latency*1e6, latencyUs, 1e-9)
}

func TestInstanceCost_IdleHostUnreachable(t *testing.T) {
	unit := ResourceUnit{CPUUsage: 0, NetworkLatency: 50}
	_, _, ok := InstanceCost(&unit, func() float64 { return 0.03 })
	assert.False(t, ok)
}

func TestNewCostLens_UnknownPanics(t *testing.T) {
	assert.Panics(t, func() { NewCostLens("quadratic", FixedReportingWeights, nil) })
}
