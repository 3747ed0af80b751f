package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func edgeUnits() []ResourceUnit {
	return []ResourceUnit{
		{ID: 0, Name: "edge_1", CPUUsage: 30, NetworkLatency: 50, Replicas: 3, MaxReplicas: 10},
		{ID: 1, Name: "edge_2", CPUUsage: 40, NetworkLatency: 60, Replicas: 2, MaxReplicas: 10},
		{ID: 2, Name: "cloud", CPUUsage: 70, NetworkLatency: 150, Replicas: 5, MaxReplicas: 20},
	}
}

func TestComputePressure_Factors(t *testing.T) {
	u := ResourceUnit{CPUUsage: 70, NetworkLatency: 150, Replicas: 5, MaxReplicas: 20}
	p := ComputePressure(&u, DefaultPressureParams())

	assert.InDelta(t, 0.25, p.Request, 1e-12)
	assert.InDelta(t, Sigmoid(0.2*80), p.Performance, 1e-12)
	assert.InDelta(t, 0.7, p.Resource, 1e-12)
	assert.InDelta(t, p.Request*p.Performance*p.Resource, p.Value, 1e-12)
}

func TestComputePressure_ClampedToUnitInterval(t *testing.T) {
	tests := []struct {
		name string
		unit ResourceUnit
	}{
		{"replicas above max", ResourceUnit{Replicas: 30, MaxReplicas: 10, CPUUsage: 50, NetworkLatency: 70}},
		{"cpu above max", ResourceUnit{Replicas: 5, MaxReplicas: 10, CPUUsage: 250, NetworkLatency: 1e6}},
		{"negative cpu", ResourceUnit{Replicas: 5, MaxReplicas: 10, CPUUsage: -10, NetworkLatency: -1e6}},
		{"no replica headroom", ResourceUnit{CPUUsage: 50, NetworkLatency: 70}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ComputePressure(&tt.unit, DefaultPressureParams())
			for _, v := range []float64{p.Request, p.Performance, p.Resource, p.Value} {
				assert.GreaterOrEqual(t, v, 0.0)
				assert.LessOrEqual(t, v, 1.0)
			}
		})
	}
}

func TestSnapshotPressures_MatchesSequential(t *testing.T) {
	units := edgeUnits()
	for i := 0; i < 50; i++ {
		units = append(units, ResourceUnit{ID: 100 + i, CPUUsage: float64(i * 2), NetworkLatency: float64(i * 3), Replicas: i % 7, MaxReplicas: 8})
	}
	got := SnapshotPressures(units, DefaultPressureParams())
	require.Len(t, got, len(units))
	for i := range units {
		assert.Equal(t, ComputePressure(&units[i], DefaultPressureParams()), got[i], "unit %d", i)
	}
}

func TestAutoscaler_Hysteresis(t *testing.T) {
	a := NewAutoscaler(DefaultPressureHigh, DefaultPressureLow)
	units := []ResourceUnit{
		{ID: 0, Replicas: 3, MaxReplicas: 10},
		{ID: 1, Replicas: 3, MaxReplicas: 10},
		{ID: 2, Replicas: 3, MaxReplicas: 10},
		{ID: 3, Replicas: 10, MaxReplicas: 10},
		{ID: 4, Replicas: 1, MinReplicas: 0, MaxReplicas: 10},
	}
	pressures := []Pressure{{Value: 0.8}, {Value: 0.05}, {Value: 0.3}, {Value: 0.9}, {Value: 0.01}}

	decisions := a.Scale(units, pressures)

	// THEN high scales up, low scales down, middle holds, and bounds are respected
	assert.Equal(t, []ScalingDecision{
		{UnitID: 0, Pressure: 0.8, From: 3, To: 4},
		{UnitID: 1, Pressure: 0.05, From: 3, To: 2},
	}, decisions)
	assert.Equal(t, 3, units[2].Replicas)
	assert.Equal(t, 10, units[3].Replicas, "max replicas is a ceiling")
	assert.Equal(t, 1, units[4].Replicas, "never below one replica")
}

func TestAutoscaler_EdgeScenarioScalesDown(t *testing.T) {
	// GIVEN the two edges and the cloud at their reference usage
	units := edgeUnits()
	a := NewAutoscaler(DefaultPressureHigh, DefaultPressureLow)

	// WHEN one scaling step runs
	decisions := a.Scale(units, SnapshotPressures(units, DefaultPressureParams()))

	// THEN both edges sit below the low threshold and lose one replica
	require.Len(t, decisions, 2)
	assert.Equal(t, 2, units[0].Replicas)
	assert.Equal(t, 1, units[1].Replicas)

	// AND the cloud (pressure ~0.175) holds inside the band
	assert.Equal(t, 5, units[2].Replicas)
}

func TestAutoscaler_FindPlacement(t *testing.T) {
	a := NewAutoscaler(0.5, 0.1)
	units := []ResourceUnit{
		{ID: 0, Replicas: 1, MaxReplicas: 4},
		{ID: 1, Replicas: 4, MaxReplicas: 4},
		{ID: 2, Replicas: 1, MaxReplicas: 4},
		{ID: 3, Replicas: 1, MaxReplicas: 4},
	}

	// lowest pressure among units with spare replicas; unit 1 is full
	idx := a.FindPlacement(units, []Pressure{{Value: 0.3}, {Value: 0.01}, {Value: 0.2}, {Value: 0.2}})
	assert.Equal(t, 2, idx, "ties keep the earliest unit")

	// nothing below High
	idx = a.FindPlacement(units, []Pressure{{Value: 0.5}, {Value: 0.01}, {Value: 0.7}, {Value: 0.9}})
	assert.Equal(t, -1, idx)
}

func TestNewAutoscaler_InvalidThresholdsPanic(t *testing.T) {
	assert.Panics(t, func() { NewAutoscaler(0.1, 0.5) })
	assert.Panics(t, func() { NewAutoscaler(0.3, 0.3) })
	assert.Panics(t, func() { NewAutoscaler(1.2, 0.1) })
	assert.Panics(t, func() { NewAutoscaler(0.5, -0.1) })
}

func TestRetain_PureFunction(t *testing.T) {
	tests := []struct {
		name      string
		load      float64
		retention float64
		threshold float64
		want      bool
	}{
		{"low load cheap unit", 0.3, 0.02, DefaultRetentionThreshold, true},
		{"at ceiling", RetentionLoadCeiling, 0.02, DefaultRetentionThreshold, true},
		{"above ceiling", 0.71, 0.02, DefaultRetentionThreshold, false},
		{"cost at threshold", 0.3, 0.3, StrictRetentionThreshold, true},
		{"cost above threshold", 0.3, 0.31, StrictRetentionThreshold, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := ResourceUnit{RetentionCost: tt.retention}
			first := Retain(tt.load, &u, tt.threshold)
			second := Retain(tt.load, &u, tt.threshold)
			assert.Equal(t, tt.want, first)
			assert.Equal(t, first, second)
		})
	}
}

func TestDecideRetention_UnitOrder(t *testing.T) {
	units := roadsideUnits()
	units[1].RetentionCost = 0.9
	got := DecideRetention(0.2, units, DefaultRetentionThreshold)
	assert.Equal(t, []RetentionDecision{{UnitID: 0, Retain: true}, {UnitID: 1, Retain: false}, {UnitID: 2, Retain: true}}, got)
}
