package sim

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// WeightVector weights the four cost components, in order:
// computation, retention, transfer, preparation. Adapters return vectors
// with non-negative components summing to 1.
type WeightVector [4]float64

// Component indexes into a WeightVector.
const (
	WeightComputation = iota
	WeightRetention
	WeightTransfer
	WeightPreparation
)

// Load buckets for the slope adapter.
const (
	LowLoadCeiling    = 0.4
	MediumLoadCeiling = 0.7
)

// LowLoadWeights is returned by the slope adapter at or below LowLoadCeiling,
// and is the fallback when clamping zeroes every component.
var LowLoadWeights = WeightVector{0.5, 0.2, 0.2, 0.1}

// Sum returns the sum of all components.
func (w WeightVector) Sum() float64 {
	return floats.Sum(w[:])
}

// normalized clamps negative components to zero and scales the rest to sum
// to 1. A vector that clamps to all zeros falls back to LowLoadWeights.
func (w WeightVector) normalized() WeightVector {
	for i := range w {
		if w[i] < 0 || math.IsNaN(w[i]) {
			w[i] = 0
		}
	}
	sum := w.Sum()
	if sum <= 0 || math.IsInf(sum, 0) {
		return LowLoadWeights
	}
	floats.Scale(1/sum, w[:])
	return w
}

// WeightAdapterState carries what the adapters remember between ticks.
// The caller owns it and threads it through every Weights call.
type WeightAdapterState struct {
	PrevLoad    float64
	PrevWeights WeightVector
	Initialized bool
}

// NewWeightAdapterState returns the state for a run's first tick:
// previous load 0 (zero slope) and the low-load weights.
func NewWeightAdapterState() WeightAdapterState {
	return WeightAdapterState{PrevWeights: LowLoadWeights}
}

func (s *WeightAdapterState) record(load float64, w WeightVector) {
	s.PrevLoad = load
	s.PrevWeights = w
	s.Initialized = true
}

// WeightAdapter derives decision weights from current cluster load.
type WeightAdapter interface {
	Weights(load float64, state *WeightAdapterState) WeightVector
}

// SlopeAdapter buckets load into low/medium/high and, above low load,
// perturbs a base vector by the relative load change since the previous tick.
type SlopeAdapter struct{}

// Weights implements WeightAdapter for SlopeAdapter.
func (SlopeAdapter) Weights(load float64, state *WeightAdapterState) WeightVector {
	slope := LoadSlope(load, state.PrevLoad)

	var w WeightVector
	switch {
	case load <= LowLoadCeiling:
		w = LowLoadWeights
	case load <= MediumLoadCeiling:
		w = WeightVector{0.4 + slope*0.1, 0.3 + slope*0.05, 0.2 - slope*0.05, 0.1 - slope*0.05}
	default:
		w = WeightVector{0.3 + slope*0.1, 0.4 + slope*0.1, 0.2 - slope*0.05, 0.1 - slope*0.05}
	}
	w = w.normalized()
	state.record(load, w)
	return w
}

// LoadSlope returns (load - prev) / prev, or 0 when prev is 0.
func LoadSlope(load, prev float64) float64 {
	if prev == 0 {
		return 0
	}
	return (load - prev) / prev
}

// Logistic adapter parameters.
const (
	LogisticGamma = 1.0
	LogisticDelta = 0.3
)

// logisticOffsets shifts each component's sigmoid midpoint so emphasis moves
// from computation towards preparation as load rises.
var logisticOffsets = WeightVector{0, 0.1, 0.2, 0.3}

// LogisticAdapter weights component i by sigmoid(γ·(load − δ − offset_i)).
type LogisticAdapter struct {
	Gamma float64
	Delta float64
}

// Weights implements WeightAdapter for LogisticAdapter.
func (a LogisticAdapter) Weights(load float64, state *WeightAdapterState) WeightVector {
	var w WeightVector
	for i := range w {
		w[i] = Sigmoid(a.Gamma * (load - a.Delta - logisticOffsets[i]))
	}
	w = w.normalized()
	state.record(load, w)
	return w
}

// Sigmoid is the logistic function 1/(1+e^-x).
func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// validWeightAdapters maps adapter names to validity. Unexported to prevent mutation.
var validWeightAdapters = map[string]bool{"": true, "slope": true, "logistic": true}

// IsValidWeightAdapter returns true if name is a recognized weight adapter.
func IsValidWeightAdapter(name string) bool { return validWeightAdapters[name] }

// ValidWeightAdapterNames returns sorted valid adapter names, excluding the empty default.
func ValidWeightAdapterNames() []string { return validNamesList(validWeightAdapters) }

// NewWeightAdapter creates a weight adapter by name.
// Empty string defaults to slope. Panics on unrecognized names.
func NewWeightAdapter(name string) WeightAdapter {
	if !IsValidWeightAdapter(name) {
		panic(fmt.Sprintf("unknown weight adapter %q", name))
	}
	switch name {
	case "", "slope":
		return SlopeAdapter{}
	case "logistic":
		return LogisticAdapter{Gamma: LogisticGamma, Delta: LogisticDelta}
	default:
		panic(fmt.Sprintf("unhandled weight adapter %q", name))
	}
}
