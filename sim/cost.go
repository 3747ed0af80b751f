package sim

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

const microsPerSecond = 1e6

// Unreachable is the sentinel returned by the standalone cost and latency
// forms when their denominator is not positive.
var Unreachable = math.Inf(1)

// IsUnreachable reports whether v is the Unreachable sentinel.
func IsUnreachable(v float64) bool { return math.IsInf(v, 1) }

// FixedReportingWeights is the default reporting lens: every component at 0.3.
var FixedReportingWeights = WeightVector{0.3, 0.3, 0.3, 0.3}

// DecisionCost is the adaptive cost the placement engine minimises:
// w0·computationCost·load + w1·retentionCost + w2·transferCost + w3·preparationCost.
func DecisionCost(req *ServiceRequest, unit *ResourceUnit, w WeightVector) float64 {
	return w[WeightComputation]*unit.ComputationCost*req.Load +
		w[WeightRetention]*unit.RetentionCost +
		w[WeightTransfer]*req.TransferCost +
		w[WeightPreparation]*req.PreparationCost
}

// ReportingCost is DecisionCost under a fixed weight vector. It is used for
// post-hoc totals and may diverge from the cost that drove the decision.
func ReportingCost(req *ServiceRequest, unit *ResourceUnit, fixed WeightVector) float64 {
	return DecisionCost(req, unit, fixed)
}

// TransferCost returns dataSize/(bandwidth+1).
func TransferCost(dataSize, bandwidth float64) float64 {
	if bandwidth+1 <= 0 {
		return Unreachable
	}
	return dataSize / (bandwidth + 1)
}

// Latency returns dataSize/transferRate.
func Latency(dataSize, transferRate float64) float64 {
	if transferRate <= 0 {
		return Unreachable
	}
	return dataSize / transferRate
}

// ComputationCost returns requirement/power.
func ComputationCost(requirement, power float64) float64 {
	if power <= 0 {
		return Unreachable
	}
	return requirement / power
}

// Size-based retention cost tiers.
const (
	RetentionSizeThreshold = 0.5
	retentionCostLarge     = 0.1
	retentionCostSmall     = 0.05
)

// RetentionCostBySize returns the retention tier for a cached object of dataSize.
func RetentionCostBySize(dataSize float64) float64 {
	if dataSize > RetentionSizeThreshold {
		return retentionCostLarge
	}
	return retentionCostSmall
}

// LayerTransferCost returns dataSize/(bandwidth+distance).
func LayerTransferCost(dataSize, bandwidth, distance float64) float64 {
	if bandwidth+distance <= 0 {
		return Unreachable
	}
	return dataSize / (bandwidth + distance)
}

// === Cost lenses ===

// CostLens prices a completed assignment for reporting. Latency is in µs so
// that it sums with InstanceCost latency. ok is false when the assignment has
// no finite cost (a zero-denominator guard fired); such assignments are
// counted but excluded from totals.
type CostLens interface {
	Evaluate(req *ServiceRequest, unit *ResourceUnit) (cost, latency float64, ok bool)
}

// FixedWeightLens prices assignments with ReportingCost. Latency is the
// modelled service time load·computationCost + transferCost, whose unit
// costs are per-µs figures.
type FixedWeightLens struct {
	Weights WeightVector
}

// Evaluate implements CostLens for FixedWeightLens.
func (l FixedWeightLens) Evaluate(req *ServiceRequest, unit *ResourceUnit) (float64, float64, bool) {
	cost := ReportingCost(req, unit, l.Weights)
	latency := req.Load*unit.ComputationCost + req.TransferCost
	return cost, latency, true
}

// Layer-aware lens parameters.
const (
	LayerLensWeight             = 0.05
	LayerRetentionThreshold     = 0.3
	layerRetentionLarge         = 0.03
	layerRetentionSmall         = 0.02
	layerBandwidthDerating      = 0.8
	layerBandwidthFluctuationLo = 10.0
	layerBandwidthFluctuationHi = 100.0
)

// LayerAwareLens prices assignments for image-layer workloads. Every term is
// perturbed by draws from the injected source, so two evaluations of the
// same pair differ unless the source is fixed.
type LayerAwareLens struct {
	Weight    float64
	costNoise distuv.Uniform // ±10% cost weight fluctuation
	bandwidth distuv.Uniform // bandwidth fluctuation factor
}

// NewLayerAwareLens creates a LayerAwareLens drawing from src.
func NewLayerAwareLens(src rand.Source) *LayerAwareLens {
	return &LayerAwareLens{
		Weight:    LayerLensWeight,
		costNoise: distuv.Uniform{Min: 0.9, Max: 1.1, Src: src},
		bandwidth: distuv.Uniform{Min: layerBandwidthFluctuationLo, Max: layerBandwidthFluctuationHi, Src: src},
	}
}

// Evaluate implements CostLens for LayerAwareLens.
func (l *LayerAwareLens) Evaluate(req *ServiceRequest, unit *ResourceUnit) (float64, float64, bool) {
	computation := ComputationCost(req.ComputationRequirement, unit.CPUFrequency)
	transfer := LayerTransferCost(req.DataSize, unit.Bandwidth*l.bandwidth.Rand()*layerBandwidthDerating, unit.Distance)
	latency := LayerTransferCost(req.DataSize, unit.Bandwidth, unit.Distance)
	if IsUnreachable(computation) || IsUnreachable(transfer) || IsUnreachable(latency) {
		return 0, 0, false
	}
	computation *= l.costNoise.Rand() * l.costNoise.Rand()
	transfer *= l.costNoise.Rand() * l.costNoise.Rand()

	retention := layerRetentionSmall
	if req.DataSize > LayerRetentionThreshold {
		retention = layerRetentionLarge
	}
	retention *= l.costNoise.Rand() * l.costNoise.Rand()

	return l.Weight * (computation + retention + transfer), latency * microsPerSecond, true
}

// validCostLenses maps lens names to validity.
var validCostLenses = map[string]bool{"": true, "fixed-weight": true, "layer-aware": true}

// IsValidCostLens returns true if name is a recognized cost lens.
func IsValidCostLens(name string) bool { return validCostLenses[name] }

// ValidCostLensNames returns sorted valid lens names.
func ValidCostLensNames() []string { return validNamesList(validCostLenses) }

// NewCostLens creates a cost lens by name. Empty string defaults to fixed-weight.
// fixed is used by fixed-weight; src by layer-aware. Panics on unrecognized names.
func NewCostLens(name string, fixed WeightVector, src rand.Source) CostLens {
	if !IsValidCostLens(name) {
		panic(fmt.Sprintf("unknown cost lens %q", name))
	}
	switch name {
	case "", "fixed-weight":
		return FixedWeightLens{Weights: fixed}
	case "layer-aware":
		return NewLayerAwareLens(src)
	default:
		panic(fmt.Sprintf("unhandled cost lens %q", name))
	}
}

// === Routed instance cost ===

// Routed instance cost weights and fixed workload parameters.
const (
	instanceComputeWeight   = 0.3
	instanceRetentionWeight = 0.1
	instanceTransferWeight  = 0.3
	instanceLatencyWeight   = 0.4

	instanceComputeRequirement = 1000.0
	instanceDataSize           = 0.02
	instanceLatencyBase        = 50.0

	// InstanceJitterMin and InstanceJitterMax bound the per-term jitter factor.
	InstanceJitterMin = 0.01
	InstanceJitterMax = 0.05
)

// InstanceCost prices one function instance hosted on unit for a tick.
// jitter draws one scaling factor per cost term. Latency is returned in µs.
// ok is false when the host's CPU usage is zero.
func InstanceCost(unit *ResourceUnit, jitter func() float64) (cost, latencyUs float64, ok bool) {
	computation := ComputationCost(instanceComputeRequirement, unit.CPUUsage)
	transfer := TransferCost(instanceDataSize, unit.NetworkLatency)
	latency := Latency(instanceDataSize, unit.NetworkLatency+instanceLatencyBase)
	if IsUnreachable(computation) || IsUnreachable(transfer) || IsUnreachable(latency) {
		return 0, 0, false
	}
	computation *= jitter()
	retention := RetentionCostBySize(instanceDataSize) * jitter()
	transfer *= jitter()
	latency *= jitter()

	cost = instanceComputeWeight*computation +
		instanceRetentionWeight*retention +
		instanceTransferWeight*transfer +
		instanceLatencyWeight*latency
	return cost, latency * microsPerSecond, true
}
