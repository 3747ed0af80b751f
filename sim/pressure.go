package sim

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// PressureParams tunes the pressure calculator.
type PressureParams struct {
	TargetLatency float64 // RTT at which pRTT = 0.5
	MaxCPU        float64 // CPU usage that saturates pRES
	RTTSlope      float64 // steepness of the RTT sigmoid
}

// DefaultPressureParams returns TargetLatency 70, MaxCPU 100, RTTSlope 0.2.
func DefaultPressureParams() PressureParams {
	return PressureParams{TargetLatency: 70, MaxCPU: 100, RTTSlope: 0.2}
}

// Pressure is the composite scaling signal for one unit. All factors are in [0,1].
type Pressure struct {
	Request     float64 `json:"p_req"`
	Performance float64 `json:"p_rtt"`
	Resource    float64 `json:"p_res"`
	Value       float64 `json:"pressure"`
}

// RequestPressure returns replicas/maxReplicas clamped to [0,1].
// A unit with no replica headroom (maxReplicas <= 0) is saturated.
func RequestPressure(replicas, maxReplicas int) float64 {
	if maxReplicas <= 0 {
		return 1
	}
	return clamp01(float64(replicas) / float64(maxReplicas))
}

// PerformancePressure returns sigmoid(slope·(rtt − target)).
func PerformancePressure(rtt, target, slope float64) float64 {
	return Sigmoid(slope * (rtt - target))
}

// ResourcePressure returns cpuUsage/maxCPU clamped to [0,1].
func ResourcePressure(cpuUsage, maxCPU float64) float64 {
	if maxCPU <= 0 {
		return 1
	}
	return clamp01(cpuUsage / maxCPU)
}

// ComputePressure evaluates pREQ·pRTT·pRES for unit.
func ComputePressure(unit *ResourceUnit, p PressureParams) Pressure {
	pr := Pressure{
		Request:     RequestPressure(unit.Replicas, unit.MaxReplicas),
		Performance: PerformancePressure(unit.NetworkLatency, p.TargetLatency, p.RTTSlope),
		Resource:    ResourcePressure(unit.CPUUsage, p.MaxCPU),
	}
	pr.Value = pr.Request * pr.Performance * pr.Resource
	return pr
}

// SnapshotPressures computes the pressure of every unit concurrently.
// Workers read the units and each writes only its own result slot, so the
// output order matches units and is independent of scheduling.
func SnapshotPressures(units []ResourceUnit, p PressureParams) []Pressure {
	out := make([]Pressure, len(units))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range units {
		g.Go(func() error {
			out[i] = ComputePressure(&units[i], p)
			return nil
		})
	}
	_ = g.Wait() // workers never fail
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
