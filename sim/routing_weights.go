package sim

import "sort"

// Routing weight parameters.
const (
	routingLatencyMidpoint = 35.0
	routingLatencySlope    = 0.2
	routingLatencyFloor    = 0.01
	routingScale           = 100.0
)

// InstanceShare is the advisory traffic split for one function instance.
type InstanceShare struct {
	InstanceID string  `json:"instance_id"`
	UnitID     int     `json:"unit_id"`
	Weight     float64 `json:"weight"`
	Share      float64 `json:"share"`
}

// FunctionRouting holds the traffic split across one function's instances.
type FunctionRouting struct {
	Function  string          `json:"function"`
	Instances []InstanceShare `json:"instances"`
}

// RoutingWeight returns max(0.01, sigmoid(0.2·(latency−35)))·(1 − cpu/100)·100
// for an instance hosted on unit. The CPU factor is clamped to [0,1].
func RoutingWeight(unit *ResourceUnit) float64 {
	latencyFactor := max(routingLatencyFloor, Sigmoid(routingLatencySlope*(unit.NetworkLatency-routingLatencyMidpoint)))
	cpuFactor := clamp01(1 - unit.CPUUsage/100)
	return latencyFactor * cpuFactor * routingScale
}

// ComputeRouting groups instances by function and normalises each function's
// weights into traffic shares. Only functions with at least two live
// instances have a split to report; the rest are omitted. Functions are
// returned sorted by name and instances keep their input order. If every
// weight of a function is zero, traffic is split evenly. Instances with an
// out-of-range unit index are not live.
// Advisory only: no unit state is touched.
func ComputeRouting(instances []FunctionInstance, units []ResourceUnit) []FunctionRouting {
	byFunc := make(map[string][]InstanceShare)
	for _, inst := range instances {
		if inst.Unit < 0 || inst.Unit >= len(units) {
			continue
		}
		u := &units[inst.Unit]
		byFunc[inst.Function] = append(byFunc[inst.Function], InstanceShare{
			InstanceID: inst.ID,
			UnitID:     u.ID,
			Weight:     RoutingWeight(u),
		})
	}

	names := make([]string, 0, len(byFunc))
	for name, shares := range byFunc {
		if len(shares) > 1 {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := make([]FunctionRouting, 0, len(names))
	for _, name := range names {
		shares := byFunc[name]
		total := 0.0
		for _, s := range shares {
			total += s.Weight
		}
		for i := range shares {
			if total > 0 {
				shares[i].Share = shares[i].Weight / total
			} else {
				shares[i].Share = 1 / float64(len(shares))
			}
		}
		out = append(out, FunctionRouting{Function: name, Instances: shares})
	}
	return out
}
