package cluster

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/fogsim/fogsim/sim"
)

// Distribution captures statistical summary of a metric.
type Distribution struct {
	Mean  float64
	P50   float64
	P95   float64
	Min   float64
	Max   float64
	Count int
}

// NewDistribution computes a Distribution from raw values.
// Returns zero-value Distribution for empty input.
func NewDistribution(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return Distribution{
		Mean:  stat.Mean(sorted, nil),
		P50:   stat.Quantile(0.50, stat.LinInterp, sorted, nil),
		P95:   stat.Quantile(0.95, stat.LinInterp, sorted, nil),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Count: len(sorted),
	}
}

// RunMetrics aggregates the tick records of one run.
type RunMetrics struct {
	Ticks       int
	CostPerTick []float64 // TotalCost of each tick, in tick order

	TotalCost      float64
	AssignmentCost float64
	PrefetchCost   float64
	InstanceCost   float64
	ContainerCost  float64
	TotalLatencyUs float64

	Assignments int
	Starved     int
	Transfers   int
	Unreachable int
	ScaleUps    int
	ScaleDowns  int

	// Cost is the distribution of per-tick total cost.
	Cost Distribution
}

// CollectRunMetrics builds RunMetrics from tick records.
func CollectRunMetrics(records []sim.TickRecord) *RunMetrics {
	m := &RunMetrics{
		Ticks:       len(records),
		CostPerTick: make([]float64, len(records)),
	}
	for i, r := range records {
		m.CostPerTick[i] = r.TotalCost
		m.AssignmentCost += r.AssignmentCost
		m.PrefetchCost += r.PrefetchCost
		m.InstanceCost += r.InstanceCost
		m.ContainerCost += r.ContainerCost
		m.TotalLatencyUs += r.TotalLatencyUs
		m.Assignments += len(r.Assignments)
		m.Starved += len(r.Starved)
		m.Transfers += len(r.Transfers)
		m.Unreachable += r.Unreachable
		for _, d := range r.Scaling {
			if d.To > d.From {
				m.ScaleUps++
			} else if d.To < d.From {
				m.ScaleDowns++
			}
		}
	}
	m.TotalCost = floats.Sum(m.CostPerTick)
	m.Cost = NewDistribution(m.CostPerTick)
	return m
}
