package cluster

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "fogsim"

// Exporter holds run metrics as Prometheus gauges on a private registry.
type Exporter struct {
	registry *prometheus.Registry

	ticks       prometheus.Gauge
	cost        *prometheus.GaugeVec // by component
	tickCost    *prometheus.GaugeVec // by tick
	costSummary *prometheus.GaugeVec // by statistic
	latency     prometheus.Gauge
	counts      *prometheus.GaugeVec // by outcome
}

// NewExporter creates an Exporter with every gauge registered.
func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "ticks",
			Help: "Number of simulated ticks",
		}),
		cost: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "cost_total",
			Help: "Cost accumulated over the run, by component",
		}, []string{"component"}),
		tickCost: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "tick_cost",
			Help: "Total cost charged to each tick",
		}, []string{"tick"}),
		costSummary: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "tick_cost_summary",
			Help: "Distribution of per-tick total cost",
		}, []string{"statistic"}),
		latency: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "latency_microseconds_total",
			Help: "Cumulative modelled latency in microseconds",
		}),
		counts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "decisions_total",
			Help: "Placement, transfer and scaling outcomes over the run",
		}, []string{"outcome"}),
	}
	e.registry.MustRegister(e.ticks, e.cost, e.tickCost, e.costSummary, e.latency, e.counts)
	return e
}

// Registry returns the exporter's registry.
func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

// Observe sets every gauge from m. Calling it again overwrites the values.
func (e *Exporter) Observe(m *RunMetrics) {
	e.ticks.Set(float64(m.Ticks))

	e.cost.WithLabelValues("total").Set(m.TotalCost)
	e.cost.WithLabelValues("assignment").Set(m.AssignmentCost)
	e.cost.WithLabelValues("prefetch").Set(m.PrefetchCost)
	e.cost.WithLabelValues("instance").Set(m.InstanceCost)
	e.cost.WithLabelValues("container").Set(m.ContainerCost)

	e.tickCost.Reset()
	for tick, c := range m.CostPerTick {
		e.tickCost.WithLabelValues(strconv.Itoa(tick)).Set(c)
	}

	e.costSummary.WithLabelValues("mean").Set(m.Cost.Mean)
	e.costSummary.WithLabelValues("p50").Set(m.Cost.P50)
	e.costSummary.WithLabelValues("p95").Set(m.Cost.P95)
	e.costSummary.WithLabelValues("min").Set(m.Cost.Min)
	e.costSummary.WithLabelValues("max").Set(m.Cost.Max)

	e.latency.Set(m.TotalLatencyUs)

	e.counts.WithLabelValues("assigned").Set(float64(m.Assignments))
	e.counts.WithLabelValues("starved").Set(float64(m.Starved))
	e.counts.WithLabelValues("transferred").Set(float64(m.Transfers))
	e.counts.WithLabelValues("unreachable").Set(float64(m.Unreachable))
	e.counts.WithLabelValues("scale_up").Set(float64(m.ScaleUps))
	e.counts.WithLabelValues("scale_down").Set(float64(m.ScaleDowns))
}

// WriteTextfile writes the registry in the Prometheus text format to path,
// for pickup by a node exporter textfile collector.
func (e *Exporter) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, e.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
