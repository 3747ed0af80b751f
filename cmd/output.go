package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/fogsim/fogsim/sim"
	"github.com/fogsim/fogsim/sim/cluster"
	"github.com/fogsim/fogsim/sim/trace"
)

// emitRecords writes the records as JSON Lines to path, or stdout when path
// is empty or "-".
func emitRecords(path string, records []sim.TickRecord) error {
	if path == "" || path == "-" {
		return writeRecords(os.Stdout, records)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := writeRecords(f, records); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing output file: %w", err)
	}
	logrus.Infof("Tick records written to %s", path)
	return nil
}

// writeRecords encodes one TickRecord per line.
func writeRecords(w io.Writer, records []sim.TickRecord) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return fmt.Errorf("encoding tick %d: %w", records[i].Tick, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing tick records: %w", err)
	}
	return nil
}

func logRunMetrics(m *cluster.RunMetrics) {
	logrus.Infof("=== Run Metrics ===")
	for tick, c := range m.CostPerTick {
		logrus.Infof("tick %d cost: %.6f", tick, c)
	}
	logrus.Infof("total cost: %.6f (assignment %.6f, prefetch %.6f, instance %.6f, container %.6f)",
		m.TotalCost, m.AssignmentCost, m.PrefetchCost, m.InstanceCost, m.ContainerCost)
	logrus.Infof("cumulative latency: %.3f us", m.TotalLatencyUs)
	logrus.Infof("assignments: %d, starved: %d, transfers: %d, unreachable: %d",
		m.Assignments, m.Starved, m.Transfers, m.Unreachable)
	logrus.Infof("scale ups: %d, scale downs: %d", m.ScaleUps, m.ScaleDowns)
	logrus.Infof("tick cost: mean=%.6f p50=%.6f p95=%.6f min=%.6f max=%.6f",
		m.Cost.Mean, m.Cost.P50, m.Cost.P95, m.Cost.Min, m.Cost.Max)
}

func logTraceSummary(s *trace.TraceSummary) {
	logrus.Infof("=== Trace Summary ===")
	logrus.Infof("placements: %d (starved %d), unique units: %d, mean regret: %.6f, max regret: %.6f",
		s.TotalPlacements, s.StarvedCount, s.UniqueUnits, s.MeanRegret, s.MaxRegret)
	units := make([]int, 0, len(s.UnitDistribution))
	for id := range s.UnitDistribution {
		units = append(units, id)
	}
	sort.Ints(units)
	for _, id := range units {
		logrus.Infof("  unit %d: %d placement(s)", id, s.UnitDistribution[id])
	}
	actions := make([]string, 0, len(s.ActionCounts))
	for a := range s.ActionCounts {
		actions = append(actions, a)
	}
	sort.Strings(actions)
	for _, a := range actions {
		logrus.Infof("  lifecycle %s: %d", a, s.ActionCounts[a])
	}
	logrus.Infof("scale ups: %d, scale downs: %d", s.ScaleUps, s.ScaleDowns)
}
