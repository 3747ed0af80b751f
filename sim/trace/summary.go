package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalPlacements  int
	StarvedCount     int
	MeanRegret       float64
	MaxRegret        float64
	UniqueUnits      int
	UnitDistribution map[int]int // unit ID → count of requests placed
	ScaleUps         int
	ScaleDowns       int
	ActionCounts     map[string]int // lifecycle action → count
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		UnitDistribution: make(map[int]int),
		ActionCounts:     make(map[string]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalPlacements = len(st.Placements)
	placed := 0
	totalRegret := 0.0
	for _, p := range st.Placements {
		if p.Starved {
			summary.StarvedCount++
			continue
		}
		placed++
		summary.UnitDistribution[p.ChosenUnit]++
		totalRegret += p.Regret
		if p.Regret > summary.MaxRegret {
			summary.MaxRegret = p.Regret
		}
	}
	if placed > 0 {
		summary.MeanRegret = totalRegret / float64(placed)
	}
	summary.UniqueUnits = len(summary.UnitDistribution)

	for _, s := range st.Scalings {
		switch {
		case s.To > s.From:
			summary.ScaleUps++
		case s.To < s.From:
			summary.ScaleDowns++
		}
	}
	for _, l := range st.Lifecycle {
		summary.ActionCounts[l.Action]++
	}

	return summary
}
