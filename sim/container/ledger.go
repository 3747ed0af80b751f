package container

import "gonum.org/v1/gonum/floats"

// Ledger accumulates provisioning cost per tick.
type Ledger struct {
	costs []float64
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Add charges cost to tick, growing the ledger as needed.
// Panics on negative ticks.
func (l *Ledger) Add(tick int, cost float64) {
	if tick < 0 {
		panic("Ledger.Add: negative tick")
	}
	for len(l.costs) <= tick {
		l.costs = append(l.costs, 0)
	}
	l.costs[tick] += cost
}

// Cost returns the cost charged to tick (0 if none).
func (l *Ledger) Cost(tick int) float64 {
	if tick < 0 || tick >= len(l.costs) {
		return 0
	}
	return l.costs[tick]
}

// PerTick returns a copy of the per-tick costs.
func (l *Ledger) PerTick() []float64 {
	return append([]float64(nil), l.costs...)
}

// Total returns the cost summed over all ticks.
func (l *Ledger) Total() float64 {
	return floats.Sum(l.costs)
}
