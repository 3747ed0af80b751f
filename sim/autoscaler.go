package sim

import "fmt"

// Default hysteresis bounds.
const (
	DefaultPressureHigh = 0.5
	DefaultPressureLow  = 0.1
)

// ScalingDecision records one replica change.
type ScalingDecision struct {
	UnitID   int     `json:"unit_id"`
	Pressure float64 `json:"pressure"`
	From     int     `json:"from"`
	To       int     `json:"to"`
}

// Autoscaler adjusts unit replica counts from pressure with hysteresis:
// scale up above High, scale down below Low, hold in between.
type Autoscaler struct {
	High float64
	Low  float64
}

// NewAutoscaler creates an Autoscaler. Panics unless 0 <= low < high <= 1.
func NewAutoscaler(high, low float64) *Autoscaler {
	if !(low >= 0 && low < high && high <= 1) {
		panic(fmt.Sprintf("NewAutoscaler: need 0 <= low < high <= 1, got low=%v high=%v", low, high))
	}
	return &Autoscaler{High: high, Low: low}
}

// Scale applies one scaling step to every unit, given pressures aligned with
// units, and returns the changes made. At most one replica is added or
// removed per unit per call.
func (a *Autoscaler) Scale(units []ResourceUnit, pressures []Pressure) []ScalingDecision {
	if len(pressures) != len(units) {
		panic(fmt.Sprintf("Autoscaler.Scale: %d pressures for %d units", len(pressures), len(units)))
	}
	var decisions []ScalingDecision
	for i := range units {
		u := &units[i]
		p := pressures[i].Value
		from := u.Replicas
		switch {
		case p > a.High && u.Replicas < u.MaxReplicas:
			u.Replicas++
		case p < a.Low && u.Replicas > u.ScaleFloor():
			u.Replicas--
		default:
			continue
		}
		decisions = append(decisions, ScalingDecision{UnitID: u.ID, Pressure: p, From: from, To: u.Replicas})
	}
	return decisions
}

// FindPlacement returns the index of the unit that should host a new
// instance: the lowest pressure strictly below High among units with spare
// replicas. Ties keep the earliest unit. Returns -1 when no unit qualifies.
func (a *Autoscaler) FindPlacement(units []ResourceUnit, pressures []Pressure) int {
	best := -1
	lowest := a.High
	for i := range units {
		if units[i].Replicas >= units[i].MaxReplicas {
			continue
		}
		if pressures[i].Value < lowest {
			lowest = pressures[i].Value
			best = i
		}
	}
	return best
}
