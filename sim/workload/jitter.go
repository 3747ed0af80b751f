package workload

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/fogsim/fogsim/sim"
)

// Jitter perturbs request and unit attributes at the start of each tick.
// Perturbations compound across ticks.
type Jitter interface {
	Apply(requests []sim.ServiceRequest, units []sim.ResourceUnit)
}

// Jitter names accepted by NewJitter.
const (
	JitterNone      = "none"
	JitterDecay     = "decay"
	JitterFluctuate = "fluctuate"
)

var validJitters = map[string]bool{
	"":              true,
	JitterNone:      true,
	JitterDecay:     true,
	JitterFluctuate: true,
}

// IsValidJitter returns true if name is a recognized jitter.
func IsValidJitter(name string) bool { return validJitters[name] }

// ValidJitterNames returns sorted valid jitter names (excluding empty).
func ValidJitterNames() []string {
	names := make([]string, 0, len(validJitters))
	for n := range validJitters {
		if n != "" {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// NewJitter creates a jitter by name. Empty name means none.
// Panics on unknown names.
func NewJitter(name string, src rand.Source) Jitter {
	switch name {
	case "", JitterNone:
		return NoJitter{}
	case JitterDecay:
		return NewDecayJitter(src)
	case JitterFluctuate:
		return NewFluctuateJitter(src)
	default:
		panic(fmt.Sprintf("unknown jitter %q", name))
	}
}

// NoJitter leaves inputs unchanged.
type NoJitter struct{}

// Apply is a no-op.
func (NoJitter) Apply([]sim.ServiceRequest, []sim.ResourceUnit) {}

// DecayJitter draws one factor y ~ U(0.1, 0.3) per request and scales both
// its load and transfer cost by it. Each unit's computation and retention
// costs get independent U(0.1, 0.3) draws.
type DecayJitter struct {
	factor distuv.Uniform
}

// NewDecayJitter returns a DecayJitter drawing from src.
func NewDecayJitter(src rand.Source) *DecayJitter {
	return &DecayJitter{factor: distuv.Uniform{Min: 0.1, Max: 0.3, Src: src}}
}

// Apply scales requests first, then units, each in slice order.
func (j *DecayJitter) Apply(requests []sim.ServiceRequest, units []sim.ResourceUnit) {
	for i := range requests {
		y := j.factor.Rand()
		requests[i].Load *= y
		requests[i].TransferCost *= y
	}
	for i := range units {
		units[i].ComputationCost *= j.factor.Rand()
		units[i].RetentionCost *= j.factor.Rand()
	}
}

// FluctuateJitter scales each request's data size by U(0.95, 1.05).
type FluctuateJitter struct {
	factor distuv.Uniform
}

// NewFluctuateJitter returns a FluctuateJitter drawing from src.
func NewFluctuateJitter(src rand.Source) *FluctuateJitter {
	return &FluctuateJitter{factor: distuv.Uniform{Min: 0.95, Max: 1.05, Src: src}}
}

// Apply scales every request's data size; units are untouched.
func (j *FluctuateJitter) Apply(requests []sim.ServiceRequest, _ []sim.ResourceUnit) {
	for i := range requests {
		requests[i].DataSize *= j.factor.Rand()
	}
}
