package sim

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"
)

// === SimulationKey ===

// SimulationKey uniquely identifies a reproducible simulation run.
// Two simulations with the same SimulationKey and identical topology
// MUST produce bit-for-bit identical tick records.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// === Subsystem Constants ===

const (
	// SubsystemWorkload is the RNG subsystem for workload jitter.
	// Uses master seed directly.
	SubsystemWorkload = "workload"

	// SubsystemPlacement drives exploration noise in layer-scored placement.
	SubsystemPlacement = "placement"

	// SubsystemLifecycle drives container provisioning costs and helper selection.
	SubsystemLifecycle = "lifecycle"

	// SubsystemCost drives fluctuations inside the layer-aware cost lens.
	SubsystemCost = "cost"

	// SubsystemInstance drives per-instance cost jitter for routed functions.
	SubsystemInstance = "instance"
)

// pcgStream is the fixed PCG stream selector; only the seed half varies.
const pcgStream = 0x9e3779b97f4a7c15

// Randomness hands out one randomness source per named subsystem.
// Implementations must return the same source for the same name for the
// lifetime of a run; sources are never reseeded mid-run.
type Randomness interface {
	Source(subsystem string) rand.Source
}

// === PartitionedRNG ===

// PartitionedRNG provides deterministic, isolated RNG instances per subsystem.
//
// Derivation formula:
//   - For SubsystemWorkload: uses masterSeed directly
//   - For all other subsystems: masterSeed XOR fnv1a64(subsystemName)
//
// Thread-safety: NOT thread-safe. Must be called from single goroutine.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named subsystem.
// The same subsystem name always returns the same *rand.Rand instance (cached).
// Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}

	var derivedSeed int64
	if name == SubsystemWorkload {
		derivedSeed = int64(p.key)
	} else {
		derivedSeed = int64(p.key) ^ fnv1a64(name)
	}

	rng := newRandFromSeed(derivedSeed)
	p.subsystems[name] = rng
	return rng
}

// Source implements Randomness.
func (p *PartitionedRNG) Source(subsystem string) rand.Source {
	return p.ForSubsystem(subsystem)
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

func newRandFromSeed(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), pcgStream))
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}

// === FixedRandomness ===

// FixedRandomness is a non-advancing Randomness: every draw from every
// subsystem yields the same value. Two runs over the same topology with the
// same FixedRandomness emit identical records, and jitter collapses to a
// constant factor.
type FixedRandomness struct {
	// Value is the uniform [0,1) sample every draw maps to.
	Value float64
}

// NewFixedRandomness returns a FixedRandomness pinned at value.
// Panics if value is outside [0,1).
func NewFixedRandomness(value float64) FixedRandomness {
	if value < 0 || value >= 1 {
		panic(fmt.Sprintf("NewFixedRandomness: value must be in [0,1), got %v", value))
	}
	return FixedRandomness{Value: value}
}

// Source implements Randomness.
func (f FixedRandomness) Source(_ string) rand.Source {
	return fixedSource(uint64(f.Value * (1 << 53)))
}

// fixedSource yields the same 53-bit mantissa forever. rand.Rand.Float64
// keeps the low 53 bits, so Float64 returns exactly the pinned value.
type fixedSource uint64

func (s fixedSource) Uint64() uint64 { return uint64(s) }

// UniformIndex maps one draw from src onto [0, n). It only uses Float64, so
// it terminates for non-advancing sources where IntN's rejection loop would not.
// Panics if n <= 0.
func UniformIndex(src rand.Source, n int) int {
	if n <= 0 {
		panic(fmt.Sprintf("UniformIndex: n must be positive, got %d", n))
	}
	idx := int(rand.New(src).Float64() * float64(n))
	if idx >= n {
		idx = n - 1
	}
	return idx
}
