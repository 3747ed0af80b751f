package sim

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
	"k8s.io/utils/ptr"
)

// PolicyBundle holds the run's policy configuration, loadable from YAML.
// Nil pointer fields mean "not set": Resolve substitutes the defaults.
// String fields use empty string for "not set".
type PolicyBundle struct {
	WeightAdapter  string `yaml:"weight_adapter,omitempty"`
	Placement      string `yaml:"placement,omitempty"`
	CostLens       string `yaml:"cost_lens,omitempty"`
	CapacityPolicy string `yaml:"capacity_policy,omitempty"`

	RetentionThreshold *float64 `yaml:"retention_threshold,omitempty"`
	PressureHigh       *float64 `yaml:"pressure_high,omitempty"`
	PressureLow        *float64 `yaml:"pressure_low,omitempty"`
	TargetLatency      *float64 `yaml:"target_latency,omitempty"`
	MaxCPU             *float64 `yaml:"max_cpu,omitempty"`

	ReportingWeights       []float64 `yaml:"reporting_weights,omitempty"`
	PrefetchCostMultiplier *float64  `yaml:"prefetch_cost_multiplier,omitempty"`
	TransferPenalty        *float64  `yaml:"transfer_penalty,omitempty"`

	PolicyIterations *int     `yaml:"policy_iterations,omitempty"`
	LearningRate     *float64 `yaml:"learning_rate,omitempty"`
	OnlinePolicy     bool     `yaml:"online_policy,omitempty"`
}

// Capacity policies decide what happens to consumed capacity between ticks.
const (
	// CapacityPersist keeps consumed capacity across ticks, accumulating
	// until units saturate.
	CapacityPersist = "persist"
	// CapacityReset releases all capacity at the start of every tick.
	CapacityReset = "reset"
)

// PolicyConfig is a PolicyBundle with every default resolved.
type PolicyConfig struct {
	WeightAdapter  string
	Placement      string
	CostLens       string
	CapacityPolicy string

	RetentionThreshold float64
	PressureHigh       float64
	PressureLow        float64
	Pressure           PressureParams

	ReportingWeights       WeightVector
	PrefetchCostMultiplier float64
	TransferPenalty        float64

	PolicyIterations int
	LearningRate     float64
	OnlinePolicy     bool
}

// LoadPolicyBundle reads and parses a YAML policy configuration file.
// Unknown fields are rejected.
func LoadPolicyBundle(path string) (*PolicyBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy config: %w", err)
	}
	var bundle PolicyBundle
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&bundle); err != nil {
		return nil, fmt.Errorf("parsing policy config: %w", err)
	}
	return &bundle, nil
}

// ValidCapacityPolicies is the set of recognized capacity policy names.
var ValidCapacityPolicies = map[string]bool{"": true, CapacityPersist: true, CapacityReset: true}

// Validate checks that all policy names and parameter ranges in the bundle are valid.
func (b *PolicyBundle) Validate() error {
	if !IsValidWeightAdapter(b.WeightAdapter) {
		return fmt.Errorf("unknown weight adapter %q; valid: %v", b.WeightAdapter, ValidWeightAdapterNames())
	}
	if !IsValidPlacementPolicy(b.Placement) {
		return fmt.Errorf("unknown placement policy %q; valid: %v", b.Placement, ValidPlacementPolicyNames())
	}
	if !IsValidCostLens(b.CostLens) {
		return fmt.Errorf("unknown cost lens %q; valid: %v", b.CostLens, ValidCostLensNames())
	}
	if !ValidCapacityPolicies[b.CapacityPolicy] {
		return fmt.Errorf("unknown capacity policy %q", b.CapacityPolicy)
	}
	for name, v := range map[string]*float64{
		"retention_threshold": b.RetentionThreshold,
		"pressure_high":       b.PressureHigh,
		"pressure_low":        b.PressureLow,
	} {
		if v != nil && (*v < 0 || *v > 1 || math.IsNaN(*v)) {
			return fmt.Errorf("%s must be in [0, 1], got %v", name, *v)
		}
	}
	high := ptr.Deref(b.PressureHigh, DefaultPressureHigh)
	low := ptr.Deref(b.PressureLow, DefaultPressureLow)
	if high <= low {
		return fmt.Errorf("pressure_high (%v) must exceed pressure_low (%v)", high, low)
	}
	if b.MaxCPU != nil && *b.MaxCPU <= 0 {
		return fmt.Errorf("max_cpu must be positive, got %v", *b.MaxCPU)
	}
	if b.ReportingWeights != nil {
		if len(b.ReportingWeights) != len(WeightVector{}) {
			return fmt.Errorf("reporting_weights must have %d entries, got %d", len(WeightVector{}), len(b.ReportingWeights))
		}
		for _, w := range b.ReportingWeights {
			if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
				return fmt.Errorf("reporting_weights must be finite and non-negative, got %v", b.ReportingWeights)
			}
		}
	}
	for name, v := range map[string]*float64{
		"prefetch_cost_multiplier": b.PrefetchCostMultiplier,
		"transfer_penalty":         b.TransferPenalty,
		"learning_rate":            b.LearningRate,
	} {
		if v != nil && (*v < 0 || math.IsNaN(*v)) {
			return fmt.Errorf("%s must be non-negative, got %v", name, *v)
		}
	}
	if b.PolicyIterations != nil && *b.PolicyIterations < 0 {
		return fmt.Errorf("policy_iterations must be non-negative, got %d", *b.PolicyIterations)
	}
	return nil
}

// Resolve fills every unset field with its default.
// Callers should Validate first; Resolve does not re-check ranges.
func (b *PolicyBundle) Resolve() PolicyConfig {
	defaults := DefaultPressureParams()
	cfg := PolicyConfig{
		WeightAdapter:      orDefault(b.WeightAdapter, "slope"),
		Placement:          orDefault(b.Placement, "cost-greedy"),
		CostLens:           orDefault(b.CostLens, "fixed-weight"),
		CapacityPolicy:     orDefault(b.CapacityPolicy, CapacityPersist),
		RetentionThreshold: ptr.Deref(b.RetentionThreshold, DefaultRetentionThreshold),
		PressureHigh:       ptr.Deref(b.PressureHigh, DefaultPressureHigh),
		PressureLow:        ptr.Deref(b.PressureLow, DefaultPressureLow),
		Pressure: PressureParams{
			TargetLatency: ptr.Deref(b.TargetLatency, defaults.TargetLatency),
			MaxCPU:        ptr.Deref(b.MaxCPU, defaults.MaxCPU),
			RTTSlope:      defaults.RTTSlope,
		},
		ReportingWeights:       FixedReportingWeights,
		PrefetchCostMultiplier: ptr.Deref(b.PrefetchCostMultiplier, DefaultPrefetchCostMultiplier),
		TransferPenalty:        ptr.Deref(b.TransferPenalty, DefaultTransferPenalty),
		PolicyIterations:       ptr.Deref(b.PolicyIterations, DefaultPolicyIterations),
		LearningRate:           ptr.Deref(b.LearningRate, DefaultLearningRate),
		OnlinePolicy:           b.OnlinePolicy,
	}
	if len(b.ReportingWeights) == len(cfg.ReportingWeights) {
		copy(cfg.ReportingWeights[:], b.ReportingWeights)
	}
	return cfg
}

// Merge overlays every field set in other onto b.
func (b *PolicyBundle) Merge(other *PolicyBundle) {
	if other == nil {
		return
	}
	mergeString(&b.WeightAdapter, other.WeightAdapter)
	mergeString(&b.Placement, other.Placement)
	mergeString(&b.CostLens, other.CostLens)
	mergeString(&b.CapacityPolicy, other.CapacityPolicy)
	mergePtr(&b.RetentionThreshold, other.RetentionThreshold)
	mergePtr(&b.PressureHigh, other.PressureHigh)
	mergePtr(&b.PressureLow, other.PressureLow)
	mergePtr(&b.TargetLatency, other.TargetLatency)
	mergePtr(&b.MaxCPU, other.MaxCPU)
	mergePtr(&b.PrefetchCostMultiplier, other.PrefetchCostMultiplier)
	mergePtr(&b.TransferPenalty, other.TransferPenalty)
	mergePtr(&b.PolicyIterations, other.PolicyIterations)
	mergePtr(&b.LearningRate, other.LearningRate)
	if other.ReportingWeights != nil {
		b.ReportingWeights = append([]float64(nil), other.ReportingWeights...)
	}
	b.OnlinePolicy = b.OnlinePolicy || other.OnlinePolicy
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergePtr[T any](dst **T, v *T) {
	if v != nil {
		*dst = ptr.To(*v)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// validNamesList returns the sorted non-empty keys of a validity map.
func validNamesList(m map[string]bool) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
