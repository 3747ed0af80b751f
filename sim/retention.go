package sim

// RetentionLoadCeiling is the cluster load above which nothing is retained.
const RetentionLoadCeiling = 0.7

// Retention thresholds for the two deployment profiles.
const (
	DefaultRetentionThreshold = 0.5
	StrictRetentionThreshold  = 0.3
)

// RetentionDecision is the keep/evict outcome for one unit's cached state.
type RetentionDecision struct {
	UnitID int  `json:"unit_id"`
	Retain bool `json:"retain"`
}

// Retain keeps a unit's state warm iff load <= RetentionLoadCeiling and the
// unit's retention cost is within threshold. Pure: no memory of prior ticks.
func Retain(load float64, unit *ResourceUnit, threshold float64) bool {
	return load <= RetentionLoadCeiling && unit.RetentionCost <= threshold
}

// DecideRetention applies Retain to every unit, in unit order.
func DecideRetention(load float64, units []ResourceUnit, threshold float64) []RetentionDecision {
	out := make([]RetentionDecision, len(units))
	for i := range units {
		out[i] = RetentionDecision{UnitID: units[i].ID, Retain: Retain(load, &units[i], threshold)}
	}
	return out
}
