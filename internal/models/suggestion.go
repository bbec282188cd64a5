// internal/models/suggestion.go

package models

// Corrective strategy constants
const (
	StrategySignalAdjustment  = "SIGNAL_ADJUSTMENT"
	StrategySpeedReduction    = "SPEED_REDUCTION"
	StrategyRouteModification = "ROUTE_MODIFICATION"
	StrategyHoldAtStation     = "HOLD_AT_STATION"
	StrategyEmergencyStop     = "EMERGENCY_STOP"
)

// Finding kinds an alert or suggestion can originate from.
const (
	FindingSignalConflict    = "SIGNAL_CONFLICT"
	FindingCollisionScenario = "COLLISION_SCENARIO"
	FindingRoutingRisk       = "ROUTING_RISK"
	FindingNetworkOverload   = "NETWORK_OVERLOAD"
	FindingRuleViolation     = "RULE_VIOLATION"
)

// SuggestedAction is one concrete operator action. The fields populated
// depend on Type; unused fields stay zero rather than living in an
// untyped payload map.
type SuggestedAction struct {
	Type            string  `json:"type"` // one of the strategy constants
	TargetEntityID  string  `json:"target_entity_id,omitempty"`
	TargetSignalID  string  `json:"target_signal_id,omitempty"`
	TargetSegmentID string  `json:"target_segment_id,omitempty"`
	NewAspect       string  `json:"new_aspect,omitempty"`
	TargetSpeedKmh  float64 `json:"target_speed_kmh,omitempty"`
	HoldStationID   string  `json:"hold_station_id,omitempty"`
	NewRouteID      string  `json:"new_route_id,omitempty"`
	Description     string  `json:"description"`
}

// CorrectiveSuggestion is one ranked remediation option for a finding.
// IDs are derived deterministically from the originating finding so that
// ranking the same assessment twice yields identical output.
type CorrectiveSuggestion struct {
	ID                        string            `json:"id"`
	Strategy                  string            `json:"strategy"`
	FindingKind               string            `json:"finding_kind"`
	FindingRef                string            `json:"finding_ref"`
	AffectedEntityIDs         []string          `json:"affected_entity_ids"`
	Actions                   []SuggestedAction `json:"actions"`
	Effectiveness             float64           `json:"effectiveness"`
	ImplementationTimeSeconds float64           `json:"implementation_time_seconds"`
	Priority                  int               `json:"priority"`
}
