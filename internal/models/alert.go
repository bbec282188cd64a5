// internal/models/alert.go

package models

import "time"

// Alert status constants. Transitions only move forward:
// ACTIVE -> ACKNOWLEDGED -> RESOLVED.
const (
	StatusActive       = "ACTIVE"
	StatusAcknowledged = "ACKNOWLEDGED"
	StatusResolved     = "RESOLVED"
)

// Alert kind constants, derived 1:1 from the originating finding kind.
const (
	AlertSignalConflict    = "SIGNAL_CONFLICT"
	AlertCollisionScenario = "COLLISION_SCENARIO"
	AlertRoutingRisk       = "ROUTING_RISK"
	AlertNetworkOverload   = "NETWORK_OVERLOAD"
)

// AlertResolution records how an alert was closed out.
type AlertResolution struct {
	ResolvedBy string            `json:"resolved_by"`
	Note       string            `json:"note"`
	Actions    []SuggestedAction `json:"actions"`
}

// Alert is one lifecycle-managed operator notification created from a
// single risk finding. Alerts are never deleted; resolved alerts remain
// queryable for audit.
type Alert struct {
	ID                string                 `json:"id"`
	Kind              string                 `json:"kind"`
	Severity          string                 `json:"severity"`
	Status            string                 `json:"status"`
	Message           string                 `json:"message"`
	SnapshotID        uint64                 `json:"snapshot_id"`
	AffectedEntityIDs []string               `json:"affected_entity_ids"`
	Suggestions       []CorrectiveSuggestion `json:"suggestions"`
	CreatedAt         time.Time              `json:"created_at"`
	AcknowledgedAt    *time.Time             `json:"acknowledged_at,omitempty"`
	ResolvedAt        *time.Time             `json:"resolved_at,omitempty"`
	OperatorID        string                 `json:"operator_id,omitempty"`
	Resolution        *AlertResolution       `json:"resolution,omitempty"`
}

// AlertFilter narrows active-alert queries. Zero fields match everything.
type AlertFilter struct {
	Kind     string `json:"kind"`
	Severity string `json:"severity"`
	EntityID string `json:"entity_id"`
}

// Matches reports whether an alert passes the filter.
func (f AlertFilter) Matches(a *Alert) bool {
	if f.Kind != "" && a.Kind != f.Kind {
		return false
	}
	if f.Severity != "" && a.Severity != f.Severity {
		return false
	}
	if f.EntityID != "" {
		found := false
		for _, id := range a.AffectedEntityIDs {
			if id == f.EntityID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// HistoryRange bounds alert-history queries. Zero times are open ends.
type HistoryRange struct {
	From  time.Time `json:"from"`
	To    time.Time `json:"to"`
	Limit int       `json:"limit"`
}
