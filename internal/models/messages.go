// internal/models/messages.go

package models

// FleetPositionMessage is the compact wire form of one vehicle position
// report arriving over MQTT.
type FleetPositionMessage struct {
	EntityID   string  `json:"vid"`
	SegmentID  string  `json:"seg"`
	PositionM  float64 `json:"pos"`
	SpeedKmh   float64 `json:"spd"`
	HeadingDeg float64 `json:"hdg"`
	RouteID    string  `json:"route"`
	Status     string  `json:"st"`
	Epoch      int64   `json:"epoch"`
}

// SignalStateMessage is the compact wire form of one signal state change.
type SignalStateMessage struct {
	SignalID          string   `json:"sid"`
	SegmentID         string   `json:"seg"`
	Aspect            string   `json:"aspect"`
	AffectedEntityIDs []string `json:"affected"`
	Epoch             int64    `json:"epoch"`
}

// AcknowledgeRequest is the operator action applying to an active alert.
type AcknowledgeRequest struct {
	OperatorID string `json:"operator_id"`
}

// ResolveRequest closes out an alert with its resolving actions.
type ResolveRequest struct {
	ResolvedBy string            `json:"resolved_by"`
	Note       string            `json:"note"`
	Actions    []SuggestedAction `json:"actions"`
}
