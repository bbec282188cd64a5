// internal/models/risk.go

package models

import (
	"math"
	"time"
)

// Severity constants, ordered CRITICAL > HIGH > MEDIUM > LOW.
const (
	SeverityLow      = "LOW"
	SeverityMedium   = "MEDIUM"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

// SeverityRank maps a severity to its ordinal rank for sorting and fusion.
// Unknown severities rank below LOW.
func SeverityRank(severity string) int {
	switch severity {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// SeverityScore maps a severity onto the 0-100 risk scale.
func SeverityScore(severity string) float64 {
	switch severity {
	case SeverityCritical:
		return 100
	case SeverityHigh:
		return 75
	case SeverityMedium:
		return 50
	case SeverityLow:
		return 25
	default:
		return 0
	}
}

// Rule violation types emitted by the safety rules.
const (
	ViolationSignalConflict = "SIGNAL_CONFLICT"
	ViolationSpeedLimit     = "SPEED_LIMIT"
	ViolationTrackCapacity  = "TRACK_CAPACITY"
	ViolationMinSeparation  = "MIN_SEPARATION"
	ViolationSignalOverrun  = "SIGNAL_OVERRUN"
)

// RuleViolation is one finding produced by exactly one safety rule.
// DetectedAt carries the snapshot timestamp, not wall-clock time, so two
// evaluations of the same snapshot produce identical violations.
type RuleViolation struct {
	RuleID            string    `json:"rule_id"`
	ViolationType     string    `json:"violation_type"`
	AffectedEntityIDs []string  `json:"affected_entity_ids"`
	SegmentID         string    `json:"segment_id,omitempty"`
	SignalIDs         []string  `json:"signal_ids,omitempty"`
	Severity          string    `json:"severity"`
	Message           string    `json:"message"`
	DetectedAt        time.Time `json:"detected_at"`
}

// PairFeatures is the explicit feature vector handed to (and echoed back
// by) the predictive risk port for one entity pair.
type PairFeatures struct {
	DistanceM           float64 `json:"distance_m"`
	RelativeSpeedKmh    float64 `json:"relative_speed_kmh"`
	ConvergenceAngleDeg float64 `json:"convergence_angle_deg"`
	SharedSegment       bool    `json:"shared_segment"`
	AdjacentSegment     bool    `json:"adjacent_segment"`
}

// CollisionPrediction is one scored entity pair from the predictive port.
type CollisionPrediction struct {
	EntityPairID           string       `json:"entity_pair_id"`
	EntityIDs              []string     `json:"entity_ids"`
	Probability            float64      `json:"probability"`
	Confidence             float64      `json:"confidence"`
	TimeHorizonSeconds     float64      `json:"time_horizon_seconds"`
	TimeToCollisionSeconds float64      `json:"time_to_collision_seconds"`
	Features               PairFeatures `json:"features"`
}

// AnomalyScore grades how far one entity deviates from expected behaviour.
type AnomalyScore struct {
	EntityID   string  `json:"entity_id"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// SignalConflict is the fused form of a signal-conflict rule violation.
type SignalConflict struct {
	SegmentID string   `json:"segment_id"`
	SignalIDs []string `json:"signal_ids"`
	EntityIDs []string `json:"entity_ids"`
	Severity  string   `json:"severity"`
	Message   string   `json:"message"`
}

// CollisionScenario is a collision prediction with its mapped severity.
type CollisionScenario struct {
	CollisionPrediction
	Severity string `json:"severity"`
}

// RoutingRisk scores one active route against all other active routes.
// Score and all sub-scores lie in [0,100].
type RoutingRisk struct {
	RouteID             string   `json:"route_id"`
	Score               float64  `json:"score"`
	Severity            string   `json:"severity"`
	SharedSegmentScore  float64  `json:"shared_segment_score"`
	JunctionScore       float64  `json:"junction_score"`
	DwellOverlapScore   float64  `json:"dwell_overlap_score"`
	ConflictingRouteIDs []string `json:"conflicting_route_ids"`
}

// CongestionMetrics is the per-segment occupancy picture.
type CongestionMetrics struct {
	SegmentID  string  `json:"segment_id"`
	Occupancy  int     `json:"occupancy"`
	Capacity   int     `json:"capacity"`
	Level      float64 `json:"level"`
	Overloaded bool    `json:"overloaded"`
}

// CongestionTrend is the deterministic short-horizon occupancy projection
// for one segment.
type CongestionTrend struct {
	SegmentID      string  `json:"segment_id"`
	HorizonMinutes int     `json:"horizon_minutes"`
	NetFlow        int     `json:"net_flow"`
	ProjectedLevel float64 `json:"projected_level"`
}

// RiskAssessment is the product of one evaluation cycle. GeneratedAt and
// ProcessingTime are wall-clock metadata and excluded from idempotence
// comparisons; everything else is a pure function of the snapshot.
type RiskAssessment struct {
	SnapshotID         uint64              `json:"snapshot_id"`
	SnapshotTimestamp  time.Time           `json:"snapshot_timestamp"`
	OverallRiskScore   float64             `json:"overall_risk_score"`
	Violations         []RuleViolation     `json:"violations"`
	SignalConflicts    []SignalConflict    `json:"signal_conflicts"`
	CollisionScenarios []CollisionScenario `json:"collision_scenarios"`
	RoutingRisks       []RoutingRisk       `json:"routing_risks"`
	Congestion         []CongestionMetrics `json:"congestion"`
	CongestionTrends   []CongestionTrend   `json:"congestion_trends"`
	Degraded           bool                `json:"degraded"`
	DegradedReasons    []string            `json:"degraded_reasons"`

	GeneratedAt    time.Time     `json:"generated_at"`
	ProcessingTime time.Duration `json:"processing_time"`
}

// ClampScore forces a score into [0,100]. Any non-finite value collapses
// to 100, the conservative ceiling: a broken calculation must read as
// maximum risk, never as no risk.
func ClampScore(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 100
	}
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ClampUnit forces a value into [0,1] with the same conservative NaN/Inf
// handling as ClampScore.
func ClampUnit(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 1
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
