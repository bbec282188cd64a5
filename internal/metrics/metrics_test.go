package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"RailSentinelAPI/internal/models"
)

func TestObserveCycleCountsEveryFindingCategory(t *testing.T) {
	c := NewCollector()

	c.ObserveCycle(&models.RiskAssessment{
		OverallRiskScore: 65,
		Degraded:         true,
		ProcessingTime:   120 * time.Millisecond,
		Violations: []models.RuleViolation{
			{RuleID: "speed_limit"}, {RuleID: "track_capacity"},
		},
		SignalConflicts: []models.SignalConflict{{SegmentID: "S3"}},
		CollisionScenarios: []models.CollisionScenario{
			{CollisionPrediction: models.CollisionPrediction{EntityPairID: "T1:T2"}},
		},
		RoutingRisks: []models.RoutingRisk{
			{RouteID: "R1", Score: 65}, {RouteID: "R2", Score: 40}, {RouteID: "R3", Score: 10},
		},
		Congestion: []models.CongestionMetrics{
			{SegmentID: "S1", Overloaded: true},
			{SegmentID: "S2", Overloaded: false},
		},
	})

	counts := map[string]float64{
		"rule_violation":     2,
		"signal_conflict":    1,
		"collision_scenario": 1,
		"routing_risk":       3,
		"network_overload":   1,
	}
	for category, want := range counts {
		if got := testutil.ToFloat64(c.findingsTotal.WithLabelValues(category)); got != want {
			t.Errorf("findings_total{category=%q} = %v, want %v", category, got, want)
		}
	}

	if got := testutil.ToFloat64(c.cyclesTotal); got != 1 {
		t.Errorf("cycles_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.degradedTotal); got != 1 {
		t.Errorf("cycles_degraded_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.overallRisk); got != 65 {
		t.Errorf("overall_risk_score = %v, want 65", got)
	}
}

func TestFeedCountersAndAlertGauge(t *testing.T) {
	c := NewCollector()

	c.FeedMessageAccepted("position")
	c.FeedMessageAccepted("position")
	c.FeedMessageRejected("position", "stale")
	c.FeedMessageRejected("signal", "validation")
	c.SetActiveAlerts(3)

	if got := testutil.ToFloat64(c.feedAccepted.WithLabelValues("position")); got != 2 {
		t.Errorf("accepted{position} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.feedRejected.WithLabelValues("position", "stale")); got != 1 {
		t.Errorf("rejected{position,stale} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.activeAlerts); got != 3 {
		t.Errorf("active_alerts = %v, want 3", got)
	}
}
