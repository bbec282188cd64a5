package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"RailSentinelAPI/internal/engine/congestion"
	"RailSentinelAPI/internal/engine/predictor"
	"RailSentinelAPI/internal/engine/routing"
	"RailSentinelAPI/internal/engine/rules"
	"RailSentinelAPI/internal/models"
)

var cycleTime = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// stubPort returns canned predictions, optionally failing or stalling.
type stubPort struct {
	predictions []models.CollisionPrediction
	err         error
	delay       time.Duration
}

func (s *stubPort) Version() string { return "stub/v1" }

func (s *stubPort) PredictCollisions(ctx context.Context, _ *models.NetworkSnapshot, _ float64) ([]models.CollisionPrediction, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.predictions, s.err
}

func (s *stubPort) DetectAnomalies(_ context.Context, e models.EntityState) (models.AnomalyScore, error) {
	return models.AnomalyScore{EntityID: e.EntityID}, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.CycleBudget = 2 * time.Second
	cfg.RuleDeadline = 500 * time.Millisecond
	cfg.PredictorDeadline = 500 * time.Millisecond
	return cfg
}

func emptySnapshot() *models.NetworkSnapshot {
	return &models.NetworkSnapshot{
		SnapshotID: 11,
		Timestamp:  cycleTime,
		Topology: models.RouteTopology{
			Segments:  map[string]models.Segment{},
			Junctions: map[string]models.Junction{},
			Stations:  map[string]models.Station{},
			Routes:    map[string]models.Route{},
		},
	}
}

func overloadedSnapshot() *models.NetworkSnapshot {
	snap := emptySnapshot()
	snap.Topology.Segments["S1"] = models.Segment{SegmentID: "S1", LengthM: 5000, MaxSpeedKmh: 100, Capacity: 3}
	for _, id := range []string{"T1", "T2", "T3", "T4"} {
		snap.Entities = append(snap.Entities, models.EntityState{
			EntityID: id, SegmentID: "S1", SpeedKmh: 40, Status: models.EntityRunning,
		})
	}
	return snap
}

func newOrchestrator(port predictor.Port) *Orchestrator {
	return New(
		rules.DefaultEngine(rules.DefaultConfig(), nil),
		port,
		congestion.NewMonitor(congestion.DefaultOverloadLevel),
		routing.NewAnalyzer(),
		testConfig(),
		nil,
	)
}

func TestRunCycleCleanSnapshot(t *testing.T) {
	o := newOrchestrator(&stubPort{})
	a := o.RunCycle(context.Background(), emptySnapshot())

	if a.Degraded {
		t.Errorf("clean cycle marked degraded: %v", a.DegradedReasons)
	}
	if a.OverallRiskScore != 0 {
		t.Errorf("overall score = %v, want 0", a.OverallRiskScore)
	}
	if a.SnapshotID != 11 {
		t.Errorf("snapshot id = %d, want 11", a.SnapshotID)
	}
}

func TestRunCycleSeverityTable(t *testing.T) {
	port := &stubPort{predictions: []models.CollisionPrediction{
		{EntityPairID: "T1:T2", EntityIDs: []string{"T1", "T2"}, Probability: 0.85, Confidence: 0.9},
		{EntityPairID: "T3:T4", EntityIDs: []string{"T3", "T4"}, Probability: 0.60, Confidence: 0.9},
		{EntityPairID: "T5:T6", EntityIDs: []string{"T5", "T6"}, Probability: 0.30, Confidence: 0.9},
	}}
	o := newOrchestrator(port)
	a := o.RunCycle(context.Background(), overloadedSnapshot())

	severities := map[string]string{}
	for _, s := range a.CollisionScenarios {
		severities[s.EntityPairID] = s.Severity
	}
	if severities["T1:T2"] != models.SeverityCritical {
		t.Errorf("probability 0.85 mapped to %s, want CRITICAL", severities["T1:T2"])
	}
	if severities["T3:T4"] != models.SeverityHigh {
		t.Errorf("probability 0.60 mapped to %s, want HIGH", severities["T3:T4"])
	}
	if severities["T5:T6"] != models.SeverityMedium {
		t.Errorf("probability 0.30 mapped to %s, want MEDIUM", severities["T5:T6"])
	}

	// The capacity-3 segment with 4 occupants is both a HIGH capacity
	// violation and an overloaded congestion metric.
	foundCapacity := false
	for _, v := range a.Violations {
		if v.ViolationType == models.ViolationTrackCapacity && v.Severity == models.SeverityHigh {
			foundCapacity = true
		}
	}
	if !foundCapacity {
		t.Errorf("expected HIGH track capacity violation, got %+v", a.Violations)
	}
	overloaded := false
	for _, c := range a.Congestion {
		if c.SegmentID == "S1" && c.Overloaded {
			overloaded = true
		}
	}
	if !overloaded {
		t.Errorf("expected S1 overloaded, got %+v", a.Congestion)
	}
}

func TestRunCycleFusionTakesMaximum(t *testing.T) {
	port := &stubPort{predictions: []models.CollisionPrediction{
		{EntityPairID: "T1:T2", EntityIDs: []string{"T1", "T2"}, Probability: 0.85, Confidence: 0.9},
	}}
	o := newOrchestrator(port)
	a := o.RunCycle(context.Background(), emptySnapshot())

	// One finding at probability 0.85 must dominate, not be averaged away.
	if a.OverallRiskScore != 85 {
		t.Errorf("overall score = %v, want 85", a.OverallRiskScore)
	}
}

func TestRunCycleDiscardsContractViolations(t *testing.T) {
	port := &stubPort{predictions: []models.CollisionPrediction{
		{EntityPairID: "ok", EntityIDs: []string{"T1", "T2"}, Probability: 0.4, Confidence: 0.8},
		{EntityPairID: "nan", EntityIDs: []string{"T3", "T4"}, Probability: math.NaN(), Confidence: 0.8},
		{EntityPairID: "range", EntityIDs: []string{"T5", "T6"}, Probability: 1.7, Confidence: 0.8},
		{EntityPairID: "conf", EntityIDs: []string{"T7", "T8"}, Probability: 0.2, Confidence: math.Inf(1)},
	}}
	o := newOrchestrator(port)
	a := o.RunCycle(context.Background(), emptySnapshot())

	if len(a.CollisionScenarios) != 1 || a.CollisionScenarios[0].EntityPairID != "ok" {
		t.Fatalf("expected only the valid prediction to survive, got %+v", a.CollisionScenarios)
	}
	if a.Degraded {
		t.Errorf("discarding single predictions must not degrade the cycle")
	}
}

func TestRunCycleDegradedOnPredictorFailure(t *testing.T) {
	o := newOrchestrator(&stubPort{err: errors.New("model offline")})
	a := o.RunCycle(context.Background(), overloadedSnapshot())

	if !a.Degraded {
		t.Fatalf("expected degraded assessment")
	}
	if len(a.DegradedReasons) == 0 {
		t.Fatalf("expected degraded reasons")
	}
	// Rules still contribute: conservative fallback omits predictions,
	// it never blanks the whole assessment.
	if len(a.Violations) == 0 {
		t.Errorf("rule findings should survive predictor failure")
	}
	if len(a.CollisionScenarios) != 0 {
		t.Errorf("failed predictor must contribute no scenarios, got %+v", a.CollisionScenarios)
	}
}

func TestRunCycleDegradedOnPredictorTimeout(t *testing.T) {
	o := newOrchestrator(&stubPort{delay: 5 * time.Second})
	a := o.RunCycle(context.Background(), emptySnapshot())

	if !a.Degraded {
		t.Fatalf("expected degraded assessment on predictor timeout")
	}
	if len(a.CollisionScenarios) != 0 {
		t.Errorf("timed-out predictor must contribute nothing")
	}
}

// brokenCongestion either crashes or stalls, for failure-isolation tests.
type brokenCongestion struct {
	panics bool
	delay  time.Duration
}

func (b *brokenCongestion) ComputeCongestion(_ *models.NetworkSnapshot) []models.CongestionMetrics {
	if b.panics {
		panic("segment capacity division")
	}
	time.Sleep(b.delay)
	return nil
}

func (b *brokenCongestion) Forecast(_ *models.NetworkSnapshot, _ []models.ScheduledMovement, _ time.Duration) []models.CongestionTrend {
	return nil
}

type brokenScorer struct{}

func (brokenScorer) ScoreAll(_ *models.NetworkSnapshot) []models.RoutingRisk {
	panic("nil route lookup")
}

func TestRunCycleDegradedOnCongestionPanic(t *testing.T) {
	o := New(
		rules.DefaultEngine(rules.DefaultConfig(), nil),
		&stubPort{},
		&brokenCongestion{panics: true},
		routing.NewAnalyzer(),
		testConfig(),
		nil,
	)
	a := o.RunCycle(context.Background(), overloadedSnapshot())

	if !a.Degraded {
		t.Fatalf("expected degraded assessment on congestion panic")
	}
	if !degradedReasonContains(a, "congestion monitor") {
		t.Errorf("degraded reasons = %v, want a congestion monitor entry", a.DegradedReasons)
	}
	if len(a.Congestion) != 0 {
		t.Errorf("crashed monitor must contribute no metrics, got %+v", a.Congestion)
	}
	// Other components still contribute.
	if len(a.Violations) == 0 {
		t.Errorf("rule findings should survive a congestion crash")
	}
}

func TestRunCycleDegradedOnCongestionTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.CongestionDeadline = 50 * time.Millisecond

	o := New(
		rules.DefaultEngine(rules.DefaultConfig(), nil),
		&stubPort{},
		&brokenCongestion{delay: time.Second},
		routing.NewAnalyzer(),
		cfg,
		nil,
	)
	a := o.RunCycle(context.Background(), emptySnapshot())

	if !a.Degraded {
		t.Fatalf("expected degraded assessment on congestion timeout")
	}
	if !degradedReasonContains(a, "congestion monitor deadline") {
		t.Errorf("degraded reasons = %v, want congestion deadline entry", a.DegradedReasons)
	}
}

func TestRunCycleDegradedOnRoutingPanic(t *testing.T) {
	o := New(
		rules.DefaultEngine(rules.DefaultConfig(), nil),
		&stubPort{},
		congestion.NewMonitor(congestion.DefaultOverloadLevel),
		brokenScorer{},
		testConfig(),
		nil,
	)
	a := o.RunCycle(context.Background(), overloadedSnapshot())

	if !a.Degraded {
		t.Fatalf("expected degraded assessment on routing panic")
	}
	if !degradedReasonContains(a, "routing analyzer") {
		t.Errorf("degraded reasons = %v, want a routing analyzer entry", a.DegradedReasons)
	}
	if len(a.RoutingRisks) != 0 {
		t.Errorf("crashed scorer must contribute no routing risks, got %+v", a.RoutingRisks)
	}
}

func degradedReasonContains(a *models.RiskAssessment, fragment string) bool {
	for _, r := range a.DegradedReasons {
		if strings.Contains(r, fragment) {
			return true
		}
	}
	return false
}

func TestRunCycleScoresAlwaysInRange(t *testing.T) {
	port := &stubPort{predictions: []models.CollisionPrediction{
		{EntityPairID: "T1:T2", EntityIDs: []string{"T1", "T2"}, Probability: 1.0, Confidence: 1.0},
	}}
	o := newOrchestrator(port)
	a := o.RunCycle(context.Background(), overloadedSnapshot())

	if a.OverallRiskScore < 0 || a.OverallRiskScore > 100 || math.IsNaN(a.OverallRiskScore) {
		t.Errorf("overall score out of range: %v", a.OverallRiskScore)
	}
	for _, r := range a.RoutingRisks {
		if r.Score < 0 || r.Score > 100 || math.IsNaN(r.Score) {
			t.Errorf("routing score out of range: %v", r.Score)
		}
	}
}

func TestRunCycleIdempotentOnSameSnapshot(t *testing.T) {
	port := &stubPort{predictions: []models.CollisionPrediction{
		{EntityPairID: "T1:T2", EntityIDs: []string{"T1", "T2"}, Probability: 0.75, Confidence: 0.9},
	}}
	o := newOrchestrator(port)
	snap := overloadedSnapshot()

	first := o.RunCycle(context.Background(), snap)
	second := o.RunCycle(context.Background(), snap)

	// Wall-clock metadata is excluded from the comparison.
	first.GeneratedAt, second.GeneratedAt = time.Time{}, time.Time{}
	first.ProcessingTime, second.ProcessingTime = 0, 0

	a, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal first: %v", err)
	}
	b, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("marshal second: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("assessments differ between identical runs:\n%s\n%s", a, b)
	}
}
