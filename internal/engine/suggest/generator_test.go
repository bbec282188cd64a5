package suggest

import (
	"reflect"
	"testing"

	"RailSentinelAPI/internal/models"
)

func assessmentWithFindings() *models.RiskAssessment {
	return &models.RiskAssessment{
		SnapshotID: 42,
		SignalConflicts: []models.SignalConflict{
			{SegmentID: "S3", SignalIDs: []string{"SIG1", "SIG2"}, EntityIDs: []string{"T1", "T2"}, Severity: models.SeverityCritical},
		},
		Violations: []models.RuleViolation{
			{RuleID: "speed_limit", ViolationType: models.ViolationSpeedLimit, AffectedEntityIDs: []string{"T3"}, SegmentID: "S1", Severity: models.SeverityHigh},
			{RuleID: "track_capacity", ViolationType: models.ViolationTrackCapacity, AffectedEntityIDs: []string{"T1", "T2", "T4", "T5"}, SegmentID: "S2", Severity: models.SeverityHigh},
		},
		CollisionScenarios: []models.CollisionScenario{
			{
				CollisionPrediction: models.CollisionPrediction{EntityPairID: "T1:T2", EntityIDs: []string{"T1", "T2"}, Probability: 0.85},
				Severity:            models.SeverityCritical,
			},
			{
				CollisionPrediction: models.CollisionPrediction{EntityPairID: "T6:T7", EntityIDs: []string{"T6", "T7"}, Probability: 0.55},
				Severity:            models.SeverityHigh,
			},
		},
		RoutingRisks: []models.RoutingRisk{
			{RouteID: "R1", Score: 65, Severity: models.SeverityHigh, ConflictingRouteIDs: []string{"R2"}},
			{RouteID: "R9", Score: 5, Severity: models.SeverityLow},
		},
		Congestion: []models.CongestionMetrics{
			{SegmentID: "S2", Occupancy: 4, Capacity: 3, Level: 4.0 / 3.0, Overloaded: true},
			{SegmentID: "S5", Occupancy: 1, Capacity: 4, Level: 0.25},
		},
	}
}

func TestGenerateCoversEveryFinding(t *testing.T) {
	g := NewGenerator()
	out := g.Generate(assessmentWithFindings())

	covered := map[string]bool{}
	for _, s := range out {
		covered[s.FindingRef] = true
	}

	wantRefs := []string{
		"signal-conflict:S3:SIG1+SIG2",
		"violation:speed_limit:T3",
		"violation:track_capacity:T1+T2+T4+T5",
		"collision:T1:T2",
		"collision:T6:T7",
		"routing:R1",
		"overload:S2",
	}
	for _, ref := range wantRefs {
		if !covered[ref] {
			t.Errorf("no suggestion generated for finding %s", ref)
		}
	}
	if covered["routing:R9"] {
		t.Errorf("low routing score must not produce suggestions")
	}
	if covered["overload:S5"] {
		t.Errorf("non-overloaded segment must not produce suggestions")
	}
}

func TestGenerateCriticalCollisionGetsEmergencyStop(t *testing.T) {
	g := NewGenerator()
	out := g.Generate(assessmentWithFindings())

	byRef := map[string][]string{}
	for _, s := range out {
		byRef[s.FindingRef] = append(byRef[s.FindingRef], s.Strategy)
	}

	hasStop := false
	for _, strat := range byRef["collision:T1:T2"] {
		if strat == models.StrategyEmergencyStop {
			hasStop = true
		}
	}
	if !hasStop {
		t.Errorf("CRITICAL collision scenario missing EMERGENCY_STOP, got %v", byRef["collision:T1:T2"])
	}

	for _, strat := range byRef["collision:T6:T7"] {
		if strat == models.StrategyEmergencyStop {
			t.Errorf("HIGH collision scenario must not escalate to EMERGENCY_STOP")
		}
	}
}

func TestRankPrioritiesStrictlyDistinct(t *testing.T) {
	g := NewGenerator()
	out := g.Generate(assessmentWithFindings())

	if len(out) == 0 {
		t.Fatal("expected suggestions")
	}
	seen := map[int]bool{}
	for i, s := range out {
		if s.Priority != i+1 {
			t.Errorf("suggestion %d has priority %d, want %d", i, s.Priority, i+1)
		}
		if seen[s.Priority] {
			t.Errorf("duplicate priority %d", s.Priority)
		}
		seen[s.Priority] = true
	}
}

func TestRankOrdering(t *testing.T) {
	batch := []models.CorrectiveSuggestion{
		{ID: "c", Effectiveness: 0.5, ImplementationTimeSeconds: 10},
		{ID: "a", Effectiveness: 0.9, ImplementationTimeSeconds: 60},
		{ID: "b", Effectiveness: 0.9, ImplementationTimeSeconds: 5},
		{ID: "d", Effectiveness: 0.5, ImplementationTimeSeconds: 10},
	}

	ranked := Rank(batch)

	wantIDs := []string{"b", "a", "c", "d"}
	for i, want := range wantIDs {
		if ranked[i].ID != want {
			t.Errorf("rank %d = %s, want %s", i+1, ranked[i].ID, want)
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	g := NewGenerator()
	a := assessmentWithFindings()

	first := g.Generate(a)
	second := g.Generate(a)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("suggestion batches differ between identical assessments")
	}
	for _, s := range first {
		if s.ID == "" {
			t.Errorf("suggestion for %s has empty id", s.FindingRef)
		}
	}
}
