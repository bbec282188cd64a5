package predictor

import (
	"context"
	"math"
	"reflect"
	"testing"
	"time"

	"RailSentinelAPI/internal/models"
)

func closingPairSnapshot(gapM float64) *models.NetworkSnapshot {
	return &models.NetworkSnapshot{
		SnapshotID: 7,
		Timestamp:  time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Entities: []models.EntityState{
			{EntityID: "T1", SegmentID: "S1", PositionM: 0, SpeedKmh: 60, HeadingDeg: 90, Status: models.EntityRunning},
			{EntityID: "T2", SegmentID: "S1", PositionM: gapM, SpeedKmh: 60, HeadingDeg: 270, Status: models.EntityRunning},
		},
		Topology: models.RouteTopology{
			Segments: map[string]models.Segment{
				"S1": {SegmentID: "S1", LengthM: 6000, MaxSpeedKmh: 120, Capacity: 2},
			},
		},
	}
}

// Two entities 4,900 m apart closing at a combined 120 km/h: the classic
// head-on scenario. Expect TTC around 147 s and probability above 0.70.
func TestPredictCollisionsHeadOnScenario(t *testing.T) {
	p := NewKinematicPredictor()
	preds, err := p.PredictCollisions(context.Background(), closingPairSnapshot(4900), 300)
	if err != nil {
		t.Fatalf("PredictCollisions: %v", err)
	}
	if len(preds) != 1 {
		t.Fatalf("predictions = %d, want 1", len(preds))
	}

	pred := preds[0]
	if pred.EntityPairID != "T1:T2" {
		t.Errorf("pair id = %s, want T1:T2", pred.EntityPairID)
	}
	if math.Abs(pred.TimeToCollisionSeconds-147) > 1 {
		t.Errorf("TTC = %.1f s, want ~147 s", pred.TimeToCollisionSeconds)
	}
	if pred.Probability <= 0.70 {
		t.Errorf("probability = %.3f, want > 0.70", pred.Probability)
	}
	if pred.Probability > 1 || pred.Confidence > 1 || pred.Confidence < 0 {
		t.Errorf("prediction out of contract bounds: %+v", pred)
	}
	if !pred.Features.SharedSegment {
		t.Errorf("expected shared-segment feature set")
	}
}

func TestPredictCollisionsDivergingPairScoresZero(t *testing.T) {
	snap := closingPairSnapshot(4900)
	// Same heading, same speed: gap never closes.
	snap.Entities[1].HeadingDeg = 90

	p := NewKinematicPredictor()
	preds, err := p.PredictCollisions(context.Background(), snap, 300)
	if err != nil {
		t.Fatalf("PredictCollisions: %v", err)
	}
	if len(preds) != 0 {
		t.Fatalf("diverging pair produced predictions: %+v", preds)
	}
}

func TestPredictCollisionsIgnoresDistantPairs(t *testing.T) {
	snap := closingPairSnapshot(1000)
	snap.Entities[1].SegmentID = "S9"
	snap.Topology.Segments["S9"] = models.Segment{SegmentID: "S9", LengthM: 4000, FromNode: "X", ToNode: "Y"}

	p := NewKinematicPredictor()
	preds, err := p.PredictCollisions(context.Background(), snap, 300)
	if err != nil {
		t.Fatalf("PredictCollisions: %v", err)
	}
	if len(preds) != 0 {
		t.Fatalf("unrelated segments should produce no pair, got %+v", preds)
	}
}

func TestPredictCollisionsDeterministic(t *testing.T) {
	p := NewKinematicPredictor()
	snap := closingPairSnapshot(3000)

	first, _ := p.PredictCollisions(context.Background(), snap, 300)
	second, _ := p.PredictCollisions(context.Background(), snap, 300)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("same snapshot produced different predictions:\n%+v\n%+v", first, second)
	}
}

func TestDetectAnomalies(t *testing.T) {
	p := NewKinematicPredictor()
	tests := []struct {
		name      string
		entity    models.EntityState
		wantAbove float64
	}{
		{"connection lost", models.EntityState{EntityID: "T1", Status: models.EntityConnectionLost, LastUpdateAt: time.Now()}, 0.8},
		{"moving while stopped", models.EntityState{EntityID: "T2", Status: models.EntityStopped, SpeedKmh: 40, LastUpdateAt: time.Now()}, 0.6},
		{"nominal", models.EntityState{EntityID: "T3", Status: models.EntityRunning, SpeedKmh: 80, LastUpdateAt: time.Now()}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, err := p.DetectAnomalies(context.Background(), tt.entity)
			if err != nil {
				t.Fatalf("DetectAnomalies: %v", err)
			}
			if score.Score < tt.wantAbove {
				t.Errorf("score = %.2f, want >= %.2f", score.Score, tt.wantAbove)
			}
			if score.Score < 0 || score.Score > 1 || score.Confidence < 0 || score.Confidence > 1 {
				t.Errorf("score out of bounds: %+v", score)
			}
		})
	}
}
