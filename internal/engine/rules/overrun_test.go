package rules

import (
	"testing"

	"RailSentinelAPI/internal/models"
)

func TestSignalOverrunPastRed(t *testing.T) {
	snap := testSnapshot(
		[]models.EntityState{
			{EntityID: "T1", SegmentID: "S-BLOCK", PositionM: 40, SpeedKmh: 20},
		},
		[]models.SignalState{
			{SignalID: "SIG-7", SegmentID: "S-BLOCK", Aspect: models.AspectRed, AffectedEntityIDs: []string{"T1"}},
		},
		models.Segment{SegmentID: "S-BLOCK", LengthM: 2000},
	)

	rule := &SignalOverrunRule{}
	got := rule.Evaluate(snap)
	if len(got) != 1 {
		t.Fatalf("violations = %d, want 1", len(got))
	}
	if got[0].Severity != models.SeverityCritical {
		t.Errorf("overrun severity = %s, want CRITICAL", got[0].Severity)
	}
}

func TestSignalOverrunNotTriggered(t *testing.T) {
	tests := []struct {
		name   string
		aspect string
		seg    string
	}{
		{"signal is green", models.AspectGreen, "S-BLOCK"},
		{"entity still before the signal", models.AspectRed, "S-APPROACH"},
	}

	rule := &SignalOverrunRule{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := testSnapshot(
				[]models.EntityState{{EntityID: "T1", SegmentID: tt.seg}},
				[]models.SignalState{
					{SignalID: "SIG-7", SegmentID: "S-BLOCK", Aspect: tt.aspect, AffectedEntityIDs: []string{"T1"}},
				},
				models.Segment{SegmentID: "S-BLOCK", LengthM: 2000},
				models.Segment{SegmentID: "S-APPROACH", LengthM: 2000},
			)
			if got := rule.Evaluate(snap); len(got) != 0 {
				t.Errorf("expected no violation, got %+v", got)
			}
		})
	}
}
