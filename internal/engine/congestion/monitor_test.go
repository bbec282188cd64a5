package congestion

import (
	"testing"
	"time"

	"RailSentinelAPI/internal/models"
)

var baseTime = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func congestionSnapshot(occupants int, capacity int) *models.NetworkSnapshot {
	snap := &models.NetworkSnapshot{
		SnapshotID: 3,
		Timestamp:  baseTime,
		Topology: models.RouteTopology{
			Segments: map[string]models.Segment{
				"S1": {SegmentID: "S1", LengthM: 5000, Capacity: capacity},
			},
		},
	}
	for i := 0; i < occupants; i++ {
		snap.Entities = append(snap.Entities, models.EntityState{
			EntityID:  string(rune('A' + i)),
			SegmentID: "S1",
		})
	}
	return snap
}

func TestComputeCongestionLevels(t *testing.T) {
	tests := []struct {
		name           string
		occupants      int
		capacity       int
		wantLevel      float64
		wantOverloaded bool
	}{
		{"empty segment", 0, 4, 0, false},
		{"half full", 2, 4, 0.5, false},
		{"at overload threshold", 4, 5, 0.8, true},
		{"over capacity", 4, 3, 4.0 / 3.0, true},
		{"no declared capacity", 2, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor(DefaultOverloadLevel)
			metrics := m.ComputeCongestion(congestionSnapshot(tt.occupants, tt.capacity))
			if len(metrics) != 1 {
				t.Fatalf("metrics = %d, want 1", len(metrics))
			}
			got := metrics[0]
			if got.Level != tt.wantLevel {
				t.Errorf("level = %v, want %v", got.Level, tt.wantLevel)
			}
			if got.Overloaded != tt.wantOverloaded {
				t.Errorf("overloaded = %v, want %v", got.Overloaded, tt.wantOverloaded)
			}
		})
	}
}

func TestForecastLinearNetFlow(t *testing.T) {
	snap := congestionSnapshot(2, 4)
	movements := []models.ScheduledMovement{
		{EntityID: "X1", SegmentID: "S1", ArrivalAt: baseTime.Add(10 * time.Minute), DepartureAt: baseTime.Add(50 * time.Minute)},
		{EntityID: "X2", SegmentID: "S1", ArrivalAt: baseTime.Add(20 * time.Minute), DepartureAt: baseTime.Add(55 * time.Minute)},
		{EntityID: "A", SegmentID: "S1", ArrivalAt: baseTime.Add(-5 * time.Minute), DepartureAt: baseTime.Add(15 * time.Minute)},
	}

	m := NewMonitor(DefaultOverloadLevel)
	trends := m.Forecast(snap, movements, 30*time.Minute)
	if len(trends) != 1 {
		t.Fatalf("trends = %d, want 1", len(trends))
	}

	got := trends[0]
	// Two arrivals inside the window, one departure: net +1 on top of 2.
	if got.NetFlow != 1 {
		t.Errorf("net flow = %d, want 1", got.NetFlow)
	}
	if got.ProjectedLevel != 0.75 {
		t.Errorf("projected level = %v, want 0.75", got.ProjectedLevel)
	}
	if got.HorizonMinutes != 30 {
		t.Errorf("horizon = %d, want 30", got.HorizonMinutes)
	}
}

func TestForecastOmitsIdleSegments(t *testing.T) {
	snap := congestionSnapshot(0, 4)
	m := NewMonitor(DefaultOverloadLevel)
	if trends := m.Forecast(snap, nil, 30*time.Minute); len(trends) != 0 {
		t.Errorf("idle segment should be omitted, got %+v", trends)
	}
}
