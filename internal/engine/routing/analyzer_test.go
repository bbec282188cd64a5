package routing

import (
	"testing"
	"time"

	"RailSentinelAPI/internal/models"
)

func routingSnapshot(routes map[string]models.Route, junctions map[string]models.Junction) *models.NetworkSnapshot {
	entities := make([]models.EntityState, 0, len(routes))
	for id := range routes {
		entities = append(entities, models.EntityState{EntityID: "E-" + id, RouteID: id, SegmentID: routes[id].SegmentIDs[0]})
	}
	if junctions == nil {
		junctions = map[string]models.Junction{}
	}
	segs := map[string]models.Segment{}
	for _, r := range routes {
		for _, s := range r.SegmentIDs {
			segs[s] = models.Segment{SegmentID: s, LengthM: 1000, Capacity: 2}
		}
	}
	return &models.NetworkSnapshot{
		SnapshotID: 5,
		Timestamp:  time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Entities:   entities,
		Topology: models.RouteTopology{
			Segments:  segs,
			Junctions: junctions,
			Stations:  map[string]models.Station{},
			Routes:    routes,
		},
	}
}

func TestSharedSegmentsMoveScore(t *testing.T) {
	isolated := routingSnapshot(map[string]models.Route{
		"R1": {RouteID: "R1", SegmentIDs: []string{"A", "B"}},
		"R2": {RouteID: "R2", SegmentIDs: []string{"C", "D"}},
	}, nil)
	overlapping := routingSnapshot(map[string]models.Route{
		"R1": {RouteID: "R1", SegmentIDs: []string{"A", "B"}},
		"R2": {RouteID: "R2", SegmentIDs: []string{"B", "C"}},
	}, nil)

	a := NewAnalyzer()
	base := a.ScoreAll(isolated)[0]
	shared := a.ScoreAll(overlapping)[0]

	if base.Score != 0 {
		t.Errorf("disjoint routes should score 0, got %v", base.Score)
	}
	if shared.Score <= base.Score {
		t.Errorf("shared segment did not move the score: %v <= %v", shared.Score, base.Score)
	}
	if len(shared.ConflictingRouteIDs) != 1 || shared.ConflictingRouteIDs[0] != "R2" {
		t.Errorf("conflicting routes = %v, want [R2]", shared.ConflictingRouteIDs)
	}
}

func TestJunctionConstraintMovesScore(t *testing.T) {
	aligned := routingSnapshot(
		map[string]models.Route{"R1": {RouteID: "R1", SegmentIDs: []string{"A", "B"}}},
		map[string]models.Junction{"J1": {JunctionID: "J1", SegmentIDs: []string{"A", "B", "C"}, SwitchTo: "B"}},
	)
	misaligned := routingSnapshot(
		map[string]models.Route{"R1": {RouteID: "R1", SegmentIDs: []string{"A", "B"}}},
		map[string]models.Junction{"J1": {JunctionID: "J1", SegmentIDs: []string{"A", "B", "C"}, SwitchTo: "C"}},
	)

	a := NewAnalyzer()
	baseScore := a.ScoreAll(aligned)[0]
	violating := a.ScoreAll(misaligned)[0]

	if violating.JunctionScore <= baseScore.JunctionScore {
		t.Errorf("junction violation did not move the sub-score: %v <= %v",
			violating.JunctionScore, baseScore.JunctionScore)
	}
	if violating.Score <= baseScore.Score {
		t.Errorf("junction violation did not move the total: %v <= %v", violating.Score, baseScore.Score)
	}
}

func TestDwellOverlapMovesScore(t *testing.T) {
	separated := routingSnapshot(map[string]models.Route{
		"R1": {RouteID: "R1", SegmentIDs: []string{"A"}, Stops: []models.StationStop{
			{StationID: "ST1", ArrivalOffset: 0, DwellTime: 2 * time.Minute},
		}},
		"R2": {RouteID: "R2", SegmentIDs: []string{"C"}, Stops: []models.StationStop{
			{StationID: "ST1", ArrivalOffset: 10 * time.Minute, DwellTime: 2 * time.Minute},
		}},
	}, nil)
	overlapping := routingSnapshot(map[string]models.Route{
		"R1": {RouteID: "R1", SegmentIDs: []string{"A"}, Stops: []models.StationStop{
			{StationID: "ST1", ArrivalOffset: 0, DwellTime: 2 * time.Minute},
		}},
		"R2": {RouteID: "R2", SegmentIDs: []string{"C"}, Stops: []models.StationStop{
			{StationID: "ST1", ArrivalOffset: time.Minute, DwellTime: 2 * time.Minute},
		}},
	}, nil)

	a := NewAnalyzer()
	base := a.ScoreAll(separated)[0]
	overlapped := a.ScoreAll(overlapping)[0]

	if overlapped.DwellOverlapScore <= base.DwellOverlapScore {
		t.Errorf("dwell overlap did not move the sub-score: %v <= %v",
			overlapped.DwellOverlapScore, base.DwellOverlapScore)
	}
	if overlapped.Score <= base.Score {
		t.Errorf("dwell overlap did not move the total: %v <= %v", overlapped.Score, base.Score)
	}
}

func TestScoresStayInRange(t *testing.T) {
	snap := routingSnapshot(map[string]models.Route{
		"R1": {RouteID: "R1", SegmentIDs: []string{"A", "B"}, Stops: []models.StationStop{
			{StationID: "ST1", ArrivalOffset: 0, DwellTime: 5 * time.Minute},
		}},
		"R2": {RouteID: "R2", SegmentIDs: []string{"A", "B"}, Stops: []models.StationStop{
			{StationID: "ST1", ArrivalOffset: 0, DwellTime: 5 * time.Minute},
		}},
	}, map[string]models.Junction{
		"J1": {JunctionID: "J1", SegmentIDs: []string{"A", "B"}, SwitchTo: "A"},
	})

	for _, risk := range NewAnalyzer().ScoreAll(snap) {
		for name, v := range map[string]float64{
			"score":    risk.Score,
			"shared":   risk.SharedSegmentScore,
			"junction": risk.JunctionScore,
			"dwell":    risk.DwellOverlapScore,
		} {
			if v < 0 || v > 100 {
				t.Errorf("route %s %s score out of range: %v", risk.RouteID, name, v)
			}
		}
	}
}
