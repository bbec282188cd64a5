// internal/engine/routing/analyzer.go

package routing

import (
	"sort"

	"RailSentinelAPI/internal/models"
)

// Factor weights for the composite routing risk score. They sum to 1 so
// each normalized sub-score maps directly onto its share of [0,100].
const (
	sharedSegmentWeight = 0.5
	junctionWeight      = 0.3
	dwellOverlapWeight  = 0.2
)

// Analyzer scores an active route against all other active routes for
// shared-segment conflicts, junction constraint violations, and station
// dwell overlaps.
type Analyzer struct{}

func NewAnalyzer() *Analyzer { return &Analyzer{} }

// ScoreAll evaluates every active route in the snapshot, ordered by
// route id.
func (a *Analyzer) ScoreAll(snap *models.NetworkSnapshot) []models.RoutingRisk {
	routes := snap.ActiveRoutes()
	risks := make([]models.RoutingRisk, 0, len(routes))
	for _, route := range routes {
		risks = append(risks, a.Score(snap, route, routes))
	}
	return risks
}

// Score computes the composite routing risk for one route. All sub-scores
// and the total are clamped to [0,100].
func (a *Analyzer) Score(snap *models.NetworkSnapshot, route models.Route, active []models.Route) models.RoutingRisk {
	others := make([]models.Route, 0, len(active))
	for _, r := range active {
		if r.RouteID != route.RouteID {
			others = append(others, r)
		}
	}

	shared, conflicting := sharedSegmentScore(route, others)
	junction := junctionScore(snap, route)
	dwell, dwellConflicts := dwellOverlapScore(route, others)

	for _, id := range dwellConflicts {
		conflicting = append(conflicting, id)
	}
	conflicting = dedupeSorted(conflicting)

	total := models.ClampScore(sharedSegmentWeight*shared + junctionWeight*junction + dwellOverlapWeight*dwell)

	return models.RoutingRisk{
		RouteID:             route.RouteID,
		Score:               total,
		Severity:            severityFor(total),
		SharedSegmentScore:  models.ClampScore(shared),
		JunctionScore:       models.ClampScore(junction),
		DwellOverlapScore:   models.ClampScore(dwell),
		ConflictingRouteIDs: conflicting,
	}
}

func severityFor(score float64) string {
	switch {
	case score > 60:
		return models.SeverityHigh
	case score > 30:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// sharedSegmentScore is the percentage of this route's segments that also
// appear on another active route.
func sharedSegmentScore(route models.Route, others []models.Route) (float64, []string) {
	if len(route.SegmentIDs) == 0 {
		return 0, nil
	}

	otherSegments := make(map[string][]string)
	for _, r := range others {
		for _, seg := range r.SegmentIDs {
			otherSegments[seg] = append(otherSegments[seg], r.RouteID)
		}
	}

	sharedCount := 0
	var conflicting []string
	for _, seg := range route.SegmentIDs {
		if owners, ok := otherSegments[seg]; ok {
			sharedCount++
			conflicting = append(conflicting, owners...)
		}
	}

	return 100 * float64(sharedCount) / float64(len(route.SegmentIDs)), conflicting
}

// junctionScore is the percentage of segment-to-segment transitions on
// the route whose connecting junction has its points set away from the
// route's next segment.
func junctionScore(snap *models.NetworkSnapshot, route models.Route) float64 {
	if len(route.SegmentIDs) < 2 {
		return 0
	}

	transitions := len(route.SegmentIDs) - 1
	violations := 0
	for i := 0; i < transitions; i++ {
		from, to := route.SegmentIDs[i], route.SegmentIDs[i+1]
		j, ok := connectingJunction(snap, from, to)
		if !ok || j.SwitchTo == "" {
			continue
		}
		if j.SwitchTo != to {
			violations++
		}
	}

	return 100 * float64(violations) / float64(transitions)
}

func connectingJunction(snap *models.NetworkSnapshot, from, to string) (models.Junction, bool) {
	ids := make([]string, 0, len(snap.Topology.Junctions))
	for id := range snap.Topology.Junctions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		j := snap.Topology.Junctions[id]
		hasFrom, hasTo := false, false
		for _, seg := range j.SegmentIDs {
			if seg == from {
				hasFrom = true
			}
			if seg == to {
				hasTo = true
			}
		}
		if hasFrom && hasTo {
			return j, true
		}
	}
	return models.Junction{}, false
}

// dwellOverlapScore is the percentage of this route's station calls whose
// dwell window overlaps another route's call at the same station.
func dwellOverlapScore(route models.Route, others []models.Route) (float64, []string) {
	if len(route.Stops) == 0 {
		return 0, nil
	}

	overlaps := 0
	var conflicting []string
	for _, stop := range route.Stops {
		for _, other := range others {
			for _, otherStop := range other.Stops {
				if otherStop.StationID != stop.StationID {
					continue
				}
				if windowsOverlap(stop, otherStop) {
					overlaps++
					conflicting = append(conflicting, other.RouteID)
				}
			}
		}
	}

	if overlaps > len(route.Stops) {
		overlaps = len(route.Stops)
	}
	return 100 * float64(overlaps) / float64(len(route.Stops)), conflicting
}

func windowsOverlap(a, b models.StationStop) bool {
	aStart, aEnd := a.ArrivalOffset, a.ArrivalOffset+a.DwellTime
	bStart, bEnd := b.ArrivalOffset, b.ArrivalOffset+b.DwellTime
	return aStart < bEnd && bStart < aEnd
}

func dedupeSorted(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	sort.Strings(ids)
	out := ids[:1]
	for _, id := range ids[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	return out
}
