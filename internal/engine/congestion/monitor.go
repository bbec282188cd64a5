// internal/engine/congestion/monitor.go

package congestion

import (
	"math"
	"sort"
	"time"

	"RailSentinelAPI/internal/models"
)

// DefaultOverloadLevel is the occupancy ratio at which a segment is
// reported as overloaded.
const DefaultOverloadLevel = 0.8

// DefaultForecastHorizon is the projection window for Forecast.
const DefaultForecastHorizon = 30 * time.Minute

// Monitor computes per-segment occupancy ratios and a deterministic
// short-horizon projection. The forecast is a plain linear net-flow
// extrapolation on purpose: its output feeds overload alerts and has to
// stay explainable to an auditor.
type Monitor struct {
	OverloadLevel float64
}

func NewMonitor(overloadLevel float64) *Monitor {
	if overloadLevel <= 0 {
		overloadLevel = DefaultOverloadLevel
	}
	return &Monitor{OverloadLevel: overloadLevel}
}

// ComputeCongestion returns one metric per topology segment, ordered by
// segment id. Level is occupancy/capacity clamped at zero; a segment with
// no declared capacity reports level 0.
func (m *Monitor) ComputeCongestion(snap *models.NetworkSnapshot) []models.CongestionMetrics {
	segmentIDs := make([]string, 0, len(snap.Topology.Segments))
	for id := range snap.Topology.Segments {
		segmentIDs = append(segmentIDs, id)
	}
	sort.Strings(segmentIDs)

	metrics := make([]models.CongestionMetrics, 0, len(segmentIDs))
	for _, segID := range segmentIDs {
		seg := snap.Topology.Segments[segID]
		occupancy := len(snap.EntitiesOnSegment(segID))

		var level float64
		if seg.Capacity > 0 {
			level = float64(occupancy) / float64(seg.Capacity)
		}
		if level < 0 || math.IsNaN(level) {
			level = 0
		}

		metrics = append(metrics, models.CongestionMetrics{
			SegmentID:  segID,
			Occupancy:  occupancy,
			Capacity:   seg.Capacity,
			Level:      level,
			Overloaded: seg.Capacity > 0 && level >= m.OverloadLevel,
		})
	}

	return metrics
}

// Forecast projects per-segment occupancy over the horizon by summing
// scheduled arrivals minus departures on top of current occupancy.
// Segments with no scheduled movement and no occupants are omitted.
func (m *Monitor) Forecast(snap *models.NetworkSnapshot, movements []models.ScheduledMovement, horizon time.Duration) []models.CongestionTrend {
	if horizon <= 0 {
		horizon = DefaultForecastHorizon
	}
	cutoff := snap.Timestamp.Add(horizon)

	netFlow := make(map[string]int)
	for _, mv := range movements {
		if mv.ArrivalAt.After(snap.Timestamp) && !mv.ArrivalAt.After(cutoff) {
			netFlow[mv.SegmentID]++
		}
		if mv.DepartureAt.After(snap.Timestamp) && !mv.DepartureAt.After(cutoff) {
			netFlow[mv.SegmentID]--
		}
	}

	segmentIDs := make([]string, 0, len(snap.Topology.Segments))
	for id := range snap.Topology.Segments {
		segmentIDs = append(segmentIDs, id)
	}
	sort.Strings(segmentIDs)

	var trends []models.CongestionTrend
	for _, segID := range segmentIDs {
		seg := snap.Topology.Segments[segID]
		occupancy := len(snap.EntitiesOnSegment(segID))
		flow := netFlow[segID]
		if occupancy == 0 && flow == 0 {
			continue
		}

		projected := occupancy + flow
		if projected < 0 {
			projected = 0
		}

		var level float64
		if seg.Capacity > 0 {
			level = float64(projected) / float64(seg.Capacity)
		}

		trends = append(trends, models.CongestionTrend{
			SegmentID:      segID,
			HorizonMinutes: int(horizon / time.Minute),
			NetFlow:        flow,
			ProjectedLevel: level,
		})
	}

	return trends
}
