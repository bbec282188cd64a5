// internal/engine/rules/capacity.go

package rules

import (
	"fmt"
	"sort"

	"RailSentinelAPI/internal/models"
)

// TrackCapacityRule flags segments holding more entities than their
// declared capacity.
type TrackCapacityRule struct{}

func (r *TrackCapacityRule) ID() string { return "track_capacity" }

func (r *TrackCapacityRule) Evaluate(snap *models.NetworkSnapshot) []models.RuleViolation {
	segmentIDs := make([]string, 0, len(snap.Topology.Segments))
	for id := range snap.Topology.Segments {
		segmentIDs = append(segmentIDs, id)
	}
	sort.Strings(segmentIDs)

	var violations []models.RuleViolation
	for _, segID := range segmentIDs {
		seg := snap.Topology.Segments[segID]
		if seg.Capacity <= 0 {
			continue
		}
		occupants := snap.EntitiesOnSegment(segID)
		if len(occupants) <= seg.Capacity {
			continue
		}

		ids := make([]string, 0, len(occupants))
		for _, e := range occupants {
			ids = append(ids, e.EntityID)
		}

		violations = append(violations, models.RuleViolation{
			RuleID:            r.ID(),
			ViolationType:     models.ViolationTrackCapacity,
			AffectedEntityIDs: ids,
			SegmentID:         segID,
			Severity:          models.SeverityHigh,
			Message: fmt.Sprintf("segment %s holds %d entities, capacity %d",
				segID, len(occupants), seg.Capacity),
			DetectedAt: snap.Timestamp,
		})
	}

	return violations
}
