// internal/engine/rules/separation.go

package rules

import (
	"fmt"
	"math"
	"sort"

	"RailSentinelAPI/internal/models"
)

// MinSeparationRule checks the along-track gap between entities sharing a
// segment. Severity scales inversely with the gap: below HardFloorM the
// severity is CRITICAL, below half the minimum HIGH, otherwise MEDIUM.
type MinSeparationRule struct {
	MinSeparationM float64
	HardFloorM     float64
}

func (r *MinSeparationRule) ID() string { return "min_separation" }

func (r *MinSeparationRule) Evaluate(snap *models.NetworkSnapshot) []models.RuleViolation {
	minSep := r.MinSeparationM
	if minSep <= 0 {
		minSep = DefaultConfig().MinSeparationM
	}
	floor := r.HardFloorM
	if floor <= 0 {
		floor = DefaultConfig().HardFloorM
	}

	segmentIDs := make([]string, 0, len(snap.Topology.Segments))
	for id := range snap.Topology.Segments {
		segmentIDs = append(segmentIDs, id)
	}
	sort.Strings(segmentIDs)

	var violations []models.RuleViolation
	for _, segID := range segmentIDs {
		occupants := snap.EntitiesOnSegment(segID)
		for i := 0; i < len(occupants); i++ {
			for j := i + 1; j < len(occupants); j++ {
				a, b := occupants[i], occupants[j]
				gap := math.Abs(a.PositionM - b.PositionM)
				if gap >= minSep {
					continue
				}

				severity := models.SeverityMedium
				switch {
				case gap < floor:
					severity = models.SeverityCritical
				case gap < minSep/2:
					severity = models.SeverityHigh
				}

				violations = append(violations, models.RuleViolation{
					RuleID:            r.ID(),
					ViolationType:     models.ViolationMinSeparation,
					AffectedEntityIDs: []string{a.EntityID, b.EntityID},
					SegmentID:         segID,
					Severity:          severity,
					Message: fmt.Sprintf("entities %s and %s separated by %.0f m on segment %s (minimum %.0f m)",
						a.EntityID, b.EntityID, gap, segID, minSep),
					DetectedAt: snap.Timestamp,
				})
			}
		}
	}

	return violations
}
