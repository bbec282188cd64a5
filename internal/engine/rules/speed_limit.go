// internal/engine/rules/speed_limit.go

package rules

import (
	"fmt"
	"sort"

	"RailSentinelAPI/internal/models"
)

// SpeedLimitRule compares each entity's speed against its segment limit.
// Severity scales with the overage: MEDIUM up to limit*OverageFactor,
// HIGH above.
type SpeedLimitRule struct {
	OverageFactor float64
}

func (r *SpeedLimitRule) ID() string { return "speed_limit" }

func (r *SpeedLimitRule) Evaluate(snap *models.NetworkSnapshot) []models.RuleViolation {
	factor := r.OverageFactor
	if factor <= 1 {
		factor = 1.2
	}

	entities := make([]models.EntityState, len(snap.Entities))
	copy(entities, snap.Entities)
	sort.Slice(entities, func(i, j int) bool { return entities[i].EntityID < entities[j].EntityID })

	var violations []models.RuleViolation
	for _, e := range entities {
		seg, ok := snap.Segment(e.SegmentID)
		if !ok || seg.MaxSpeedKmh <= 0 {
			continue
		}
		if e.SpeedKmh <= seg.MaxSpeedKmh {
			continue
		}

		severity := models.SeverityMedium
		if e.SpeedKmh > seg.MaxSpeedKmh*factor {
			severity = models.SeverityHigh
		}

		violations = append(violations, models.RuleViolation{
			RuleID:            r.ID(),
			ViolationType:     models.ViolationSpeedLimit,
			AffectedEntityIDs: []string{e.EntityID},
			Severity:          severity,
			Message: fmt.Sprintf("entity %s at %.1f km/h exceeds %.1f km/h limit on segment %s",
				e.EntityID, e.SpeedKmh, seg.MaxSpeedKmh, seg.SegmentID),
			DetectedAt: snap.Timestamp,
		})
	}

	return violations
}
