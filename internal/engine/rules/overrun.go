// internal/engine/rules/overrun.go

package rules

import (
	"fmt"
	"sort"

	"RailSentinelAPI/internal/models"
)

// SignalOverrunRule flags entities that crossed into a block whose entry
// signal shows RED for them. A signal guards entry into its SegmentID, so
// an affected entity already positioned on that segment while the aspect
// is RED has overrun the signal.
type SignalOverrunRule struct{}

func (r *SignalOverrunRule) ID() string { return "signal_overrun" }

func (r *SignalOverrunRule) Evaluate(snap *models.NetworkSnapshot) []models.RuleViolation {
	signals := make([]models.SignalState, len(snap.Signals))
	copy(signals, snap.Signals)
	sort.Slice(signals, func(i, j int) bool { return signals[i].SignalID < signals[j].SignalID })

	var violations []models.RuleViolation
	for _, sig := range signals {
		if sig.Aspect != models.AspectRed {
			continue
		}
		affected := append([]string(nil), sig.AffectedEntityIDs...)
		sort.Strings(affected)

		for _, entityID := range affected {
			e, ok := snap.Entity(entityID)
			if !ok || e.SegmentID != sig.SegmentID {
				continue
			}
			violations = append(violations, models.RuleViolation{
				RuleID:            r.ID(),
				ViolationType:     models.ViolationSignalOverrun,
				AffectedEntityIDs: []string{e.EntityID},
				SegmentID:         sig.SegmentID,
				SignalIDs:         []string{sig.SignalID},
				Severity:          models.SeverityCritical,
				Message: fmt.Sprintf("entity %s entered segment %s past RED signal %s",
					e.EntityID, sig.SegmentID, sig.SignalID),
				DetectedAt: snap.Timestamp,
			})
		}
	}

	return violations
}
