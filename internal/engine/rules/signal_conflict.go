// internal/engine/rules/signal_conflict.go

package rules

import (
	"fmt"
	"sort"

	"RailSentinelAPI/internal/models"
)

// SignalConflictRule flags pairs of simultaneously GREEN signals that
// would admit two entities from different segments into the same block.
type SignalConflictRule struct{}

func (r *SignalConflictRule) ID() string { return "signal_conflict" }

func (r *SignalConflictRule) Evaluate(snap *models.NetworkSnapshot) []models.RuleViolation {
	var violations []models.RuleViolation

	segmentIDs := make([]string, 0, len(snap.Topology.Segments))
	for id := range snap.Topology.Segments {
		segmentIDs = append(segmentIDs, id)
	}
	sort.Strings(segmentIDs)

	for _, segID := range segmentIDs {
		greens := greenSignals(snap, segID)
		if len(greens) < 2 {
			continue
		}

		for i := 0; i < len(greens); i++ {
			for j := i + 1; j < len(greens); j++ {
				pairs := convergingEntityPairs(snap, segID, greens[i], greens[j])
				for _, p := range pairs {
					violations = append(violations, models.RuleViolation{
						RuleID:            r.ID(),
						ViolationType:     models.ViolationSignalConflict,
						AffectedEntityIDs: []string{p[0], p[1]},
						SegmentID:         segID,
						SignalIDs:         []string{greens[i].SignalID, greens[j].SignalID},
						Severity:          models.SeverityCritical,
						Message: fmt.Sprintf("signals %s and %s both GREEN admit %s and %s into segment %s",
							greens[i].SignalID, greens[j].SignalID, p[0], p[1], segID),
						DetectedAt: snap.Timestamp,
					})
				}
			}
		}
	}

	return violations
}

func greenSignals(snap *models.NetworkSnapshot, segmentID string) []models.SignalState {
	var out []models.SignalState
	for _, sig := range snap.SignalsForSegment(segmentID) {
		if sig.Aspect == models.AspectGreen {
			out = append(out, sig)
		}
	}
	return out
}

// convergingEntityPairs returns [a, b] pairs where a is cleared by sigA
// and b by sigB, both approaching segID from outside it on different
// segments. Entities already inside the block are not "converging".
func convergingEntityPairs(snap *models.NetworkSnapshot, segID string, sigA, sigB models.SignalState) [][2]string {
	var pairs [][2]string
	for _, aID := range sigA.AffectedEntityIDs {
		a, ok := snap.Entity(aID)
		if !ok || a.SegmentID == segID {
			continue
		}
		for _, bID := range sigB.AffectedEntityIDs {
			if bID == aID {
				continue
			}
			b, ok := snap.Entity(bID)
			if !ok || b.SegmentID == segID || b.SegmentID == a.SegmentID {
				continue
			}
			if aID < bID {
				pairs = append(pairs, [2]string{aID, bID})
			} else {
				pairs = append(pairs, [2]string{bID, aID})
			}
		}
	}
	return pairs
}
