// internal/engine/suggest/generator.go

package suggest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"RailSentinelAPI/internal/models"
)

// RoutingSuggestionThreshold is the routing score above which a routing
// risk is treated as an actionable finding.
const RoutingSuggestionThreshold = 30.0

// Generator turns the findings of one assessment into ranked corrective
// suggestions. Strategy selection is rule-driven per finding kind;
// every CRITICAL collision scenario carries an EMERGENCY_STOP candidate
// as the safety floor no matter what else is proposed.
type Generator struct{}

func NewGenerator() *Generator { return &Generator{} }

// Generate produces at least one suggestion per finding and returns the
// batch ranked with strictly distinct priorities.
func (g *Generator) Generate(a *models.RiskAssessment) []models.CorrectiveSuggestion {
	var out []models.CorrectiveSuggestion

	for _, c := range a.SignalConflicts {
		out = append(out, signalConflictSuggestions(c)...)
	}
	for _, v := range a.Violations {
		out = append(out, violationSuggestions(v)...)
	}
	for _, s := range a.CollisionScenarios {
		out = append(out, collisionSuggestions(s)...)
	}
	for _, r := range a.RoutingRisks {
		if r.Score > RoutingSuggestionThreshold {
			out = append(out, routingSuggestions(r)...)
		}
	}
	for _, c := range a.Congestion {
		if c.Overloaded {
			out = append(out, overloadSuggestions(c)...)
		}
	}

	return Rank(out)
}

// Rank orders suggestions by effectiveness descending, implementation
// time ascending, then id, and assigns strictly distinct priorities.
// Ranking the same batch twice yields identical output.
func Rank(suggestions []models.CorrectiveSuggestion) []models.CorrectiveSuggestion {
	ranked := make([]models.CorrectiveSuggestion, len(suggestions))
	copy(ranked, suggestions)

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Effectiveness != b.Effectiveness {
			return a.Effectiveness > b.Effectiveness
		}
		if a.ImplementationTimeSeconds != b.ImplementationTimeSeconds {
			return a.ImplementationTimeSeconds < b.ImplementationTimeSeconds
		}
		return a.ID < b.ID
	})

	for i := range ranked {
		ranked[i].Priority = i + 1
	}
	return ranked
}

// suggestionID derives a stable id from the finding reference and
// strategy so identical assessments produce identical suggestion sets.
func suggestionID(findingRef, strategy string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(findingRef+"/"+strategy)).String()
}

func newSuggestion(kind, ref, strategy string, entityIDs []string, eff, implSeconds float64, actions ...models.SuggestedAction) models.CorrectiveSuggestion {
	return models.CorrectiveSuggestion{
		ID:                        suggestionID(ref, strategy),
		Strategy:                  strategy,
		FindingKind:               kind,
		FindingRef:                ref,
		AffectedEntityIDs:         entityIDs,
		Actions:                   actions,
		Effectiveness:             eff,
		ImplementationTimeSeconds: implSeconds,
	}
}

func signalConflictSuggestions(c models.SignalConflict) []models.CorrectiveSuggestion {
	ref := fmt.Sprintf("signal-conflict:%s:%s", c.SegmentID, strings.Join(c.SignalIDs, "+"))

	holdSignal := ""
	if len(c.SignalIDs) > 1 {
		holdSignal = c.SignalIDs[1]
	} else if len(c.SignalIDs) == 1 {
		holdSignal = c.SignalIDs[0]
	}

	return []models.CorrectiveSuggestion{
		newSuggestion(models.FindingSignalConflict, ref, models.StrategySignalAdjustment, c.EntityIDs, 0.9, 10,
			models.SuggestedAction{
				Type:            models.StrategySignalAdjustment,
				TargetSignalID:  holdSignal,
				TargetSegmentID: c.SegmentID,
				NewAspect:       models.AspectRed,
				Description:     fmt.Sprintf("set signal %s to RED to hold one movement out of segment %s", holdSignal, c.SegmentID),
			}),
	}
}

func violationSuggestions(v models.RuleViolation) []models.CorrectiveSuggestion {
	ref := fmt.Sprintf("violation:%s:%s", v.RuleID, strings.Join(v.AffectedEntityIDs, "+"))

	switch v.ViolationType {
	case models.ViolationSpeedLimit:
		return []models.CorrectiveSuggestion{
			newSuggestion(models.FindingRuleViolation, ref, models.StrategySpeedReduction, v.AffectedEntityIDs, 0.8, 15,
				models.SuggestedAction{
					Type:            models.StrategySpeedReduction,
					TargetEntityID:  v.AffectedEntityIDs[0],
					TargetSegmentID: v.SegmentID,
					Description:     fmt.Sprintf("reduce entity %s to the posted limit on segment %s", v.AffectedEntityIDs[0], v.SegmentID),
				}),
		}
	case models.ViolationMinSeparation:
		actions := make([]models.SuggestedAction, 0, len(v.AffectedEntityIDs))
		for _, id := range v.AffectedEntityIDs {
			actions = append(actions, models.SuggestedAction{
				Type:            models.StrategySpeedReduction,
				TargetEntityID:  id,
				TargetSegmentID: v.SegmentID,
				Description:     fmt.Sprintf("reduce entity %s to restore separation on segment %s", id, v.SegmentID),
			})
		}
		return []models.CorrectiveSuggestion{
			newSuggestion(models.FindingRuleViolation, ref, models.StrategySpeedReduction, v.AffectedEntityIDs, 0.8, 20, actions...),
		}
	case models.ViolationTrackCapacity:
		return []models.CorrectiveSuggestion{
			newSuggestion(models.FindingRuleViolation, ref, models.StrategyHoldAtStation, v.AffectedEntityIDs, 0.6, 120,
				models.SuggestedAction{
					Type:            models.StrategyHoldAtStation,
					TargetSegmentID: v.SegmentID,
					Description:     fmt.Sprintf("hold approaching entities short of segment %s until occupancy drops", v.SegmentID),
				}),
		}
	case models.ViolationSignalOverrun:
		return []models.CorrectiveSuggestion{
			newSuggestion(models.FindingRuleViolation, ref, models.StrategyEmergencyStop, v.AffectedEntityIDs, 0.95, 5,
				models.SuggestedAction{
					Type:           models.StrategyEmergencyStop,
					TargetEntityID: v.AffectedEntityIDs[0],
					Description:    fmt.Sprintf("emergency stop for entity %s past a RED signal", v.AffectedEntityIDs[0]),
				}),
		}
	case models.ViolationSignalConflict:
		// Handled through the fused SignalConflict findings.
		return nil
	default:
		return []models.CorrectiveSuggestion{
			newSuggestion(models.FindingRuleViolation, ref, models.StrategySpeedReduction, v.AffectedEntityIDs, 0.5, 30,
				models.SuggestedAction{
					Type:        models.StrategySpeedReduction,
					Description: "reduce speed pending operator review",
				}),
		}
	}
}

func collisionSuggestions(s models.CollisionScenario) []models.CorrectiveSuggestion {
	ref := "collision:" + s.EntityPairID

	actions := make([]models.SuggestedAction, 0, len(s.EntityIDs))
	for _, id := range s.EntityIDs {
		actions = append(actions, models.SuggestedAction{
			Type:           models.StrategySpeedReduction,
			TargetEntityID: id,
			Description:    fmt.Sprintf("reduce entity %s to extend time to collision", id),
		})
	}
	out := []models.CorrectiveSuggestion{
		newSuggestion(models.FindingCollisionScenario, ref, models.StrategySpeedReduction, s.EntityIDs, 0.7, 20, actions...),
	}

	if s.Severity == models.SeverityCritical {
		stops := make([]models.SuggestedAction, 0, len(s.EntityIDs))
		for _, id := range s.EntityIDs {
			stops = append(stops, models.SuggestedAction{
				Type:           models.StrategyEmergencyStop,
				TargetEntityID: id,
				Description:    fmt.Sprintf("emergency stop for entity %s", id),
			})
		}
		out = append(out,
			newSuggestion(models.FindingCollisionScenario, ref, models.StrategyEmergencyStop, s.EntityIDs, 0.95, 5, stops...))
	}

	return out
}

func routingSuggestions(r models.RoutingRisk) []models.CorrectiveSuggestion {
	ref := "routing:" + r.RouteID
	return []models.CorrectiveSuggestion{
		newSuggestion(models.FindingRoutingRisk, ref, models.StrategyRouteModification, nil, 0.65, 60,
			models.SuggestedAction{
				Type:        models.StrategyRouteModification,
				NewRouteID:  "",
				Description: fmt.Sprintf("re-plan route %s away from conflicting routes %s", r.RouteID, strings.Join(r.ConflictingRouteIDs, ", ")),
			}),
		newSuggestion(models.FindingRoutingRisk, ref, models.StrategyHoldAtStation, nil, 0.5, 90,
			models.SuggestedAction{
				Type:        models.StrategyHoldAtStation,
				Description: fmt.Sprintf("hold route %s at its next station until the conflict window passes", r.RouteID),
			}),
	}
}

func overloadSuggestions(c models.CongestionMetrics) []models.CorrectiveSuggestion {
	ref := "overload:" + c.SegmentID
	return []models.CorrectiveSuggestion{
		newSuggestion(models.FindingNetworkOverload, ref, models.StrategyHoldAtStation, nil, 0.55, 120,
			models.SuggestedAction{
				Type:            models.StrategyHoldAtStation,
				TargetSegmentID: c.SegmentID,
				Description:     fmt.Sprintf("hold inbound traffic short of segment %s (occupancy %d/%d)", c.SegmentID, c.Occupancy, c.Capacity),
			}),
	}
}
