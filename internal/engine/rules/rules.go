// internal/engine/rules/rules.go

package rules

import (
	"fmt"
	"sort"
	"sync"

	"RailSentinelAPI/internal/logger"
	"RailSentinelAPI/internal/models"
)

// EngineVersion identifies the closed rule set. Any change to the set of
// rules or their semantics bumps this.
const EngineVersion = "rules/v1"

// Rule is one stateless safety check. Evaluate must be a pure function of
// the snapshot: no shared mutable state, so rules can run in parallel.
type Rule interface {
	ID() string
	Evaluate(snap *models.NetworkSnapshot) []models.RuleViolation
}

// Config carries the tunable thresholds of the rule set.
type Config struct {
	MinSeparationM     float64 // below this gap on a shared segment is a violation
	HardFloorM         float64 // below this gap severity is capped at CRITICAL
	SpeedOverageFactor float64 // overage above limit*factor escalates MEDIUM to HIGH
}

// DefaultConfig mirrors the documented operational thresholds.
func DefaultConfig() Config {
	return Config{
		MinSeparationM:     1000,
		HardFloorM:         200,
		SpeedOverageFactor: 1.2,
	}
}

// Result is the outcome of one full rule-set evaluation.
type Result struct {
	Violations  []models.RuleViolation
	FailedRules []string
}

// Engine evaluates the closed rule set against a snapshot. The rule list
// is fixed at construction; there is no runtime registration surface.
type Engine struct {
	rules []Rule
	log   *logger.Logger
}

// NewEngine builds an engine over an explicit rule list. Used directly by
// tests; production wiring goes through DefaultEngine.
func NewEngine(log *logger.Logger, ruleSet ...Rule) *Engine {
	return &Engine{rules: ruleSet, log: log}
}

// DefaultEngine returns the versioned production rule set.
func DefaultEngine(cfg Config, log *logger.Logger) *Engine {
	return NewEngine(log,
		&SignalConflictRule{},
		&SpeedLimitRule{OverageFactor: cfg.SpeedOverageFactor},
		&TrackCapacityRule{},
		&MinSeparationRule{MinSeparationM: cfg.MinSeparationM, HardFloorM: cfg.HardFloorM},
		&SignalOverrunRule{},
	)
}

// Evaluate runs every rule against the same snapshot, each on its own
// goroutine. A rule that panics contributes zero violations and is
// reported in FailedRules; the remaining rules are unaffected.
func (e *Engine) Evaluate(snap *models.NetworkSnapshot) Result {
	type ruleOutcome struct {
		ruleID     string
		violations []models.RuleViolation
		failed     bool
	}

	outcomes := make(chan ruleOutcome, len(e.rules))
	var wg sync.WaitGroup

	for _, r := range e.rules {
		wg.Add(1)
		go func(r Rule) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					if e.log != nil {
						e.log.Error("Rule %s panicked: %v", r.ID(), rec)
					}
					outcomes <- ruleOutcome{ruleID: r.ID(), failed: true}
				}
			}()
			outcomes <- ruleOutcome{ruleID: r.ID(), violations: r.Evaluate(snap)}
		}(r)
	}

	wg.Wait()
	close(outcomes)

	var result Result
	for out := range outcomes {
		if out.failed {
			result.FailedRules = append(result.FailedRules, fmt.Sprintf("rule %s failed", out.ruleID))
			continue
		}
		result.Violations = append(result.Violations, out.violations...)
	}

	// Stable ordering so the same snapshot always yields the same result.
	sort.Slice(result.Violations, func(i, j int) bool {
		a, b := result.Violations[i], result.Violations[j]
		if a.RuleID != b.RuleID {
			return a.RuleID < b.RuleID
		}
		return a.Message < b.Message
	})
	sort.Strings(result.FailedRules)

	return result
}

// RuleIDs lists the ids of the configured rules, ordered.
func (e *Engine) RuleIDs() []string {
	ids := make([]string, 0, len(e.rules))
	for _, r := range e.rules {
		ids = append(ids, r.ID())
	}
	sort.Strings(ids)
	return ids
}
