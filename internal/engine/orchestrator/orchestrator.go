// internal/engine/orchestrator/orchestrator.go

package orchestrator

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"RailSentinelAPI/internal/engine/congestion"
	"RailSentinelAPI/internal/engine/predictor"
	"RailSentinelAPI/internal/engine/rules"
	"RailSentinelAPI/internal/logger"
	"RailSentinelAPI/internal/models"
)

// Config bounds one evaluation cycle. The three sub-deadlines must sum to
// less than CycleBudget so fusion always has headroom.
type Config struct {
	CycleBudget        time.Duration
	RuleDeadline       time.Duration
	PredictorDeadline  time.Duration
	CongestionDeadline time.Duration
	PredictionHorizonS float64
	ForecastHorizon    time.Duration
}

// DefaultConfig matches the 5-second end-to-end detection target.
func DefaultConfig() Config {
	return Config{
		CycleBudget:        5 * time.Second,
		RuleDeadline:       1500 * time.Millisecond,
		PredictorDeadline:  2 * time.Second,
		CongestionDeadline: 1 * time.Second,
		PredictionHorizonS: 300,
		ForecastHorizon:    congestion.DefaultForecastHorizon,
	}
}

// CollisionCriticalProbability is the fixed threshold above which a
// collision scenario is CRITICAL.
const CollisionCriticalProbability = 0.70

// CongestionSource computes per-segment occupancy metrics and the
// near-term forecast for one snapshot.
type CongestionSource interface {
	ComputeCongestion(snap *models.NetworkSnapshot) []models.CongestionMetrics
	Forecast(snap *models.NetworkSnapshot, movements []models.ScheduledMovement, horizon time.Duration) []models.CongestionTrend
}

// RouteScorer scores each active route against the others.
type RouteScorer interface {
	ScoreAll(snap *models.NetworkSnapshot) []models.RoutingRisk
}

// Orchestrator drives one evaluation cycle: concurrent fan-out to the
// rule engine, predictive port and congestion monitor, each under its own
// sub-deadline, then fusion into a single clamped RiskAssessment.
type Orchestrator struct {
	ruleEngine *rules.Engine
	port       predictor.Port
	monitor    CongestionSource
	analyzer   RouteScorer
	cfg        Config
	log        *logger.Logger
}

func New(ruleEngine *rules.Engine, port predictor.Port, monitor CongestionSource, analyzer RouteScorer, cfg Config, log *logger.Logger) *Orchestrator {
	if cfg.CycleBudget <= 0 {
		cfg = DefaultConfig()
	}
	return &Orchestrator{
		ruleEngine: ruleEngine,
		port:       port,
		monitor:    monitor,
		analyzer:   analyzer,
		cfg:        cfg,
		log:        log,
	}
}

// Port exposes the predictive boundary for per-entity anomaly queries.
func (o *Orchestrator) Port() predictor.Port { return o.port }

type ruleOutcome struct {
	result rules.Result
}

type predictOutcome struct {
	predictions []models.CollisionPrediction
	err         error
}

type congestionOutcome struct {
	metrics []models.CongestionMetrics
	trends  []models.CongestionTrend
	err     error
}

// RunCycle evaluates one snapshot. It always returns an assessment: on
// sub-component timeout or failure the assessment is marked degraded with
// the reasons recorded, never dropped.
func (o *Orchestrator) RunCycle(ctx context.Context, snap *models.NetworkSnapshot) *models.RiskAssessment {
	started := time.Now()

	ctx, cancel := context.WithTimeout(ctx, o.cfg.CycleBudget)
	defer cancel()

	ruleCh := make(chan ruleOutcome, 1)
	predictCh := make(chan predictOutcome, 1)
	congestionCh := make(chan congestionOutcome, 1)

	go func() {
		ruleCh <- ruleOutcome{result: o.ruleEngine.Evaluate(snap)}
	}()

	go func() {
		pctx, pcancel := context.WithTimeout(ctx, o.cfg.PredictorDeadline)
		defer pcancel()
		preds, err := o.port.PredictCollisions(pctx, snap, o.cfg.PredictionHorizonS)
		predictCh <- predictOutcome{predictions: preds, err: err}
	}()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				congestionCh <- congestionOutcome{err: fmt.Errorf("congestion monitor panic: %v", r)}
			}
		}()
		metrics := o.monitor.ComputeCongestion(snap)
		trends := o.monitor.Forecast(snap, scheduledMovements(snap), o.cfg.ForecastHorizon)
		congestionCh <- congestionOutcome{metrics: metrics, trends: trends}
	}()

	assessment := &models.RiskAssessment{
		SnapshotID:        snap.SnapshotID,
		SnapshotTimestamp: snap.Timestamp,
	}

	// Bounded join: when the cycle budget expires we fuse whatever has
	// arrived instead of waiting further. A rule set that cannot answer
	// inside its deadline is a configuration bug and is logged as such.
	var ruleRes *rules.Result
	select {
	case out := <-ruleCh:
		ruleRes = &out.result
	case <-time.After(o.cfg.RuleDeadline):
		o.logf("rule engine exceeded %v deadline, cycle degraded", o.cfg.RuleDeadline)
		assessment.Degraded = true
		assessment.DegradedReasons = append(assessment.DegradedReasons, "rule engine deadline exceeded")
	}

	var predictions []models.CollisionPrediction
	select {
	case out := <-predictCh:
		if out.err != nil {
			o.logf("predictor failed: %v", out.err)
			assessment.Degraded = true
			assessment.DegradedReasons = append(assessment.DegradedReasons,
				fmt.Sprintf("predictor unavailable: %v", out.err))
		} else {
			predictions = o.validatePredictions(out.predictions)
		}
	case <-ctx.Done():
		o.logf("predictor exceeded cycle budget")
		assessment.Degraded = true
		assessment.DegradedReasons = append(assessment.DegradedReasons, "predictor deadline exceeded")
	}

	var cong congestionOutcome
	select {
	case cong = <-congestionCh:
		if cong.err != nil {
			o.logf("congestion monitor failed: %v", cong.err)
			assessment.Degraded = true
			assessment.DegradedReasons = append(assessment.DegradedReasons,
				fmt.Sprintf("congestion monitor failed: %v", cong.err))
		}
	case <-time.After(o.cfg.CongestionDeadline):
		o.logf("congestion monitor exceeded %v deadline, cycle degraded", o.cfg.CongestionDeadline)
		assessment.Degraded = true
		assessment.DegradedReasons = append(assessment.DegradedReasons, "congestion monitor deadline exceeded")
	}

	if ruleRes != nil {
		assessment.Violations = ruleRes.Violations
		if len(ruleRes.FailedRules) > 0 {
			assessment.Degraded = true
			assessment.DegradedReasons = append(assessment.DegradedReasons, ruleRes.FailedRules...)
		}
	}

	assessment.SignalConflicts = fuseSignalConflicts(assessment.Violations)
	assessment.CollisionScenarios = fuseCollisionScenarios(predictions)
	assessment.RoutingRisks = o.scoreRoutes(snap, assessment)
	assessment.Congestion = cong.metrics
	assessment.CongestionTrends = cong.trends

	assessment.OverallRiskScore = fuseOverallScore(assessment)

	sort.Strings(assessment.DegradedReasons)
	assessment.GeneratedAt = time.Now()
	assessment.ProcessingTime = time.Since(started)

	return assessment
}

// scoreRoutes isolates a crash in the routing analyzer: the cycle
// degrades with no routing findings instead of taking the process down.
func (o *Orchestrator) scoreRoutes(snap *models.NetworkSnapshot, assessment *models.RiskAssessment) (risks []models.RoutingRisk) {
	defer func() {
		if r := recover(); r != nil {
			o.logf("routing analyzer panic: %v", r)
			assessment.Degraded = true
			assessment.DegradedReasons = append(assessment.DegradedReasons,
				fmt.Sprintf("routing analyzer failed: %v", r))
			risks = nil
		}
	}()
	return o.analyzer.ScoreAll(snap)
}

// validatePredictions enforces the inference contract: probability and
// confidence finite and in [0,1]. Offending predictions are dropped one
// by one, never the whole batch.
func (o *Orchestrator) validatePredictions(preds []models.CollisionPrediction) []models.CollisionPrediction {
	valid := preds[:0:0]
	for _, p := range preds {
		if bad, field, value := contractViolation(p); bad {
			cv := &models.ContractViolation{PairID: p.EntityPairID, Field: field, Value: value}
			o.logf("discarding prediction: %v", cv)
			continue
		}
		valid = append(valid, p)
	}
	return valid
}

func contractViolation(p models.CollisionPrediction) (bool, string, float64) {
	if math.IsNaN(p.Probability) || math.IsInf(p.Probability, 0) || p.Probability < 0 || p.Probability > 1 {
		return true, "probability", p.Probability
	}
	if math.IsNaN(p.Confidence) || math.IsInf(p.Confidence, 0) || p.Confidence < 0 || p.Confidence > 1 {
		return true, "confidence", p.Confidence
	}
	return false, "", 0
}

func fuseSignalConflicts(violations []models.RuleViolation) []models.SignalConflict {
	var conflicts []models.SignalConflict
	for _, v := range violations {
		if v.ViolationType != models.ViolationSignalConflict {
			continue
		}
		conflicts = append(conflicts, models.SignalConflict{
			SegmentID: v.SegmentID,
			SignalIDs: v.SignalIDs,
			EntityIDs: v.AffectedEntityIDs,
			Severity:  models.SeverityCritical,
			Message:   v.Message,
		})
	}
	return conflicts
}

func fuseCollisionScenarios(predictions []models.CollisionPrediction) []models.CollisionScenario {
	scenarios := make([]models.CollisionScenario, 0, len(predictions))
	for _, p := range predictions {
		scenarios = append(scenarios, models.CollisionScenario{
			CollisionPrediction: p,
			Severity:            collisionSeverity(p.Probability),
		})
	}
	if len(scenarios) == 0 {
		return nil
	}
	return scenarios
}

func collisionSeverity(probability float64) string {
	switch {
	case probability > CollisionCriticalProbability:
		return models.SeverityCritical
	case probability > 0.5:
		return models.SeverityHigh
	default:
		return models.SeverityMedium
	}
}

// fuseOverallScore takes the maximum across the three categories so one
// severe finding is never diluted by many benign ones.
func fuseOverallScore(a *models.RiskAssessment) float64 {
	var ruleScore float64
	for _, v := range a.Violations {
		ruleScore = math.Max(ruleScore, models.SeverityScore(v.Severity))
	}

	var collisionScore float64
	for _, s := range a.CollisionScenarios {
		collisionScore = math.Max(collisionScore, models.ClampUnit(s.Probability)*100)
	}

	var routingScore float64
	for _, r := range a.RoutingRisks {
		routingScore = math.Max(routingScore, r.Score)
	}
	for _, c := range a.Congestion {
		if c.Overloaded {
			routingScore = math.Max(routingScore, models.ClampScore(c.Level*100))
		}
	}

	return models.ClampScore(math.Max(ruleScore, math.Max(collisionScore, routingScore)))
}

// scheduledMovements derives upcoming per-segment arrivals and departures
// from the station calls of the active routes.
func scheduledMovements(snap *models.NetworkSnapshot) []models.ScheduledMovement {
	var movements []models.ScheduledMovement
	for _, route := range snap.ActiveRoutes() {
		for _, stop := range route.Stops {
			station, ok := snap.Topology.Stations[stop.StationID]
			if !ok {
				continue
			}
			arrival := snap.Timestamp.Add(stop.ArrivalOffset)
			movements = append(movements, models.ScheduledMovement{
				EntityID:    route.RouteID,
				SegmentID:   station.SegmentID,
				ArrivalAt:   arrival,
				DepartureAt: arrival.Add(stop.DwellTime),
			})
		}
	}
	return movements
}

func (o *Orchestrator) logf(format string, args ...interface{}) {
	if o.log != nil {
		o.log.Warn(format, args...)
	}
}
