// internal/runner/runner.go

package runner

import (
	"context"
	"sync"
	"time"

	"RailSentinelAPI/internal/alerting"
	"RailSentinelAPI/internal/engine/suggest"
	"RailSentinelAPI/internal/logger"
	"RailSentinelAPI/internal/models"
	"RailSentinelAPI/internal/websocket"
)

// SnapshotSource hands the runner fresh fleet snapshots and signal
// change notifications for out-of-band evaluation.
type SnapshotSource interface {
	BuildSnapshot() *models.NetworkSnapshot
	SignalChanged() <-chan struct{}
}

// Evaluator runs one evaluation cycle over a snapshot.
type Evaluator interface {
	RunCycle(ctx context.Context, snap *models.NetworkSnapshot) *models.RiskAssessment
}

// Persistence is the best-effort assessment archive.
type Persistence interface {
	SaveAssessment(ctx context.Context, a *models.RiskAssessment) error
}

// Notifier pushes finished assessments to connected clients.
type Notifier interface {
	Broadcast(msgType string, payload interface{})
}

// Observer records per-cycle measurements.
type Observer interface {
	ObserveCycle(a *models.RiskAssessment)
	SetActiveAlerts(n int)
}

// Config sets the evaluation cadence.
type Config struct {
	Interval time.Duration
}

func DefaultConfig() Config {
	return Config{Interval: 2 * time.Second}
}

// Runner drives the evaluation loop: a fixed-cadence tick plus an
// out-of-band trigger on signal aspect changes. Cycles never overlap;
// triggers arriving mid-cycle coalesce, and the next cycle always builds
// a fresh snapshot, so the newest fleet state wins.
type Runner struct {
	src     SnapshotSource
	eval    Evaluator
	gen     *suggest.Generator
	alerts  alerting.IAlertManager
	repo    Persistence
	hub     Notifier
	metrics Observer
	cfg     Config
	log     *logger.Logger

	mu       sync.RWMutex
	latest   *models.RiskAssessment
	lastGood *models.RiskAssessment
}

func New(src SnapshotSource, eval Evaluator, gen *suggest.Generator, alerts alerting.IAlertManager, repo Persistence, hub Notifier, metrics Observer, cfg Config, log *logger.Logger) *Runner {
	if cfg.Interval <= 0 {
		cfg = DefaultConfig()
	}
	return &Runner{
		src:     src,
		eval:    eval,
		gen:     gen,
		alerts:  alerts,
		repo:    repo,
		hub:     hub,
		metrics: metrics,
		cfg:     cfg,
		log:     log,
	}
}

// Run blocks until the context is cancelled.
func (r *Runner) Run(ctx context.Context) {
	r.logf("evaluation loop started, interval %v", r.cfg.Interval)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logf("evaluation loop stopped")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		case <-r.src.SignalChanged():
			r.RunOnce(ctx)
		}
	}
}

// RunOnce evaluates the current fleet state end to end: snapshot,
// cycle, suggestions, alerts, archive, push.
func (r *Runner) RunOnce(ctx context.Context) *models.RiskAssessment {
	snap := r.src.BuildSnapshot()
	assessment := r.eval.RunCycle(ctx, snap)

	r.mu.Lock()
	r.latest = assessment
	if !assessment.Degraded {
		r.lastGood = assessment
	}
	r.mu.Unlock()

	suggestions := r.gen.Generate(assessment)
	if r.alerts != nil {
		r.alerts.CreateFromAssessment(ctx, assessment, suggestions)
	}
	if r.repo != nil {
		if err := r.repo.SaveAssessment(ctx, assessment); err != nil {
			r.logf("assessment %d archive failed: %v", assessment.SnapshotID, err)
		}
	}
	if r.hub != nil {
		r.hub.Broadcast(websocket.EventRiskAssessment, assessment)
	}
	if r.metrics != nil {
		r.metrics.ObserveCycle(assessment)
		if r.alerts != nil {
			r.metrics.SetActiveAlerts(len(r.alerts.GetActiveAlerts(ctx, models.AlertFilter{})))
		}
	}

	return assessment
}

// Latest returns the most recent assessment, degraded or not.
func (r *Runner) Latest() (*models.RiskAssessment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.latest == nil {
		return nil, models.ErrNoSnapshot
	}
	return r.latest, nil
}

// LastGood returns the most recent non-degraded assessment. Consumers
// that cannot act on partial results read this one.
func (r *Runner) LastGood() (*models.RiskAssessment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.lastGood == nil {
		return nil, models.ErrNoSnapshot
	}
	return r.lastGood, nil
}

func (r *Runner) logf(format string, args ...interface{}) {
	if r.log != nil {
		r.log.Info(format, args...)
	}
}
