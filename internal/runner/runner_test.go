package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"RailSentinelAPI/internal/engine/suggest"
	"RailSentinelAPI/internal/models"
)

type stubSource struct {
	mu        sync.Mutex
	seq       uint64
	signalled chan struct{}
}

func newStubSource() *stubSource {
	return &stubSource{signalled: make(chan struct{}, 1)}
}

func (s *stubSource) BuildSnapshot() *models.NetworkSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return &models.NetworkSnapshot{SnapshotID: s.seq, Timestamp: time.Now()}
}

func (s *stubSource) SignalChanged() <-chan struct{} { return s.signalled }

type stubEvaluator struct {
	mu       sync.Mutex
	inFlight int32
	maxSeen  int32
	degraded map[uint64]bool
	ran      []uint64
}

func (e *stubEvaluator) RunCycle(_ context.Context, snap *models.NetworkSnapshot) *models.RiskAssessment {
	n := atomic.AddInt32(&e.inFlight, 1)
	for {
		peak := atomic.LoadInt32(&e.maxSeen)
		if n <= peak || atomic.CompareAndSwapInt32(&e.maxSeen, peak, n) {
			break
		}
	}
	defer atomic.AddInt32(&e.inFlight, -1)

	e.mu.Lock()
	e.ran = append(e.ran, snap.SnapshotID)
	degraded := e.degraded[snap.SnapshotID]
	e.mu.Unlock()

	return &models.RiskAssessment{
		SnapshotID:        snap.SnapshotID,
		SnapshotTimestamp: snap.Timestamp,
		Degraded:          degraded,
		GeneratedAt:       time.Now(),
	}
}

type countingSink struct {
	mu     sync.Mutex
	saved  []uint64
	events []string
}

func (c *countingSink) SaveAssessment(_ context.Context, a *models.RiskAssessment) error {
	c.mu.Lock()
	c.saved = append(c.saved, a.SnapshotID)
	c.mu.Unlock()
	return nil
}

func (c *countingSink) Broadcast(msgType string, _ interface{}) {
	c.mu.Lock()
	c.events = append(c.events, msgType)
	c.mu.Unlock()
}

func newTestRunner(src *stubSource, eval *stubEvaluator, sink *countingSink) *Runner {
	return New(src, eval, suggest.NewGenerator(), nil, sink, sink, nil, Config{Interval: time.Hour}, nil)
}

func TestRunOncePublishesAssessment(t *testing.T) {
	src := newStubSource()
	eval := &stubEvaluator{}
	sink := &countingSink{}
	r := newTestRunner(src, eval, sink)

	a := r.RunOnce(context.Background())
	if a.SnapshotID != 1 {
		t.Errorf("snapshot id = %d, want 1", a.SnapshotID)
	}

	latest, err := r.Latest()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.SnapshotID != 1 {
		t.Errorf("latest snapshot id = %d, want 1", latest.SnapshotID)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.saved) != 1 || sink.saved[0] != 1 {
		t.Errorf("archived assessments = %v, want [1]", sink.saved)
	}
	if len(sink.events) != 1 || sink.events[0] != "risk_assessment" {
		t.Errorf("broadcast events = %v, want [risk_assessment]", sink.events)
	}
}

func TestLatestBeforeFirstCycle(t *testing.T) {
	r := newTestRunner(newStubSource(), &stubEvaluator{}, &countingSink{})

	if _, err := r.Latest(); err != models.ErrNoSnapshot {
		t.Errorf("latest before first cycle: err = %v, want ErrNoSnapshot", err)
	}
	if _, err := r.LastGood(); err != models.ErrNoSnapshot {
		t.Errorf("last good before first cycle: err = %v, want ErrNoSnapshot", err)
	}
}

func TestLastGoodSurvivesDegradedCycle(t *testing.T) {
	src := newStubSource()
	eval := &stubEvaluator{degraded: map[uint64]bool{2: true}}
	r := newTestRunner(src, eval, &countingSink{})

	r.RunOnce(context.Background()) // snapshot 1, clean
	r.RunOnce(context.Background()) // snapshot 2, degraded

	latest, _ := r.Latest()
	if latest.SnapshotID != 2 || !latest.Degraded {
		t.Errorf("latest = %+v, want degraded snapshot 2", latest)
	}
	good, err := r.LastGood()
	if err != nil {
		t.Fatalf("last good: %v", err)
	}
	if good.SnapshotID != 1 || good.Degraded {
		t.Errorf("last good = %+v, want clean snapshot 1", good)
	}
}

func TestRunTicksAndSignalTrigger(t *testing.T) {
	src := newStubSource()
	eval := &stubEvaluator{}
	r := New(src, eval, suggest.NewGenerator(), nil, nil, nil, nil, Config{Interval: 20 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	// Out-of-band trigger fires without waiting for the next tick.
	src.signalled <- struct{}{}

	deadline := time.After(2 * time.Second)
	for {
		eval.mu.Lock()
		n := len(eval.ran)
		eval.mu.Unlock()
		if n >= 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("runner did not complete 3 cycles in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	if peak := atomic.LoadInt32(&eval.maxSeen); peak != 1 {
		t.Errorf("observed %d concurrent cycles, want at most 1", peak)
	}

	// Snapshot ids strictly increase: each cycle saw a fresher snapshot.
	eval.mu.Lock()
	defer eval.mu.Unlock()
	for i := 1; i < len(eval.ran); i++ {
		if eval.ran[i] <= eval.ran[i-1] {
			t.Errorf("snapshot ids not increasing: %v", eval.ran)
		}
	}
}
