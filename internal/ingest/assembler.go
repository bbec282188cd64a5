// internal/ingest/assembler.go

package ingest

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"RailSentinelAPI/internal/logger"
	"RailSentinelAPI/internal/models"
)

// ErrStaleMessage marks a position report older than the late-arrival
// window for its entity. The report is dropped; earlier state stands.
var ErrStaleMessage = errors.New("stale message outside late-arrival window")

// Config bounds the assembler's tolerance for a messy feed.
type Config struct {
	// LateWindow is how far behind an entity's newest report a message
	// may be and still replace nothing silently.
	LateWindow time.Duration
	// SilenceTimeout is how long an entity may go unheard before its
	// status degrades to CONNECTION_LOST in built snapshots.
	SilenceTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		LateWindow:     10 * time.Second,
		SilenceTimeout: 30 * time.Second,
	}
}

// Assembler folds the MQTT position and signal feeds into immutable
// snapshots. Writers (feed handlers) and the reader (cycle runner) are
// decoupled: BuildSnapshot copies everything out under the lock so a
// snapshot never changes after it is handed to a cycle.
type Assembler struct {
	mu       sync.Mutex
	cfg      Config
	log      *logger.Logger
	now      func() time.Time
	topology models.RouteTopology
	entities map[string]models.EntityState
	signals  map[string]models.SignalState
	seq      uint64

	// signalled carries at most one pending notification that a signal
	// changed aspect, for out-of-band evaluation.
	signalled chan struct{}
}

func NewAssembler(cfg Config, topology models.RouteTopology, log *logger.Logger) *Assembler {
	if cfg.LateWindow <= 0 {
		cfg.LateWindow = DefaultConfig().LateWindow
	}
	if cfg.SilenceTimeout <= 0 {
		cfg.SilenceTimeout = DefaultConfig().SilenceTimeout
	}
	return &Assembler{
		cfg:       cfg,
		log:       log,
		now:       time.Now,
		topology:  topology,
		entities:  make(map[string]models.EntityState),
		signals:   make(map[string]models.SignalState),
		signalled: make(chan struct{}, 1),
	}
}

// SignalChanged delivers a notification whenever a signal changes
// aspect. At most one notification is pending at a time.
func (a *Assembler) SignalChanged() <-chan struct{} { return a.signalled }

// ProcessFleetMessage validates and applies one position report. Invalid
// reports return a ValidationError and leave the entity's previous state
// untouched; reports older than the late window return ErrStaleMessage.
func (a *Assembler) ProcessFleetMessage(msg models.FleetPositionMessage) error {
	if err := validateFleetMessage(msg); err != nil {
		a.logf("dropping position report: %v", err)
		return err
	}

	ts := time.UnixMilli(msg.Epoch).UTC()

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.topology.Segments[msg.SegmentID]; !ok {
		err := &models.ValidationError{EntityID: msg.EntityID, Field: "seg", Reason: fmt.Sprintf("unknown segment %q", msg.SegmentID)}
		a.logf("dropping position report: %v", err)
		return err
	}

	if prev, ok := a.entities[msg.EntityID]; ok && ts.Before(prev.LastUpdateAt.Add(-a.cfg.LateWindow)) {
		a.logf("dropping stale report for %s: %v behind newest", msg.EntityID, prev.LastUpdateAt.Sub(ts))
		return fmt.Errorf("entity %s: %w", msg.EntityID, ErrStaleMessage)
	}

	status := msg.Status
	if status == "" {
		status = models.EntityRunning
	}

	a.entities[msg.EntityID] = models.EntityState{
		EntityID:     msg.EntityID,
		SegmentID:    msg.SegmentID,
		PositionM:    msg.PositionM,
		SpeedKmh:     msg.SpeedKmh,
		HeadingDeg:   msg.HeadingDeg,
		RouteID:      msg.RouteID,
		Status:       status,
		LastUpdateAt: ts,
	}
	return nil
}

// ProcessSignalMessage applies one signal state change. An aspect change
// raises the out-of-band evaluation notification.
func (a *Assembler) ProcessSignalMessage(msg models.SignalStateMessage) error {
	if err := validateSignalMessage(msg); err != nil {
		a.logf("dropping signal report: %v", err)
		return err
	}

	ts := time.UnixMilli(msg.Epoch).UTC()

	a.mu.Lock()
	prev, existed := a.signals[msg.SignalID]
	if existed && ts.Before(prev.LastUpdateAt.Add(-a.cfg.LateWindow)) {
		a.mu.Unlock()
		a.logf("dropping stale report for signal %s", msg.SignalID)
		return fmt.Errorf("signal %s: %w", msg.SignalID, ErrStaleMessage)
	}

	affected := append([]string(nil), msg.AffectedEntityIDs...)
	sort.Strings(affected)
	a.signals[msg.SignalID] = models.SignalState{
		SignalID:          msg.SignalID,
		SegmentID:         msg.SegmentID,
		Aspect:            msg.Aspect,
		AffectedEntityIDs: affected,
		LastUpdateAt:      ts,
	}
	changed := !existed || prev.Aspect != msg.Aspect
	a.mu.Unlock()

	if changed {
		select {
		case a.signalled <- struct{}{}:
		default:
		}
	}
	return nil
}

// CurrentEntity returns the last accepted state of one entity without
// advancing the snapshot sequence.
func (a *Assembler) CurrentEntity(entityID string) (models.EntityState, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.entities[entityID]
	if ok && a.now().UTC().Sub(e.LastUpdateAt) > a.cfg.SilenceTimeout {
		e.Status = models.EntityConnectionLost
	}
	return e, ok
}

// BuildSnapshot assembles the current fleet view under a fresh snapshot
// id. Entities silent past the silence timeout are carried with status
// CONNECTION_LOST rather than dropped, so the predictor still sees them.
func (a *Assembler) BuildSnapshot() *models.NetworkSnapshot {
	now := a.now().UTC()

	a.mu.Lock()
	defer a.mu.Unlock()

	a.seq++
	snap := &models.NetworkSnapshot{
		SnapshotID: a.seq,
		Timestamp:  now,
		Topology:   a.copyTopology(),
	}

	for _, e := range a.entities {
		if now.Sub(e.LastUpdateAt) > a.cfg.SilenceTimeout {
			e.Status = models.EntityConnectionLost
		}
		snap.Entities = append(snap.Entities, e)
	}
	sort.Slice(snap.Entities, func(i, j int) bool { return snap.Entities[i].EntityID < snap.Entities[j].EntityID })

	for _, s := range a.signals {
		snap.Signals = append(snap.Signals, s)
	}
	sort.Slice(snap.Signals, func(i, j int) bool { return snap.Signals[i].SignalID < snap.Signals[j].SignalID })

	for _, e := range snap.Entities {
		if seg, ok := snap.Topology.Segments[e.SegmentID]; ok {
			seg.Occupancy++
			snap.Topology.Segments[e.SegmentID] = seg
		}
	}

	return snap
}

func (a *Assembler) copyTopology() models.RouteTopology {
	out := models.RouteTopology{
		Segments:  make(map[string]models.Segment, len(a.topology.Segments)),
		Junctions: make(map[string]models.Junction, len(a.topology.Junctions)),
		Stations:  make(map[string]models.Station, len(a.topology.Stations)),
		Routes:    make(map[string]models.Route, len(a.topology.Routes)),
	}
	for id, s := range a.topology.Segments {
		s.Occupancy = 0
		out.Segments[id] = s
	}
	for id, j := range a.topology.Junctions {
		out.Junctions[id] = j
	}
	for id, s := range a.topology.Stations {
		out.Stations[id] = s
	}
	for id, r := range a.topology.Routes {
		out.Routes[id] = r
	}
	return out
}

func validateFleetMessage(msg models.FleetPositionMessage) error {
	switch {
	case msg.EntityID == "":
		return &models.ValidationError{EntityID: msg.EntityID, Field: "vid", Reason: "empty"}
	case msg.SegmentID == "":
		return &models.ValidationError{EntityID: msg.EntityID, Field: "seg", Reason: "empty"}
	case math.IsNaN(msg.PositionM) || math.IsInf(msg.PositionM, 0) || msg.PositionM < 0:
		return &models.ValidationError{EntityID: msg.EntityID, Field: "pos", Reason: fmt.Sprintf("invalid value %v", msg.PositionM)}
	case math.IsNaN(msg.SpeedKmh) || math.IsInf(msg.SpeedKmh, 0) || msg.SpeedKmh < 0:
		return &models.ValidationError{EntityID: msg.EntityID, Field: "spd", Reason: fmt.Sprintf("invalid value %v", msg.SpeedKmh)}
	case msg.Epoch <= 0:
		return &models.ValidationError{EntityID: msg.EntityID, Field: "epoch", Reason: "missing timestamp"}
	}
	switch msg.Status {
	case "", models.EntityRunning, models.EntityStopped, models.EntityDelayed, models.EntityConnectionLost:
	default:
		return &models.ValidationError{EntityID: msg.EntityID, Field: "st", Reason: fmt.Sprintf("unknown status %q", msg.Status)}
	}
	return nil
}

func validateSignalMessage(msg models.SignalStateMessage) error {
	switch {
	case msg.SignalID == "":
		return &models.ValidationError{EntityID: msg.SignalID, Field: "sid", Reason: "empty"}
	case msg.SegmentID == "":
		return &models.ValidationError{EntityID: msg.SignalID, Field: "seg", Reason: "empty"}
	case msg.Epoch <= 0:
		return &models.ValidationError{EntityID: msg.SignalID, Field: "epoch", Reason: "missing timestamp"}
	}
	switch msg.Aspect {
	case models.AspectRed, models.AspectYellow, models.AspectGreen:
		return nil
	default:
		return &models.ValidationError{EntityID: msg.SignalID, Field: "aspect", Reason: fmt.Sprintf("unknown aspect %q", msg.Aspect)}
	}
}

func (a *Assembler) logf(format string, args ...interface{}) {
	if a.log != nil {
		a.log.Warn(format, args...)
	}
}
