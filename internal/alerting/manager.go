// internal/alerting/manager.go

package alerting

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"RailSentinelAPI/internal/logger"
	"RailSentinelAPI/internal/models"
	"RailSentinelAPI/internal/websocket"
)

// IAlertManager defines the lifecycle operations for operator alerts.
type IAlertManager interface {
	CreateFromAssessment(ctx context.Context, a *models.RiskAssessment, suggestions []models.CorrectiveSuggestion) []*models.Alert
	Acknowledge(ctx context.Context, id, operatorID string) (*models.Alert, error)
	Resolve(ctx context.Context, id string, res models.AlertResolution) (*models.Alert, error)
	GetByID(ctx context.Context, id string) (*models.Alert, error)
	GetActiveAlerts(ctx context.Context, filter models.AlertFilter) []*models.Alert
	GetAlertHistory(ctx context.Context, r models.HistoryRange) []*models.Alert
}

// Persistence is the best-effort write-through boundary. A failed write
// is logged and never blocks the in-memory lifecycle.
type Persistence interface {
	SaveAlert(ctx context.Context, alert *models.Alert) error
	UpdateAlert(ctx context.Context, alert *models.Alert) error
}

// Notifier pushes alert lifecycle events to connected clients.
type Notifier interface {
	Broadcast(msgType string, payload interface{})
}

const lifecycleStripes = 32

// Manager keeps the authoritative alert set in memory. Lifecycle
// transitions for one alert id are serialized on a striped lock so
// concurrent acknowledge/resolve calls cannot interleave.
type Manager struct {
	mu     sync.RWMutex
	alerts map[string]*models.Alert
	// active alert id per finding fingerprint, so a finding that persists
	// across cycles keeps one alert instead of spawning one per cycle.
	open map[string]string

	stripes [lifecycleStripes]sync.Mutex

	repo Persistence
	hub  Notifier
	log  *logger.Logger
	now  func() time.Time
}

func NewManager(repo Persistence, hub Notifier, log *logger.Logger) *Manager {
	return &Manager{
		alerts: make(map[string]*models.Alert),
		open:   make(map[string]string),
		repo:   repo,
		hub:    hub,
		log:    log,
		now:    time.Now,
	}
}

func (m *Manager) stripe(id string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &m.stripes[h.Sum32()%lifecycleStripes]
}

type finding struct {
	kind      string
	ref       string
	severity  string
	message   string
	entityIDs []string
	alertKind string
}

// CreateFromAssessment maps each alertable finding of one assessment to
// an alert, one to one. A capacity overrun therefore surfaces as both a
// rule violation on the assessment and a NETWORK_OVERLOAD alert here.
// Findings already covered by an unresolved alert are skipped unless
// they now rank more severe, in which case the open alert escalates.
func (m *Manager) CreateFromAssessment(ctx context.Context, a *models.RiskAssessment, suggestions []models.CorrectiveSuggestion) []*models.Alert {
	byRef := map[string][]models.CorrectiveSuggestion{}
	for _, s := range suggestions {
		byRef[s.FindingRef] = append(byRef[s.FindingRef], s)
	}

	var created []*models.Alert
	for _, f := range alertableFindings(a) {
		alert := m.openAlert(ctx, a.SnapshotID, f, byRef[f.ref])
		if alert != nil {
			created = append(created, alert)
		}
	}
	return created
}

func alertableFindings(a *models.RiskAssessment) []finding {
	var out []finding
	for _, c := range a.SignalConflicts {
		ref := fmt.Sprintf("signal-conflict:%s:%s", c.SegmentID, joinIDs(c.SignalIDs))
		out = append(out, finding{
			kind: models.FindingSignalConflict, alertKind: models.AlertSignalConflict,
			ref: ref, severity: c.Severity, message: c.Message, entityIDs: c.EntityIDs,
		})
	}
	for _, s := range a.CollisionScenarios {
		out = append(out, finding{
			kind: models.FindingCollisionScenario, alertKind: models.AlertCollisionScenario,
			ref: "collision:" + s.EntityPairID, severity: s.Severity,
			message:   fmt.Sprintf("predicted collision between %s (probability %.2f)", joinIDs(s.EntityIDs), s.Probability),
			entityIDs: s.EntityIDs,
		})
	}
	for _, r := range a.RoutingRisks {
		if r.Severity != models.SeverityHigh && r.Severity != models.SeverityCritical {
			continue
		}
		out = append(out, finding{
			kind: models.FindingRoutingRisk, alertKind: models.AlertRoutingRisk,
			ref: "routing:" + r.RouteID, severity: r.Severity,
			message: fmt.Sprintf("route %s routing risk score %.0f, conflicts with %s", r.RouteID, r.Score, joinIDs(r.ConflictingRouteIDs)),
		})
	}
	for _, c := range a.Congestion {
		if !c.Overloaded {
			continue
		}
		out = append(out, finding{
			kind: models.FindingNetworkOverload, alertKind: models.AlertNetworkOverload,
			ref: "overload:" + c.SegmentID, severity: models.SeverityMedium,
			message: fmt.Sprintf("segment %s overloaded: %d entities for capacity %d", c.SegmentID, c.Occupancy, c.Capacity),
		})
	}
	return out
}

func (m *Manager) openAlert(ctx context.Context, snapshotID uint64, f finding, suggestions []models.CorrectiveSuggestion) *models.Alert {
	m.mu.Lock()
	if id, ok := m.open[f.ref]; ok {
		if existing, found := m.alerts[id]; found && existing.Status != models.StatusResolved {
			if models.SeverityRank(f.severity) <= models.SeverityRank(existing.Severity) {
				m.mu.Unlock()
				return nil
			}
			// The finding got worse while its alert was still open: a
			// collision pair crossing the CRITICAL probability threshold
			// must surface as CRITICAL, not hide behind the dedupe.
			existing.Severity = f.severity
			existing.Message = f.message
			existing.SnapshotID = snapshotID
			if len(suggestions) > 0 {
				existing.Suggestions = suggestions
			}
			snapshot := *existing
			m.mu.Unlock()

			m.persist(ctx, &snapshot, false)
			m.notify(websocket.EventAlertEscalated, &snapshot)
			if snapshot.Severity == models.SeverityCritical {
				m.logf("[CRITICAL ALERT] %s: %s", snapshot.Kind, snapshot.Message)
			}
			return &snapshot
		}
	}

	alert := &models.Alert{
		ID:                uuid.New().String(),
		Kind:              f.alertKind,
		Severity:          f.severity,
		Status:            models.StatusActive,
		Message:           f.message,
		SnapshotID:        snapshotID,
		AffectedEntityIDs: f.entityIDs,
		Suggestions:       suggestions,
		CreatedAt:         m.now(),
	}
	m.alerts[alert.ID] = alert
	m.open[f.ref] = alert.ID
	m.mu.Unlock()

	m.persist(ctx, alert, true)
	m.notify(websocket.EventAlertCreated, alert)
	if alert.Severity == models.SeverityCritical {
		m.logf("[CRITICAL ALERT] %s: %s", alert.Kind, alert.Message)
	}
	return alert
}

// Acknowledge moves an alert from ACTIVE to ACKNOWLEDGED. Any other
// starting state returns ErrInvalidTransition.
func (m *Manager) Acknowledge(ctx context.Context, id, operatorID string) (*models.Alert, error) {
	lock := m.stripe(id)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	alert, ok := m.alerts[id]
	if !ok {
		m.mu.Unlock()
		return nil, models.ErrAlertNotFound
	}
	if alert.Status != models.StatusActive {
		m.mu.Unlock()
		return nil, fmt.Errorf("acknowledge from %s: %w", alert.Status, models.ErrInvalidTransition)
	}
	when := m.now()
	alert.Status = models.StatusAcknowledged
	alert.AcknowledgedAt = &when
	alert.OperatorID = operatorID
	snapshot := *alert
	m.mu.Unlock()

	m.persist(ctx, &snapshot, false)
	m.notify(websocket.EventAlertAcknowledged, &snapshot)
	return &snapshot, nil
}

// Resolve closes an alert from ACTIVE or ACKNOWLEDGED. The resolution
// payload and timestamp are applied atomically with the status change.
func (m *Manager) Resolve(ctx context.Context, id string, res models.AlertResolution) (*models.Alert, error) {
	lock := m.stripe(id)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	alert, ok := m.alerts[id]
	if !ok {
		m.mu.Unlock()
		return nil, models.ErrAlertNotFound
	}
	if alert.Status != models.StatusActive && alert.Status != models.StatusAcknowledged {
		m.mu.Unlock()
		return nil, fmt.Errorf("resolve from %s: %w", alert.Status, models.ErrInvalidTransition)
	}
	when := m.now()
	alert.Status = models.StatusResolved
	alert.ResolvedAt = &when
	alert.Resolution = &res
	snapshot := *alert
	m.mu.Unlock()

	m.persist(ctx, &snapshot, false)
	m.notify(websocket.EventAlertResolved, &snapshot)
	return &snapshot, nil
}

func (m *Manager) GetByID(_ context.Context, id string) (*models.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	alert, ok := m.alerts[id]
	if !ok {
		return nil, models.ErrAlertNotFound
	}
	cp := *alert
	return &cp, nil
}

// GetActiveAlerts returns unresolved alerts passing the filter, ordered
// by severity descending then creation time descending.
func (m *Manager) GetActiveAlerts(_ context.Context, filter models.AlertFilter) []*models.Alert {
	m.mu.RLock()
	var out []*models.Alert
	for _, alert := range m.alerts {
		if alert.Status == models.StatusResolved {
			continue
		}
		if !filter.Matches(alert) {
			continue
		}
		cp := *alert
		out = append(out, &cp)
	}
	m.mu.RUnlock()

	sortAlerts(out)
	return out
}

// GetAlertHistory returns alerts of any status created within the range,
// resolved alerts included for audit, ordered like the active view.
func (m *Manager) GetAlertHistory(_ context.Context, r models.HistoryRange) []*models.Alert {
	m.mu.RLock()
	var out []*models.Alert
	for _, alert := range m.alerts {
		if !r.From.IsZero() && alert.CreatedAt.Before(r.From) {
			continue
		}
		if !r.To.IsZero() && alert.CreatedAt.After(r.To) {
			continue
		}
		cp := *alert
		out = append(out, &cp)
	}
	m.mu.RUnlock()

	sortAlerts(out)
	if r.Limit > 0 && len(out) > r.Limit {
		out = out[:r.Limit]
	}
	return out
}

func sortAlerts(alerts []*models.Alert) {
	sort.Slice(alerts, func(i, j int) bool {
		a, b := alerts[i], alerts[j]
		if ra, rb := models.SeverityRank(a.Severity), models.SeverityRank(b.Severity); ra != rb {
			return ra > rb
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func (m *Manager) persist(ctx context.Context, alert *models.Alert, create bool) {
	if m.repo == nil {
		return
	}
	var err error
	if create {
		err = m.repo.SaveAlert(ctx, alert)
	} else {
		err = m.repo.UpdateAlert(ctx, alert)
	}
	if err != nil {
		m.logf("alert %s write-through failed: %v", alert.ID, err)
	}
}

func (m *Manager) notify(event string, alert *models.Alert) {
	if m.hub != nil {
		m.hub.Broadcast(event, alert)
	}
}

func (m *Manager) logf(format string, args ...interface{}) {
	if m.log != nil {
		m.log.Warn(format, args...)
	}
}

func joinIDs(ids []string) string { return strings.Join(ids, "+") }
