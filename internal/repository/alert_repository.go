package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"RailSentinelAPI/internal/models"
)

// IAlertRepository is the archive boundary for alerts. The alert manager
// holds the authoritative in-memory set; this repository is a
// best-effort write-through for audit and restarts.
type IAlertRepository interface {
	SaveAlert(ctx context.Context, alert *models.Alert) error
	UpdateAlert(ctx context.Context, alert *models.Alert) error
	GetByID(ctx context.Context, id string) (*models.Alert, error)
	GetHistory(ctx context.Context, from, to time.Time, limit int) ([]models.Alert, error)
	DeleteOld(ctx context.Context, olderThan time.Duration) (int64, error)
}

type AlertRepository struct {
	db *sql.DB
}

func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

func (r *AlertRepository) SaveAlert(ctx context.Context, alert *models.Alert) error {
	entityIDs, err := json.Marshal(alert.AffectedEntityIDs)
	if err != nil {
		return fmt.Errorf("failed to encode entity ids: %w", err)
	}
	suggestions, err := json.Marshal(alert.Suggestions)
	if err != nil {
		return fmt.Errorf("failed to encode suggestions: %w", err)
	}

	query := `
		INSERT INTO alerts (
			id, kind, severity, status, message, snapshot_id,
			affected_entity_ids, suggestions, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.ExecContext(
		ctx, query,
		alert.ID,
		alert.Kind,
		alert.Severity,
		alert.Status,
		alert.Message,
		alert.SnapshotID,
		entityIDs,
		suggestions,
		alert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}

	return nil
}

func (r *AlertRepository) UpdateAlert(ctx context.Context, alert *models.Alert) error {
	var resolution []byte
	if alert.Resolution != nil {
		var err error
		resolution, err = json.Marshal(alert.Resolution)
		if err != nil {
			return fmt.Errorf("failed to encode resolution: %w", err)
		}
	}
	suggestions, err := json.Marshal(alert.Suggestions)
	if err != nil {
		return fmt.Errorf("failed to encode suggestions: %w", err)
	}

	// Severity, message and suggestions are written too so an escalated
	// alert keeps its audit row in step with the in-memory state.
	query := `
		UPDATE alerts SET
			severity = $2,
			status = $3,
			message = $4,
			snapshot_id = $5,
			suggestions = $6,
			operator_id = $7,
			acknowledged_at = $8,
			resolved_at = $9,
			resolution = $10
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx, query,
		alert.ID,
		alert.Severity,
		alert.Status,
		alert.Message,
		alert.SnapshotID,
		suggestions,
		nullString(alert.OperatorID),
		alert.AcknowledgedAt,
		alert.ResolvedAt,
		resolution,
	)
	if err != nil {
		return fmt.Errorf("failed to update alert %s: %w", alert.ID, err)
	}

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return models.ErrAlertNotFound
	}

	return nil
}

func (r *AlertRepository) GetByID(ctx context.Context, id string) (*models.Alert, error) {
	query := `
		SELECT id, kind, severity, status, message, snapshot_id,
		       affected_entity_ids, suggestions, resolution, operator_id,
		       created_at, acknowledged_at, resolved_at
		FROM alerts
		WHERE id = $1
	`

	alert, err := scanAlert(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, models.ErrAlertNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load alert %s: %w", id, err)
	}
	return alert, nil
}

func (r *AlertRepository) GetHistory(ctx context.Context, from, to time.Time, limit int) ([]models.Alert, error) {
	if limit <= 0 {
		limit = 100
	}
	if to.IsZero() {
		to = time.Now()
	}

	query := `
		SELECT id, kind, severity, status, message, snapshot_id,
		       affected_entity_ids, suggestions, resolution, operator_id,
		       created_at, acknowledged_at, resolved_at
		FROM alerts
		WHERE created_at >= $1 AND created_at <= $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert history: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert row: %w", err)
		}
		alerts = append(alerts, *alert)
	}

	return alerts, rows.Err()
}

func (r *AlertRepository) DeleteOld(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `DELETE FROM alerts WHERE status = $1 AND created_at < $2`

	result, err := r.db.ExecContext(ctx, query, models.StatusResolved, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to delete old alerts: %w", err)
	}

	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAlert(row rowScanner) (*models.Alert, error) {
	var (
		alert       models.Alert
		entityIDs   []byte
		suggestions []byte
		resolution  []byte
		operatorID  sql.NullString
	)

	err := row.Scan(
		&alert.ID,
		&alert.Kind,
		&alert.Severity,
		&alert.Status,
		&alert.Message,
		&alert.SnapshotID,
		&entityIDs,
		&suggestions,
		&resolution,
		&operatorID,
		&alert.CreatedAt,
		&alert.AcknowledgedAt,
		&alert.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(entityIDs, &alert.AffectedEntityIDs); err != nil {
		return nil, fmt.Errorf("corrupt entity ids for alert %s: %w", alert.ID, err)
	}
	if err := json.Unmarshal(suggestions, &alert.Suggestions); err != nil {
		return nil, fmt.Errorf("corrupt suggestions for alert %s: %w", alert.ID, err)
	}
	if len(resolution) > 0 {
		alert.Resolution = &models.AlertResolution{}
		if err := json.Unmarshal(resolution, alert.Resolution); err != nil {
			return nil, fmt.Errorf("corrupt resolution for alert %s: %w", alert.ID, err)
		}
	}
	alert.OperatorID = operatorID.String

	return &alert, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
