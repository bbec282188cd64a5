package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"RailSentinelAPI/internal/models"
)

// IAssessmentRepository archives finished risk assessments as JSONB
// documents keyed by snapshot id.
type IAssessmentRepository interface {
	SaveAssessment(ctx context.Context, a *models.RiskAssessment) error
	GetBySnapshotID(ctx context.Context, snapshotID uint64) (*models.RiskAssessment, error)
	GetRecent(ctx context.Context, limit int) ([]models.RiskAssessment, error)
	DeleteOld(ctx context.Context, olderThan time.Duration) (int64, error)
}

type AssessmentRepository struct {
	db *sql.DB
}

func NewAssessmentRepository(db *sql.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

func (r *AssessmentRepository) SaveAssessment(ctx context.Context, a *models.RiskAssessment) error {
	document, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode assessment: %w", err)
	}

	// Re-evaluating the same snapshot overwrites its archived row.
	query := `
		INSERT INTO risk_assessments (
			snapshot_id, snapshot_ts, overall_risk_score, degraded, assessment, generated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (snapshot_id) DO UPDATE SET
			overall_risk_score = EXCLUDED.overall_risk_score,
			degraded = EXCLUDED.degraded,
			assessment = EXCLUDED.assessment,
			generated_at = EXCLUDED.generated_at
	`

	_, err = r.db.ExecContext(
		ctx, query,
		a.SnapshotID,
		a.SnapshotTimestamp,
		a.OverallRiskScore,
		a.Degraded,
		document,
		a.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to archive assessment %d: %w", a.SnapshotID, err)
	}

	return nil
}

func (r *AssessmentRepository) GetBySnapshotID(ctx context.Context, snapshotID uint64) (*models.RiskAssessment, error) {
	query := `SELECT assessment FROM risk_assessments WHERE snapshot_id = $1`

	var document []byte
	err := r.db.QueryRowContext(ctx, query, snapshotID).Scan(&document)
	if err == sql.ErrNoRows {
		return nil, models.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load assessment %d: %w", snapshotID, err)
	}

	var a models.RiskAssessment
	if err := json.Unmarshal(document, &a); err != nil {
		return nil, fmt.Errorf("corrupt assessment %d: %w", snapshotID, err)
	}
	return &a, nil
}

func (r *AssessmentRepository) GetRecent(ctx context.Context, limit int) ([]models.RiskAssessment, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT assessment FROM risk_assessments
		ORDER BY generated_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent assessments: %w", err)
	}
	defer rows.Close()

	var out []models.RiskAssessment
	for rows.Next() {
		var document []byte
		if err := rows.Scan(&document); err != nil {
			return nil, fmt.Errorf("failed to scan assessment row: %w", err)
		}
		var a models.RiskAssessment
		if err := json.Unmarshal(document, &a); err != nil {
			return nil, fmt.Errorf("corrupt assessment row: %w", err)
		}
		out = append(out, a)
	}

	return out, rows.Err()
}

func (r *AssessmentRepository) DeleteOld(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `DELETE FROM risk_assessments WHERE generated_at < $1`

	result, err := r.db.ExecContext(ctx, query, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to delete old assessments: %w", err)
	}

	return result.RowsAffected()
}
