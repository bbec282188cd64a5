// internal/engine/predictor/predictor.go

package predictor

import (
	"context"

	"RailSentinelAPI/internal/models"
)

// Port is the inference boundary the core depends on. Implementations
// must answer within the caller's context deadline and keep probability
// and confidence finite and inside [0,1]; the orchestrator discards any
// single prediction that breaks the contract and logs it.
//
// Version ties a feature contract to a model generation: a model upgrade
// that changes the feature set must bump the version string.
type Port interface {
	Version() string
	PredictCollisions(ctx context.Context, snap *models.NetworkSnapshot, horizonSeconds float64) ([]models.CollisionPrediction, error)
	DetectAnomalies(ctx context.Context, entity models.EntityState) (models.AnomalyScore, error)
}

// PairID builds the canonical id for an entity pair, smaller id first, so
// predictions for (a,b) and (b,a) collapse to one key.
func PairID(a, b string) string {
	if a < b {
		return a + ":" + b
	}
	return b + ":" + a
}
