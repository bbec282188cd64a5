// internal/engine/predictor/kinematic.go

package predictor

import (
	"context"
	"math"
	"sort"
	"time"

	"RailSentinelAPI/internal/models"
)

const (
	// Logistic curve parameters mapping time-to-collision onto a
	// probability. At ttcMidpointS the probability is 0.5; steepnessS
	// controls how fast it saturates on either side.
	ttcMidpointS = 240.0
	steepnessS   = 40.0

	// staleAfter is the reporting silence beyond which an entity's
	// telemetry is considered unreliable.
	staleAfter = 60 * time.Second
)

// KinematicPredictor is the default Port implementation: a deterministic
// closing-speed model over pairs sharing or adjoining a segment. It lets
// the service run end to end without an external model and doubles as the
// reference implementation of the inference contract.
type KinematicPredictor struct{}

func NewKinematicPredictor() *KinematicPredictor { return &KinematicPredictor{} }

func (p *KinematicPredictor) Version() string { return "kinematic/v1" }

// PredictCollisions scores every entity pair in track-geometry proximity:
// same segment, or adjacent segments sharing a junction. Output is sorted
// by pair id for reproducibility.
func (p *KinematicPredictor) PredictCollisions(ctx context.Context, snap *models.NetworkSnapshot, horizonSeconds float64) ([]models.CollisionPrediction, error) {
	if horizonSeconds <= 0 {
		horizonSeconds = 300
	}

	entities := make([]models.EntityState, len(snap.Entities))
	copy(entities, snap.Entities)
	sort.Slice(entities, func(i, j int) bool { return entities[i].EntityID < entities[j].EntityID })

	var predictions []models.CollisionPrediction
	for i := 0; i < len(entities); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for j := i + 1; j < len(entities); j++ {
			a, b := entities[i], entities[j]
			features, ok := pairFeatures(snap, a, b)
			if !ok {
				continue
			}

			ttc := timeToCollision(features)
			prob := collisionProbability(ttc, horizonSeconds)
			if prob <= 0 {
				continue
			}

			predictions = append(predictions, models.CollisionPrediction{
				EntityPairID:           PairID(a.EntityID, b.EntityID),
				EntityIDs:              []string{a.EntityID, b.EntityID},
				Probability:            prob,
				Confidence:             pairConfidence(features),
				TimeHorizonSeconds:     horizonSeconds,
				TimeToCollisionSeconds: ttc,
				Features:               features,
			})
		}
	}

	sort.Slice(predictions, func(i, j int) bool {
		return predictions[i].EntityPairID < predictions[j].EntityPairID
	})
	return predictions, nil
}

// DetectAnomalies grades one entity on reporting health and kinematic
// consistency.
func (p *KinematicPredictor) DetectAnomalies(_ context.Context, entity models.EntityState) (models.AnomalyScore, error) {
	score := models.AnomalyScore{EntityID: entity.EntityID, Score: 0.05, Confidence: 0.9, Reason: "nominal"}

	switch {
	case entity.Status == models.EntityConnectionLost:
		score.Score, score.Confidence = 0.9, 0.8
		score.Reason = "connection lost"
	case entity.Status == models.EntityStopped && entity.SpeedKmh > 5:
		score.Score, score.Confidence = 0.7, 0.85
		score.Reason = "moving while reported stopped"
	case !entity.LastUpdateAt.IsZero() && time.Since(entity.LastUpdateAt) > staleAfter:
		score.Score, score.Confidence = 0.6, 0.7
		score.Reason = "stale telemetry"
	}

	return score, nil
}

// pairFeatures extracts the contract feature vector for a pair, or
// reports false when the pair is not in proximity.
func pairFeatures(snap *models.NetworkSnapshot, a, b models.EntityState) (models.PairFeatures, bool) {
	shared := a.SegmentID == b.SegmentID && a.SegmentID != ""
	adjacent := !shared && snap.Topology.AdjacentSegments(a.SegmentID, b.SegmentID)
	if !shared && !adjacent {
		return models.PairFeatures{}, false
	}

	var distance float64
	if shared {
		distance = math.Abs(a.PositionM - b.PositionM)
	} else {
		segA, _ := snap.Segment(a.SegmentID)
		distance = (segA.LengthM - a.PositionM) + b.PositionM
		if distance < 0 {
			distance = 0
		}
	}

	angle := math.Abs(a.HeadingDeg - b.HeadingDeg)
	if angle > 180 {
		angle = 360 - angle
	}

	var relative float64
	if angle > 90 {
		// Opposing headings close at the combined speed.
		relative = a.SpeedKmh + b.SpeedKmh
	} else {
		relative = math.Abs(a.SpeedKmh - b.SpeedKmh)
	}

	return models.PairFeatures{
		DistanceM:           distance,
		RelativeSpeedKmh:    relative,
		ConvergenceAngleDeg: angle,
		SharedSegment:       shared,
		AdjacentSegment:     adjacent,
	}, true
}

// timeToCollision returns seconds until the gap closes at the current
// relative speed, or +Inf when the pair is not closing.
func timeToCollision(f models.PairFeatures) float64 {
	if f.RelativeSpeedKmh <= 0 {
		return math.Inf(1)
	}
	closingMS := f.RelativeSpeedKmh / 3.6
	return f.DistanceM / closingMS
}

// collisionProbability maps time-to-collision onto [0,1] with a logistic
// curve: short TTC saturates towards 1, TTC beyond the horizon decays
// towards 0. Pairs that are not closing score zero.
func collisionProbability(ttcSeconds, horizonSeconds float64) float64 {
	if math.IsInf(ttcSeconds, 1) || ttcSeconds > horizonSeconds*2 {
		return 0
	}
	p := 1 / (1 + math.Exp((ttcSeconds-ttcMidpointS)/steepnessS))
	return models.ClampUnit(p)
}

func pairConfidence(f models.PairFeatures) float64 {
	if f.SharedSegment {
		return 0.9
	}
	return 0.6
}
