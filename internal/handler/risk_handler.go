package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"RailSentinelAPI/internal/engine/predictor"
	"RailSentinelAPI/internal/ingest"
	"RailSentinelAPI/internal/logger"
	"RailSentinelAPI/internal/models"
	"RailSentinelAPI/internal/repository"
	"RailSentinelAPI/internal/runner"
)

type RiskHandler struct {
	runner    *runner.Runner
	port      predictor.Port
	assembler *ingest.Assembler
	archive   repository.IAssessmentRepository
	log       *logger.Logger
}

func NewRiskHandler(r *runner.Runner, port predictor.Port, assembler *ingest.Assembler, archive repository.IAssessmentRepository, log *logger.Logger) *RiskHandler {
	return &RiskHandler{
		runner:    r,
		port:      port,
		assembler: assembler,
		archive:   archive,
		log:       log,
	}
}

func (h *RiskHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/risk/latest", h.GetLatest).Methods("GET")
	r.HandleFunc("/risk/last-good", h.GetLastGood).Methods("GET")
	r.HandleFunc("/risk/history", h.GetHistory).Methods("GET")
	r.HandleFunc("/risk/history/{snapshot_id}", h.GetBySnapshotID).Methods("GET")
	r.HandleFunc("/risk/congestion", h.GetCongestion).Methods("GET")
	r.HandleFunc("/entities/{id}/anomaly", h.GetEntityAnomaly).Methods("GET")
}

// GetLatest returns the newest assessment, degraded or not.
func (h *RiskHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	assessment, err := h.runner.Latest()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, assessment)
}

// GetLastGood returns the newest non-degraded assessment.
func (h *RiskHandler) GetLastGood(w http.ResponseWriter, r *http.Request) {
	assessment, err := h.runner.LastGood()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, assessment)
}

// GetHistory returns archived assessments, newest first.
func (h *RiskHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "invalid 'limit', want positive integer")
			return
		}
		limit = n
	}

	assessments, err := h.archive.GetRecent(r.Context(), limit)
	if err != nil {
		h.log.Error("Assessment history query failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load assessment history")
		return
	}
	respondJSON(w, http.StatusOK, assessments)
}

// GetBySnapshotID returns one archived assessment by its snapshot id.
func (h *RiskHandler) GetBySnapshotID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["snapshot_id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid snapshot id")
		return
	}

	assessment, err := h.archive.GetBySnapshotID(r.Context(), id)
	if errors.Is(err, models.ErrNoSnapshot) {
		respondError(w, http.StatusNotFound, "no assessment archived for that snapshot")
		return
	}
	if err != nil {
		h.log.Error("Assessment lookup for snapshot %d failed: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to load assessment")
		return
	}
	respondJSON(w, http.StatusOK, assessment)
}

// GetCongestion returns the per-segment congestion view of the latest
// assessment, including forecast trends.
func (h *RiskHandler) GetCongestion(w http.ResponseWriter, r *http.Request) {
	assessment, err := h.runner.Latest()
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"snapshot_id": assessment.SnapshotID,
		"congestion":  assessment.Congestion,
		"trends":      assessment.CongestionTrends,
	})
}

// GetEntityAnomaly scores one entity's current behaviour.
func (h *RiskHandler) GetEntityAnomaly(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	entity, ok := h.assembler.CurrentEntity(id)
	if !ok {
		respondError(w, http.StatusNotFound, "unknown entity "+id)
		return
	}

	score, err := h.port.DetectAnomalies(r.Context(), entity)
	if err != nil {
		h.log.Error("Anomaly detection for %s failed: %v", id, err)
		respondError(w, http.StatusInternalServerError, "anomaly detection failed")
		return
	}

	respondJSON(w, http.StatusOK, score)
}
