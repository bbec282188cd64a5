package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"RailSentinelAPI/internal/alerting"
	"RailSentinelAPI/internal/logger"
	"RailSentinelAPI/internal/models"
)

type AlertHandler struct {
	alerts alerting.IAlertManager
	log    *logger.Logger
}

func NewAlertHandler(alerts alerting.IAlertManager, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		alerts: alerts,
		log:    log,
	}
}

func (h *AlertHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/alerts/active", h.GetActive).Methods("GET")
	r.HandleFunc("/alerts/history", h.GetHistory).Methods("GET")
	r.HandleFunc("/alerts/{id}", h.GetByID).Methods("GET")
	r.HandleFunc("/alerts/{id}/acknowledge", h.Acknowledge).Methods("POST")
	r.HandleFunc("/alerts/{id}/resolve", h.Resolve).Methods("POST")
}

// GetActive returns unresolved alerts, optionally narrowed by
// ?kind=, ?severity= and ?entity_id=.
func (h *AlertHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	filter := models.AlertFilter{
		Kind:     r.URL.Query().Get("kind"),
		Severity: r.URL.Query().Get("severity"),
		EntityID: r.URL.Query().Get("entity_id"),
	}

	alerts := h.alerts.GetActiveAlerts(r.Context(), filter)
	respondJSON(w, http.StatusOK, alerts)
}

// GetHistory returns alerts of any status within ?from= / ?to=
// (RFC 3339), newest first, capped by ?limit=.
func (h *AlertHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	var hr models.HistoryRange

	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid 'from' timestamp, want RFC 3339")
			return
		}
		hr.From = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid 'to' timestamp, want RFC 3339")
			return
		}
		hr.To = t
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "invalid 'limit', want positive integer")
			return
		}
		hr.Limit = n
	} else {
		hr.Limit = 100
	}

	alerts := h.alerts.GetAlertHistory(r.Context(), hr)
	respondJSON(w, http.StatusOK, alerts)
}

func (h *AlertHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	alert, err := h.alerts.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, alert)
}

func (h *AlertHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req models.AcknowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OperatorID == "" {
		respondError(w, http.StatusBadRequest, "operator_id is required")
		return
	}

	alert, err := h.alerts.Acknowledge(r.Context(), id, req.OperatorID)
	if err != nil {
		h.log.Warn("Acknowledge of alert %s failed: %v", id, err)
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, alert)
}

func (h *AlertHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req models.ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ResolvedBy == "" {
		respondError(w, http.StatusBadRequest, "resolved_by is required")
		return
	}

	alert, err := h.alerts.Resolve(r.Context(), id, models.AlertResolution{
		ResolvedBy: req.ResolvedBy,
		Note:       req.Note,
		Actions:    req.Actions,
	})
	if err != nil {
		h.log.Warn("Resolve of alert %s failed: %v", id, err)
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, alert)
}
