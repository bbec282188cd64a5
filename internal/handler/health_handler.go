package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"RailSentinelAPI/internal/database"
	"RailSentinelAPI/internal/logger"
	"RailSentinelAPI/internal/mqtt"
	"RailSentinelAPI/internal/runner"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Services  struct {
		Database bool `json:"database"`
		MQTT     bool `json:"mqtt"`
		Pipeline bool `json:"pipeline"`
	} `json:"services"`
}

// staleAfter is how old the latest assessment may be before the
// pipeline itself counts as unhealthy.
const staleAfter = 30 * time.Second

type HealthHandler struct {
	db         *database.Database
	mqttClient *mqtt.Client
	runner     *runner.Runner
	log        *logger.Logger
}

func NewHealthHandler(db *database.Database, mqttClient *mqtt.Client, r *runner.Runner, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		db:         db,
		mqttClient: mqttClient,
		runner:     r,
		log:        log,
	}
}

func (h *HealthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.HandleFunc("/health/live", h.Liveness).Methods("GET")
	r.HandleFunc("/health/ready", h.Readiness).Methods("GET")
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	}

	dbErr := h.db.Health(ctx)
	response.Services.Database = (dbErr == nil)
	response.Services.MQTT = h.mqttClient.IsConnected()
	response.Services.Pipeline = h.pipelineFresh()

	if !response.Services.Database || !response.Services.MQTT || !response.Services.Pipeline {
		response.Status = "degraded"
		h.log.Warn("Health check degraded - DB: %v, MQTT: %v, Pipeline: %v",
			response.Services.Database, response.Services.MQTT, response.Services.Pipeline)
	}

	statusCode := http.StatusOK
	if response.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	respondJSON(w, statusCode, response)
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "alive",
	})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbErr := h.db.Health(ctx)
	mqttConnected := h.mqttClient.IsConnected()

	if dbErr != nil || !mqttConnected {
		h.log.Warn("Readiness check failed - DB error: %v, MQTT connected: %v", dbErr, mqttConnected)
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// pipelineFresh reports whether an assessment was produced recently.
// Before the first cycle completes the pipeline counts as fresh so the
// server does not flap during startup.
func (h *HealthHandler) pipelineFresh() bool {
	latest, err := h.runner.Latest()
	if err != nil {
		return true
	}
	return time.Since(latest.GeneratedAt) < staleAfter
}
