package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"RailSentinelAPI/internal/logger"
	"RailSentinelAPI/internal/models"
)

// TopologyHandler serves the static track network loaded at startup.
type TopologyHandler struct {
	topology models.RouteTopology
	log      *logger.Logger
}

func NewTopologyHandler(topology models.RouteTopology, log *logger.Logger) *TopologyHandler {
	return &TopologyHandler{
		topology: topology,
		log:      log,
	}
}

func (h *TopologyHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/topology", h.GetTopology).Methods("GET")
	r.HandleFunc("/topology/segments/{id}", h.GetSegment).Methods("GET")
	r.HandleFunc("/topology/routes/{id}", h.GetRoute).Methods("GET")
}

func (h *TopologyHandler) GetTopology(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.topology)
}

func (h *TopologyHandler) GetSegment(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	segment, ok := h.topology.Segments[id]
	if !ok {
		respondError(w, http.StatusNotFound, "unknown segment "+id)
		return
	}

	respondJSON(w, http.StatusOK, segment)
}

func (h *TopologyHandler) GetRoute(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	route, ok := h.topology.Routes[id]
	if !ok {
		respondError(w, http.StatusNotFound, "unknown route "+id)
		return
	}

	respondJSON(w, http.StatusOK, route)
}
