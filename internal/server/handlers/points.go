// internal/server/handlers/points.go

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"mapnav/internal/service/telemetry"
)

// PointHandler serves the live point population
type PointHandler struct {
	hub *telemetry.Hub
}

// NewPointHandler creates a new point handler
func NewPointHandler(hub *telemetry.Hub) *PointHandler {
	return &PointHandler{
		hub: hub,
	}
}

// GetPoints returns the current map point snapshot
func (h *PointHandler) GetPoints(w http.ResponseWriter, r *http.Request) {
	points, revision := h.hub.Snapshot()
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"points":   points,
		"revision": revision,
	})
}

// GetRecord returns the full classified record for one interviewer
func (h *PointHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	record, ok := h.hub.Record(key)
	if !ok {
		respondWithError(w, http.StatusNotFound, "Interviewer not found", nil)
		return
	}
	respondWithJSON(w, http.StatusOK, record)
}
