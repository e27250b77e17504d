// internal/server/handlers/regions.go

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"mapnav/internal/domain/hierarchy"
)

// RegionHandler serves hierarchy lookups
type RegionHandler struct {
	index *hierarchy.Index
}

// NewRegionHandler creates a new region handler
func NewRegionHandler(index *hierarchy.Index) *RegionHandler {
	return &RegionHandler{
		index: index,
	}
}

// GetCounts returns the sizes of the three hierarchy levels
func (h *RegionHandler) GetCounts(w http.ResponseWriter, r *http.Request) {
	deps, provs, dists := h.index.Counts()
	respondWithJSON(w, http.StatusOK, map[string]int{
		"departments": deps,
		"provinces":   provs,
		"districts":   dists,
	})
}

// GetRegion returns one region by its id, like dep:15 or dist:150101
func (h *RegionHandler) GetRegion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	region, ok := h.index.Region(id)
	if !ok {
		respondWithError(w, http.StatusNotFound, "Region not found", nil)
		return
	}
	respondWithJSON(w, http.StatusOK, region)
}

// GetChildren returns a region's direct children
func (h *RegionHandler) GetChildren(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	region, ok := h.index.Region(id)
	if !ok {
		respondWithError(w, http.StatusNotFound, "Region not found", nil)
		return
	}
	respondWithJSON(w, http.StatusOK, h.index.Children(region))
}

// GetDepartment looks a department up by code in any spelling
func (h *RegionHandler) GetDepartment(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	region, ok := h.index.Department(code)
	if !ok {
		respondWithError(w, http.StatusNotFound, "Department not found", nil)
		return
	}
	respondWithJSON(w, http.StatusOK, region)
}
