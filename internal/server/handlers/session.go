// internal/server/handlers/session.go

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"mapnav/internal/domain/navigation"
	"mapnav/internal/service/layers"
	"mapnav/internal/service/session"
)

// SessionHandler handles dashboard session HTTP requests
type SessionHandler struct {
	manager *session.Manager
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(manager *session.Manager) *SessionHandler {
	return &SessionHandler{
		manager: manager,
	}
}

// sessionView is the wire representation of a session
type sessionView struct {
	ID       string           `json:"id"`
	State    navigation.State `json:"state"`
	Rendered string           `json:"rendered"`
	Viewport layers.Viewport  `json:"viewport"`
}

func viewOf(s *session.Session) sessionView {
	return sessionView{
		ID:       s.ID.String(),
		State:    s.State(),
		Rendered: string(s.Rendered()),
		Viewport: s.Viewport(),
	}
}

func (h *SessionHandler) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid session ID", err)
		return nil, false
	}
	s, ok := h.manager.Get(id)
	if !ok {
		respondWithError(w, http.StatusNotFound, "Session not found", nil)
		return nil, false
	}
	s.Touch()
	return s, true
}

// CreateSession opens a new dashboard session
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.manager.Create(r.Context())
	respondWithJSON(w, http.StatusCreated, viewOf(s))
}

// GetSession returns a session's current state
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, viewOf(s))
}

// DeleteSession closes a session
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid session ID", err)
		return
	}
	h.manager.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}

// clickRequest is a pointer gesture at a screen position
type clickRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Click resolves a click gesture
func (h *SessionHandler) Click(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req clickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := s.Click(r.Context(), req.X, req.Y); err != nil {
		if errors.Is(err, navigation.ErrInvalidTransition) {
			respondWithError(w, http.StatusConflict, "Transition not valid for current level", err)
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to resolve click", err)
		return
	}
	respondWithJSON(w, http.StatusOK, viewOf(s))
}

// Hover updates the hover affordance
func (h *SessionHandler) Hover(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req clickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	hover, active := s.Hover(req.X, req.Y)
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"active": active,
		"hover":  hover,
	})
}

// transitionRequest is an explicit navigation transition, used by the
// breadcrumb bar and deep links
type transitionRequest struct {
	Type           string `json:"type"`
	Code           string `json:"code,omitempty"`
	DepartmentCode string `json:"departmentCode,omitempty"`
	ProvinceCode   string `json:"provinceCode,omitempty"`
	Ubigeo         string `json:"ubigeo,omitempty"`
	Sector         string `json:"sector,omitempty"`
	Name           string `json:"name,omitempty"`
	Depth          *int   `json:"depth,omitempty"`
}

// ApplyTransition applies an explicit navigation transition
func (h *SessionHandler) ApplyTransition(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var err error
	switch req.Type {
	case "select_department":
		err = s.Apply(r.Context(), navigation.SelectDepartment{Code: req.Code, Name: req.Name})
	case "select_province":
		err = s.Apply(r.Context(), navigation.SelectProvince{
			DepartmentCode: req.DepartmentCode,
			ProvinceCode:   req.ProvinceCode,
			Name:           req.Name,
		})
	case "select_district":
		err = s.Apply(r.Context(), navigation.SelectDistrict{Ubigeo: req.Ubigeo, Name: req.Name})
	case "toggle_sector":
		err = s.Apply(r.Context(), navigation.ToggleSector{Sector: req.Sector})
	case "go_back":
		err = s.Apply(r.Context(), navigation.GoBack{})
	case "reset":
		err = s.Apply(r.Context(), navigation.Reset{})
	case "breadcrumb":
		if req.Depth == nil {
			respondWithError(w, http.StatusBadRequest, "Breadcrumb transition requires depth", nil)
			return
		}
		err = s.WalkBreadcrumb(r.Context(), *req.Depth)
	default:
		respondWithError(w, http.StatusBadRequest, "Unknown transition type", nil)
		return
	}
	if err != nil {
		if errors.Is(err, navigation.ErrInvalidTransition) {
			respondWithError(w, http.StatusConflict, "Transition not valid for current level", err)
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to apply transition", err)
		return
	}
	respondWithJSON(w, http.StatusOK, viewOf(s))
}

// SetViewport applies a pan or zoom from the dashboard
func (h *SessionHandler) SetViewport(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var vp layers.Viewport
	if err := json.NewDecoder(r.Body).Decode(&vp); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid viewport", err)
		return
	}
	s.SetViewport(vp)
	respondWithJSON(w, http.StatusOK, viewOf(s))
}

// boxSelectRequest is a completed rectangular selection gesture
type boxSelectRequest struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// BoxSelect runs a rectangular selection over the live points
func (h *SessionHandler) BoxSelect(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req boxSelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	s.BeginBoxSelect(req.X1, req.Y1)
	selected, box, gestured := s.EndBoxSelect(req.X2, req.Y2)
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"selected": gestured,
		"bbox":     box,
		"points":   selected,
	})
}

// Highlight returns the highlight set of the rendered layer
func (h *SessionHandler) Highlight(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	res := s.Highlight()
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"level": res.Level,
		"codes": res.Codes,
	})
}
