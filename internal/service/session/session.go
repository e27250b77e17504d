// internal/service/session/session.go

// Package session owns one dashboard's view of the engine: its
// navigation state, rendered layer, highlight set and in-flight
// gestures. Sessions are independent; two dashboards never share
// navigation state.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"mapnav/internal/domain/geometry"
	"mapnav/internal/domain/hierarchy"
	"mapnav/internal/domain/navigation"
	"mapnav/internal/domain/tracking"
	"mapnav/internal/metrics"
	"mapnav/internal/service/highlight"
	"mapnav/internal/service/interaction"
	"mapnav/internal/service/layers"
	"mapnav/internal/service/telemetry"
)

// EventType names the events pushed to a session's dashboard.
type EventType string

const (
	EventNavigation  EventType = "navigation"
	EventLayerStatus EventType = "layer_status"
	EventHighlight   EventType = "highlight"
	EventViewport    EventType = "viewport"
	EventBoxSelect   EventType = "box_select"
)

// Event is one dashboard push message.
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload"`
}

// NavigationPayload is the navigation event body.
type NavigationPayload struct {
	State    navigation.State `json:"state"`
	Rendered hierarchy.Level  `json:"rendered"`
}

// LayerStatusPayload is the layer status event body.
type LayerStatusPayload struct {
	Level  hierarchy.Level    `json:"level"`
	Status layers.LayerStatus `json:"status"`
}

// BoxSelectPayload is the box selection event body. Gesture is false
// when the drag was below the minimum extent and nothing was selected.
type BoxSelectPayload struct {
	Points  []tracking.MapPoint `json:"points"`
	BBox    geometry.BBox       `json:"bbox"`
	Gesture bool                `json:"gesture"`
}

// HighlightPayload is the highlight event body.
type HighlightPayload struct {
	Level    hierarchy.Level      `json:"level"`
	Codes    map[string]int       `json:"codes"`
	Points   []tracking.MapPoint  `json:"points"`
	Revision uint64               `json:"revision"`
}

// Session is one dashboard's engine state.
type Session struct {
	ID        uuid.UUID
	CreatedAt time.Time

	resolver   *layers.Resolver
	engine     *highlight.Engine
	controller *interaction.Controller
	hub        *telemetry.Hub
	index      *hierarchy.Index
	allowed    *hierarchy.CodeSet
	metrics    *metrics.Metrics
	log        zerolog.Logger

	mu       sync.Mutex
	nav      navigation.State
	viewport layers.Viewport
	box      interaction.BoxSelect
	lastSeen time.Time
	onEvent  func(Event)
	closed   bool
}

// Deps are the shared services a session builds on. Hub and metrics may
// be nil.
type Deps struct {
	Source   layers.LayerSource
	Tiles    layers.TileChecker
	Hub      *telemetry.Hub
	Index    *hierarchy.Index
	Allowed  *hierarchy.CodeSet
	Resolver layers.Config
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
}

// New creates a session at the root state, viewing the whole country.
func New(deps Deps) *Session {
	id := uuid.New()
	log := deps.Logger.With().Str("session", id.String()).Logger()
	rcfg := deps.Resolver
	if rcfg.Metrics == nil {
		rcfg.Metrics = deps.Metrics
	}
	s := &Session{
		ID:         id,
		CreatedAt:  time.Now(),
		resolver:   layers.NewResolver(deps.Source, deps.Tiles, rcfg, log),
		engine:     highlight.NewEngine(0, log),
		controller: interaction.NewController(log),
		hub:        deps.Hub,
		index:      deps.Index,
		allowed:    deps.Allowed,
		metrics:    deps.Metrics,
		log:        log,
		nav:        navigation.Initial(),
		lastSeen:   time.Now(),
	}

	width, height := 1280, 800
	if deps.Index != nil {
		minZ, maxZ := layers.ZoomBand(hierarchy.LevelDepartment)
		s.viewport = interaction.FitViewport(deps.Index.Bounds(), width, height, minZ, maxZ)
	} else {
		s.viewport = layers.Viewport{CenterLng: -75.0, CenterLat: -9.2, Zoom: 5, Width: width, Height: height}
	}

	s.resolver.OnRendered(func(level hierarchy.Level, data *layers.LayerData) {
		s.emitNavigation()
		s.emitHighlight()
	})
	s.resolver.OnStatus(func(level hierarchy.Level, status layers.LayerStatus) {
		s.emit(Event{Type: EventLayerStatus, Payload: LayerStatusPayload{Level: level, Status: status}})
	})
	return s
}

// OnEvent registers the dashboard push callback. Must be set before the
// first interaction.
func (s *Session) OnEvent(fn func(Event)) {
	s.mu.Lock()
	s.onEvent = fn
	s.mu.Unlock()
}

// Touch refreshes the idle timer.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// IdleSince returns the last activity time.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// State returns the current navigation state.
func (s *Session) State() navigation.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav
}

// Viewport returns the current viewport.
func (s *Session) Viewport() layers.Viewport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewport
}

// SetViewport applies a dashboard pan or zoom.
func (s *Session) SetViewport(vp layers.Viewport) {
	s.mu.Lock()
	s.viewport = vp
	s.mu.Unlock()
	s.Touch()
}

// Start kicks off the initial department-level prefetch.
func (s *Session) Start(ctx context.Context) {
	s.resolver.Navigate(ctx, hierarchy.LevelDepartment, s.Viewport())
}

// Click resolves a click gesture, applies the resulting transition and
// navigates. Inert clicks, like one on a disallowed region, change
// nothing.
func (s *Session) Click(ctx context.Context, sx, sy float64) error {
	s.Touch()
	layer := s.renderedCollection()
	state := s.State()

	tr, ok := s.controller.Click(s.Viewport(), layer, s.resolver.Rendered(), state, s.allowed, sx, sy)
	if !ok {
		return nil
	}
	return s.Apply(ctx, tr)
}

// Apply applies a navigation transition directly, as the breadcrumb
// endpoints do, and triggers the resulting layer navigation.
func (s *Session) Apply(ctx context.Context, tr navigation.Transition) error {
	state := s.State()
	next, err := navigation.Apply(state, tr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.nav = next
	s.mu.Unlock()

	// Sector toggles change the overlay only; the layer and viewport
	// stay put.
	moved := next.Level != state.Level ||
		next.Selection.Department != state.Selection.Department ||
		next.Selection.Province != state.Selection.Province ||
		next.Selection.District != state.Selection.District
	if moved {
		vp := s.fitToSelection(next)
		s.resolver.Navigate(ctx, next.Level, vp)
	}
	s.emitNavigation()
	return nil
}

// WalkBreadcrumb jumps to a breadcrumb depth: 0 is the root, 1 the
// selected department, and so on. Implemented as repeated GoBack so the
// trail stays the single source of truth.
func (s *Session) WalkBreadcrumb(ctx context.Context, depth int) error {
	for s.State().Depth() > depth {
		if err := s.Apply(ctx, navigation.GoBack{}); err != nil {
			return err
		}
	}
	return nil
}

// Hover refreshes the hover affordance from the cursor position.
func (s *Session) Hover(sx, sy float64) (interaction.Hover, bool) {
	s.Touch()
	layer := s.renderedCollection()
	return s.controller.UpdateHover(s.Viewport(), layer, s.resolver.Rendered(), s.allowed, sx, sy)
}

// BeginBoxSelect starts a rectangular selection gesture.
func (s *Session) BeginBoxSelect(sx, sy float64) {
	s.Touch()
	s.mu.Lock()
	s.box.Begin(s.viewport, sx, sy)
	s.mu.Unlock()
}

// EndBoxSelect completes the gesture, pushes the selection to the
// dashboard and returns the points inside the box. A sub-threshold drag
// restores the saved viewport and selects nothing.
func (s *Session) EndBoxSelect(sx, sy float64) ([]tracking.MapPoint, geometry.BBox, bool) {
	s.Touch()
	var points []tracking.MapPoint
	if s.hub != nil {
		points, _ = s.hub.Snapshot()
	}
	s.mu.Lock()
	saved := s.box
	sel, bbox, gestured := s.box.End(sx, sy, points)
	if !gestured && saved.Active() {
		// Restore the exact pre-gesture view.
		if vp, ok := saved.Cancel(); ok {
			s.viewport = vp
		}
	}
	s.mu.Unlock()

	s.emit(Event{Type: EventBoxSelect, Payload: BoxSelectPayload{
		Points:  sel,
		BBox:    bbox,
		Gesture: gestured,
	}})
	return sel, bbox, gestured
}

// CancelBoxSelect abandons the gesture and restores the saved viewport.
func (s *Session) CancelBoxSelect() {
	s.Touch()
	s.mu.Lock()
	if vp, ok := s.box.Cancel(); ok {
		s.viewport = vp
	}
	s.mu.Unlock()
}

// Highlight computes the highlight set for the rendered layer against
// the current point snapshot. Memoized between point and layer changes.
func (s *Session) Highlight() *highlight.Result {
	var points []tracking.MapPoint
	var rev uint64
	if s.hub != nil {
		points, rev = s.hub.Snapshot()
	}
	level := s.resolver.Rendered()
	layer := s.renderedCollection()

	res, recomputed := s.engine.Compute(level, rev, layer, points)
	if recomputed {
		s.metrics.IncHighlightRecompute()
	}
	return res
}

// Close cancels the session's background work.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.resolver.Close()
}

// Rendered exposes the rendered level for handlers.
func (s *Session) Rendered() hierarchy.Level { return s.resolver.Rendered() }

func (s *Session) renderedCollection() *geojson.FeatureCollection {
	data, ok := s.resolver.RenderedLayer()
	if !ok || data == nil {
		return nil
	}
	return data.Collection
}

// fitToSelection returns a viewport framing the selected region, or the
// whole country at the root.
func (s *Session) fitToSelection(state navigation.State) layers.Viewport {
	s.mu.Lock()
	width, height := s.viewport.Width, s.viewport.Height
	s.mu.Unlock()

	box, ok := s.selectionBounds(state)
	if !ok {
		s.mu.Lock()
		vp := s.viewport
		s.mu.Unlock()
		return vp
	}

	minZ, maxZ := layers.ZoomBand(state.Level)
	vp := interaction.FitViewport(box, width, height, minZ, maxZ)
	s.mu.Lock()
	s.viewport = vp
	s.mu.Unlock()
	s.emit(Event{Type: EventViewport, Payload: vp})
	return vp
}

func (s *Session) selectionBounds(state navigation.State) (geometry.BBox, bool) {
	if s.index == nil {
		return geometry.BBox{}, false
	}
	sel := state.Selection
	switch {
	case sel.District != "":
		if r, ok := s.index.District(sel.District); ok {
			return r.BBox, true
		}
	case len(sel.Province) == hierarchy.ProvinceCodeWidth:
		if r, ok := s.index.Province(sel.Province[:hierarchy.DepartmentCodeWidth], sel.Province[hierarchy.DepartmentCodeWidth:]); ok {
			return r.BBox, true
		}
	case sel.Department != "":
		if r, ok := s.index.Department(sel.Department); ok {
			return r.BBox, true
		}
	}
	if state.AtRoot() {
		return s.index.Bounds(), true
	}
	return geometry.BBox{}, false
}

func (s *Session) emitNavigation() {
	s.emit(Event{Type: EventNavigation, Payload: NavigationPayload{
		State:    s.State(),
		Rendered: s.resolver.Rendered(),
	}})
}

func (s *Session) emitHighlight() {
	var points []tracking.MapPoint
	var rev uint64
	if s.hub != nil {
		points, rev = s.hub.Snapshot()
	}
	res := s.Highlight()
	s.emit(Event{Type: EventHighlight, Payload: HighlightPayload{
		Level:    res.Level,
		Codes:    res.Codes,
		Points:   points,
		Revision: rev,
	}})
}

func (s *Session) emit(ev Event) {
	s.mu.Lock()
	fn := s.onEvent
	s.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}
