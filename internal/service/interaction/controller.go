// internal/service/interaction/controller.go

package interaction

import (
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"mapnav/internal/domain/geometry"
	"mapnav/internal/domain/hierarchy"
	"mapnav/internal/domain/navigation"
	"mapnav/internal/domain/tracking"
	"mapnav/internal/service/layers"
)

// Sector overlay features carry this property; they are drawn on top of
// district boundaries and toggle selection instead of drilling.
const sectorPropertyKey = "SECTOR"

// Controller resolves pointer gestures against the rendered boundary
// layer. It holds no navigation state of its own; every click resolves
// to a navigation.Transition the caller applies.
type Controller struct {
	bounds *geometry.BoundsCache
	hover  HoverState
	log    zerolog.Logger
}

func NewController(logger zerolog.Logger) *Controller {
	return &Controller{
		bounds: geometry.NewBoundsCache(2048),
		log:    logger.With().Str("component", "interaction").Logger(),
	}
}

// Hit is the feature under a screen position.
type Hit struct {
	Feature *geojson.Feature
	Code    string
	Name    string
	Sector  string
	Allowed bool
}

// HitTest projects a screen position into the rendered layer and returns
// the containing feature. Features outside the campaign allow-list are
// reported with Allowed false so hover affordances can be suppressed.
func (c *Controller) HitTest(vp layers.Viewport, layer *geojson.FeatureCollection, level hierarchy.Level, allowed *hierarchy.CodeSet, sx, sy float64) (Hit, bool) {
	if layer == nil {
		return Hit{}, false
	}
	proj := NewProjection(vp)
	lng, lat := proj.ScreenToGeo(sx, sy)

	for _, f := range layer.Features {
		box, ok := c.bounds.FeatureBounds(f)
		if !ok || !box.Contains(lng, lat) {
			continue
		}
		if !geometry.PointInPolygon(f.Geometry, lng, lat) {
			continue
		}
		sector := ""
		if f.Properties != nil {
			sector, _ = f.Properties[sectorPropertyKey].(string)
		}
		code := hierarchy.FeatureCode(f, level)
		if code == "" && sector == "" {
			continue
		}
		return Hit{
			Feature: f,
			Code:    code,
			Name:    hierarchy.FeatureName(f, level),
			Sector:  sector,
			Allowed: allowed.Contains(code) || sector != "",
		}, true
	}
	return Hit{}, false
}

// UpdateHover refreshes the single-slot hover state from the cursor
// position. Disallowed features never become hovers.
func (c *Controller) UpdateHover(vp layers.Viewport, layer *geojson.FeatureCollection, level hierarchy.Level, allowed *hierarchy.CodeSet, sx, sy float64) (Hover, bool) {
	hit, ok := c.HitTest(vp, layer, level, allowed, sx, sy)
	if !ok || !hit.Allowed {
		c.hover.Clear()
		return Hover{}, false
	}
	h := Hover{Level: level, Code: hit.Code, Name: hit.Name}
	c.hover.Set(h)
	return h, true
}

// CurrentHover exposes the active hover affordance.
func (c *Controller) CurrentHover() (Hover, bool) { return c.hover.Current() }

// Click resolves a click at a screen position into a navigation
// transition. level is the layer the dashboard is actually showing;
// both hit-testing and transition mapping run against it. Clicking a
// boundary drills into it, clicking a sector overlay toggles it,
// clicking a disallowed feature does nothing, and clicking empty map
// walks back one level. While a navigation is still loading the
// rendered layer lags the machine; a drill on the stale layer is inert
// rather than misread as a click on the new level.
func (c *Controller) Click(vp layers.Viewport, layer *geojson.FeatureCollection, level hierarchy.Level, state navigation.State, allowed *hierarchy.CodeSet, sx, sy float64) (navigation.Transition, bool) {
	hit, ok := c.HitTest(vp, layer, level, allowed, sx, sy)
	if !ok {
		return navigation.EmptyClick(state), true
	}
	if hit.Sector != "" && state.Selection.District != "" {
		return navigation.ToggleSector{Sector: hit.Sector}, true
	}
	if !hit.Allowed {
		return nil, false
	}
	if level != state.Level {
		return nil, false
	}

	switch level {
	case hierarchy.LevelDepartment:
		return navigation.SelectDepartment{Code: hit.Code, Name: hit.Name}, true
	case hierarchy.LevelProvince:
		code := hierarchy.PadCode(hit.Code, hierarchy.ProvinceCodeWidth)
		if len(code) != hierarchy.ProvinceCodeWidth {
			c.log.Warn().Str("code", hit.Code).Msg("province feature with malformed composite code")
			return nil, false
		}
		return navigation.SelectProvince{
			DepartmentCode: code[:hierarchy.DepartmentCodeWidth],
			ProvinceCode:   code[hierarchy.DepartmentCodeWidth:],
			Name:           hit.Name,
		}, true
	case hierarchy.LevelDistrict:
		return navigation.SelectDistrict{Ubigeo: hit.Code, Name: hit.Name}, true
	}
	return nil, false
}

// BoxSelect is an in-progress rectangular selection gesture. Beginning a
// gesture saves the viewport so cancellation restores the exact view the
// user started from.
type BoxSelect struct {
	saved    layers.Viewport
	startX   float64
	startY   float64
	active   bool
}

// MinBoxGesturePixels is the drag extent below which, on both axes, the
// gesture is treated as an accidental click rather than a selection.
const MinBoxGesturePixels = 6.0

// Begin starts a box selection at a screen position.
func (b *BoxSelect) Begin(vp layers.Viewport, sx, sy float64) {
	b.saved = vp
	b.startX = sx
	b.startY = sy
	b.active = true
}

// Active reports whether a gesture is in progress.
func (b *BoxSelect) Active() bool { return b.active }

// Cancel abandons the gesture and returns the viewport to restore.
func (b *BoxSelect) Cancel() (layers.Viewport, bool) {
	if !b.active {
		return layers.Viewport{}, false
	}
	b.active = false
	return b.saved, true
}

// End completes the gesture at a screen position and returns the points
// inside the selected geographic box. A drag under MinBoxGesturePixels on
// both axes is not a gesture; the saved viewport is restored and no
// selection is made.
func (b *BoxSelect) End(sx, sy float64, points []tracking.MapPoint) (selected []tracking.MapPoint, box geometry.BBox, ok bool) {
	if !b.active {
		return nil, geometry.BBox{}, false
	}
	b.active = false

	dx := sx - b.startX
	if dx < 0 {
		dx = -dx
	}
	dy := sy - b.startY
	if dy < 0 {
		dy = -dy
	}
	if dx < MinBoxGesturePixels && dy < MinBoxGesturePixels {
		return nil, geometry.BBox{}, false
	}

	proj := NewProjection(b.saved)
	lng1, lat1 := proj.ScreenToGeo(b.startX, b.startY)
	lng2, lat2 := proj.ScreenToGeo(sx, sy)
	box = geometry.NewBBox(lng1, lat1, lng2, lat2)

	for _, p := range points {
		if box.Contains(p.Lng, p.Lat) {
			selected = append(selected, p)
		}
	}
	return selected, box, true
}
