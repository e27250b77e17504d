package interaction

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapnav/internal/domain/geometry"
	"mapnav/internal/domain/hierarchy"
	"mapnav/internal/domain/navigation"
	"mapnav/internal/domain/tracking"
	"mapnav/internal/service/layers"
)

func testViewport() layers.Viewport {
	return layers.Viewport{CenterLng: -77.03, CenterLat: -12.05, Zoom: 6, Width: 800, Height: 600}
}

func boundaryFeature(props geojson.Properties, minLng, minLat, maxLng, maxLat float64) *geojson.Feature {
	ring := orb.Ring{
		{minLng, minLat}, {maxLng, minLat}, {maxLng, maxLat}, {minLng, maxLat}, {minLng, minLat},
	}
	f := geojson.NewFeature(orb.Polygon{ring})
	f.Properties = props
	return f
}

func departmentLayer() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Append(boundaryFeature(geojson.Properties{"CCDD": "15", "NOMBDEP": "LIMA"}, -78, -13, -75, -10))
	fc.Append(boundaryFeature(geojson.Properties{"CCDD": "05", "NOMBDEP": "AYACUCHO"}, -75, -15, -73, -13))
	return fc
}

func TestProjectionRoundTrip(t *testing.T) {
	proj := NewProjection(testViewport())

	// The viewport center projects to the canvas center.
	sx, sy := proj.GeoToScreen(-77.03, -12.05)
	assert.InDelta(t, 400, sx, 1e-6)
	assert.InDelta(t, 300, sy, 1e-6)

	for _, px := range [][2]float64{{0, 0}, {150, 150}, {799, 599}, {400, 300}} {
		lng, lat := proj.ScreenToGeo(px[0], px[1])
		bx, by := proj.GeoToScreen(lng, lat)
		assert.InDelta(t, px[0], bx, 1e-6)
		assert.InDelta(t, px[1], by, 1e-6)
	}
}

func TestClickDrillsIntoDepartment(t *testing.T) {
	c := NewController(zerolog.Nop())
	vp := testViewport()
	proj := NewProjection(vp)
	sx, sy := proj.GeoToScreen(-77, -12) // inside Lima

	tr, ok := c.Click(vp, departmentLayer(), hierarchy.LevelDepartment, navigation.Initial(), nil, sx, sy)
	require.True(t, ok)
	sel, isSelect := tr.(navigation.SelectDepartment)
	require.True(t, isSelect)
	assert.Equal(t, "15", sel.Code)
	assert.Equal(t, "LIMA", sel.Name)
}

func TestClickOnEmptyMapWalksBack(t *testing.T) {
	c := NewController(zerolog.Nop())
	vp := testViewport()
	proj := NewProjection(vp)
	sx, sy := proj.GeoToScreen(-70, -3) // open jungle, no boundary

	tr, ok := c.Click(vp, departmentLayer(), hierarchy.LevelDepartment, navigation.Initial(), nil, sx, sy)
	require.True(t, ok)
	assert.IsType(t, navigation.Reset{}, tr, "empty click at the root resets")

	state, err := navigation.Apply(navigation.Initial(), navigation.SelectDepartment{Code: "15", Name: "LIMA"})
	require.NoError(t, err)
	tr, ok = c.Click(vp, nil, hierarchy.LevelProvince, state, nil, sx, sy)
	require.True(t, ok)
	assert.IsType(t, navigation.GoBack{}, tr, "empty click below the root walks back")
}

func TestDisallowedFeatureIsInert(t *testing.T) {
	c := NewController(zerolog.Nop())
	vp := testViewport()
	proj := NewProjection(vp)
	sx, sy := proj.GeoToScreen(-77, -12) // Lima, not in the allow-list
	allowed := hierarchy.NewCodeSet([]string{"05"}, hierarchy.DepartmentCodeWidth)

	tr, ok := c.Click(vp, departmentLayer(), hierarchy.LevelDepartment, navigation.Initial(), allowed, sx, sy)
	assert.False(t, ok)
	assert.Nil(t, tr)

	_, hovering := c.UpdateHover(vp, departmentLayer(), hierarchy.LevelDepartment, allowed, sx, sy)
	assert.False(t, hovering, "disallowed features never show the hover affordance")
	_, active := c.CurrentHover()
	assert.False(t, active)
}

func TestHoverIsSingleSlot(t *testing.T) {
	c := NewController(zerolog.Nop())
	vp := testViewport()
	proj := NewProjection(vp)

	sx, sy := proj.GeoToScreen(-77, -12)
	h, ok := c.UpdateHover(vp, departmentLayer(), hierarchy.LevelDepartment, nil, sx, sy)
	require.True(t, ok)
	assert.Equal(t, "15", h.Code)

	sx, sy = proj.GeoToScreen(-74, -14)
	h, ok = c.UpdateHover(vp, departmentLayer(), hierarchy.LevelDepartment, nil, sx, sy)
	require.True(t, ok)
	assert.Equal(t, "05", h.Code)

	current, active := c.CurrentHover()
	require.True(t, active)
	assert.Equal(t, "05", current.Code)
}

func TestSectorClickTogglesInsteadOfDrilling(t *testing.T) {
	c := NewController(zerolog.Nop())
	vp := testViewport()
	proj := NewProjection(vp)

	fc := geojson.NewFeatureCollection()
	fc.Append(boundaryFeature(geojson.Properties{"SECTOR": "A-3"}, -78, -13, -75, -10))

	state := navigation.Initial()
	var err error
	for _, tr := range []navigation.Transition{
		navigation.SelectDepartment{Code: "15"},
		navigation.SelectProvince{DepartmentCode: "15", ProvinceCode: "01"},
		navigation.SelectDistrict{Ubigeo: "150101"},
	} {
		state, err = navigation.Apply(state, tr)
		require.NoError(t, err)
	}

	sx, sy := proj.GeoToScreen(-77, -12)
	tr, ok := c.Click(vp, fc, hierarchy.LevelDistrict, state, nil, sx, sy)
	require.True(t, ok)
	toggle, isToggle := tr.(navigation.ToggleSector)
	require.True(t, isToggle)
	assert.Equal(t, "A-3", toggle.Sector)
}

func TestBoxSelectFiltersPoints(t *testing.T) {
	vp := testViewport()
	proj := NewProjection(vp)

	insideLng, insideLat := proj.ScreenToGeo(150, 150)
	outsideLng, outsideLat := proj.ScreenToGeo(400, 400)
	points := []tracking.MapPoint{
		{Lng: insideLng, Lat: insideLat, Interviewer: "inside"},
		{Lng: outsideLng, Lat: outsideLat, Interviewer: "outside"},
	}

	var box BoxSelect
	box.Begin(vp, 100, 100)
	require.True(t, box.Active())
	selected, bounds, ok := box.End(300, 250, points)

	require.True(t, ok)
	require.Len(t, selected, 1)
	assert.Equal(t, "inside", selected[0].Interviewer)
	assert.True(t, bounds.Contains(insideLng, insideLat))
	assert.False(t, bounds.Contains(outsideLng, outsideLat))
	assert.False(t, box.Active())
}

func TestTinyDragIsNotAGesture(t *testing.T) {
	var box BoxSelect
	box.Begin(testViewport(), 100, 100)
	selected, _, ok := box.End(104, 103, []tracking.MapPoint{{Lng: -77, Lat: -12}})
	assert.False(t, ok)
	assert.Nil(t, selected)
	assert.False(t, box.Active())
}

func TestCancelRestoresSavedViewport(t *testing.T) {
	vp := testViewport()
	var box BoxSelect
	box.Begin(vp, 10, 10)
	restored, ok := box.Cancel()
	require.True(t, ok)
	assert.Equal(t, vp, restored)

	_, ok = box.Cancel()
	assert.False(t, ok)
}

func TestFitViewportContainsBox(t *testing.T) {
	target := geometry.NewBBox(-78, -13, -75, -10)
	vp := FitViewport(target, 800, 600, 4, 7)

	cx, cy := target.Center()
	assert.InDelta(t, cx, vp.CenterLng, 1e-9)
	assert.InDelta(t, cy, vp.CenterLat, 1e-9)
	assert.GreaterOrEqual(t, vp.Zoom, 4.0)
	assert.LessOrEqual(t, vp.Zoom, 7.0)

	// Every corner of the target box stays on screen.
	assert.True(t, vp.Bounds.Contains(target[0], target[1]))
	assert.True(t, vp.Bounds.Contains(target[2], target[3]))
}

func TestClickOnLaggingLayerIsInert(t *testing.T) {
	// After a drill the machine is at the province level while the
	// department layer is still on screen. A click on a visible
	// department must neither re-drill nor walk back.
	c := NewController(zerolog.Nop())
	vp := testViewport()
	proj := NewProjection(vp)
	sx, sy := proj.GeoToScreen(-77, -12) // inside Lima

	state, err := navigation.Apply(navigation.Initial(), navigation.SelectDepartment{Code: "15", Name: "LIMA"})
	require.NoError(t, err)

	tr, ok := c.Click(vp, departmentLayer(), hierarchy.LevelDepartment, state, nil, sx, sy)
	assert.False(t, ok)
	assert.Nil(t, tr)
}
