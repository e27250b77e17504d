package highlight

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapnav/internal/domain/hierarchy"
	"mapnav/internal/domain/tracking"
)

func departmentFeature(code, name string, minLng, minLat, maxLng, maxLat float64) *geojson.Feature {
	ring := orb.Ring{
		{minLng, minLat}, {maxLng, minLat}, {maxLng, maxLat}, {minLng, maxLat}, {minLng, minLat},
	}
	f := geojson.NewFeature(orb.Polygon{ring})
	f.Properties = geojson.Properties{"CCDD": code, "NOMBDEP": name}
	return f
}

func departmentLayer() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Append(departmentFeature("15", "LIMA", -78, -13, -75, -10))
	fc.Append(departmentFeature("05", "AYACUCHO", -75, -15, -73, -13))
	return fc
}

func pt(lng, lat float64) tracking.MapPoint {
	return tracking.MapPoint{Lng: lng, Lat: lat, Kind: tracking.PointTracking}
}

func TestComputeHighlightsContainingFeatures(t *testing.T) {
	e := NewEngine(0, zerolog.Nop())
	points := []tracking.MapPoint{
		pt(-77, -12),   // Lima
		pt(-76, -11),   // Lima
		pt(-74, -14),   // Ayacucho
		pt(-70, -3),    // nowhere
	}

	res, recomputed := e.Compute(hierarchy.LevelDepartment, 1, departmentLayer(), points)
	assert.True(t, recomputed)

	require.Len(t, res.Codes, 2)
	assert.Equal(t, 2, res.Codes["15"])
	assert.Equal(t, 1, res.Codes["05"])
	assert.Equal(t, 1, res.Unmatched)
	assert.Zero(t, res.Fallback)
}

func TestHighlightedAcceptsEverySpelling(t *testing.T) {
	e := NewEngine(0, zerolog.Nop())
	res, _ := e.Compute(hierarchy.LevelDepartment, 1, departmentLayer(), []tracking.MapPoint{pt(-74, -14)})

	assert.True(t, res.Highlighted("05"))
	assert.True(t, res.Highlighted("5"))
	assert.False(t, res.Highlighted("15"))
	assert.Equal(t, 1, res.Count("5"))
	assert.Zero(t, res.Count("15"))
}

func TestEmptyInputsYieldEmptyResult(t *testing.T) {
	e := NewEngine(0, zerolog.Nop())

	res, _ := e.Compute(hierarchy.LevelDepartment, 1, departmentLayer(), nil)
	assert.Empty(t, res.Codes)

	res, _ = e.Compute(hierarchy.LevelDepartment, 2, nil, []tracking.MapPoint{pt(-77, -12)})
	assert.Empty(t, res.Codes)
	assert.Zero(t, res.Unmatched)
}

func TestBoundaryPointFallsBackToNearestCandidate(t *testing.T) {
	// Two squares sharing the meridian at -75. A point exactly on the
	// shared edge is inside Lima's half-open interval, but a point on
	// Lima's top edge belongs to no polygon under the convention and must
	// be assigned by the boundary-seam fallback.
	fc := geojson.NewFeatureCollection()
	fc.Append(departmentFeature("15", "LIMA", -78, -13, -75, -10))
	fc.Append(departmentFeature("05", "AYACUCHO", -75, -13, -72, -10))

	e := NewEngine(0, zerolog.Nop())
	res, _ := e.Compute(hierarchy.LevelDepartment, 1, fc, []tracking.MapPoint{pt(-77, -10)})

	require.Len(t, res.Codes, 1)
	assert.Equal(t, 1, res.Fallback)
	assert.True(t, res.Highlighted("15"))
}

func TestFeatureWithoutCodeIsIgnored(t *testing.T) {
	fc := departmentLayer()
	anon := geojson.NewFeature(orb.Polygon{orb.Ring{
		{-80, -6}, {-79, -6}, {-79, -5}, {-80, -5}, {-80, -6},
	}})
	fc.Append(anon)

	e := NewEngine(0, zerolog.Nop())
	res, _ := e.Compute(hierarchy.LevelDepartment, 1, fc, []tracking.MapPoint{pt(-79.5, -5.5)})

	assert.Empty(t, res.Codes)
	assert.Equal(t, 1, res.Unmatched)
}

func TestComputeMemoizesByLevelAndRevision(t *testing.T) {
	e := NewEngine(0, zerolog.Nop())
	layer := departmentLayer()
	points := []tracking.MapPoint{pt(-77, -12)}

	first, recomputed := e.Compute(hierarchy.LevelDepartment, 7, layer, points)
	assert.True(t, recomputed)
	again, recomputed := e.Compute(hierarchy.LevelDepartment, 7, layer, nil)
	assert.Same(t, first, again, "same level and revision must return the memoized result")
	assert.False(t, recomputed)

	fresh, recomputed := e.Compute(hierarchy.LevelDepartment, 8, layer, nil)
	assert.True(t, recomputed)
	assert.NotSame(t, first, fresh)
	assert.Empty(t, fresh.Codes)
}

func TestPointInEmptyBBoxCornerStaysUnmatched(t *testing.T) {
	// A triangle occupies only half of its bounding box. A point deep in
	// the empty corner passes the bbox prefilter but sits hundreds of
	// kilometers from the nearest edge, so it must stay unmatched rather
	// than being reassigned by the boundary-seam fallback.
	tri := geojson.NewFeature(orb.Polygon{orb.Ring{
		{-78, -13}, {-72, -13}, {-78, -7}, {-78, -13},
	}})
	tri.Properties = geojson.Properties{"CCDD": "15", "NOMBDEP": "LIMA"}
	fc := geojson.NewFeatureCollection()
	fc.Append(tri)

	e := NewEngine(0, zerolog.Nop())
	res, _ := e.Compute(hierarchy.LevelDepartment, 1, fc, []tracking.MapPoint{pt(-72.5, -7.5)})

	assert.Empty(t, res.Codes)
	assert.Zero(t, res.Fallback)
	assert.Equal(t, 1, res.Unmatched)
	assert.False(t, res.Highlighted("15"))
}
