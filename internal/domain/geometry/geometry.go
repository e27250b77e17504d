// internal/domain/geometry/geometry.go

package geometry

import (
	"math"

	"github.com/paulmach/orb"
)

// WebMercatorMaxLat is the latitude limit of the Web Mercator projection.
// Latitudes beyond it are clamped before computing tile indices.
const WebMercatorMaxLat = 85.0511

const earthRadiusMeters = 6371000.0

// BBox is an axis-aligned bounding box in the order
// [minLng, minLat, maxLng, maxLat].
type BBox [4]float64

// NewBBox returns a normalized box from two arbitrary corners.
func NewBBox(lng1, lat1, lng2, lat2 float64) BBox {
	return BBox{
		math.Min(lng1, lng2),
		math.Min(lat1, lat2),
		math.Max(lng1, lng2),
		math.Max(lat1, lat2),
	}
}

// Contains reports whether the point lies inside or on the edge of the box.
func (b BBox) Contains(lng, lat float64) bool {
	return lng >= b[0] && lng <= b[2] && lat >= b[1] && lat <= b[3]
}

// Union returns the smallest box covering both b and o.
func (b BBox) Union(o BBox) BBox {
	return BBox{
		math.Min(b[0], o[0]),
		math.Min(b[1], o[1]),
		math.Max(b[2], o[2]),
		math.Max(b[3], o[3]),
	}
}

// Center returns the midpoint of the box.
func (b BBox) Center() (lng, lat float64) {
	return (b[0] + b[2]) / 2, (b[1] + b[3]) / 2
}

// Width returns the longitudinal extent of the box in degrees.
func (b BBox) Width() float64 { return b[2] - b[0] }

// Height returns the latitudinal extent of the box in degrees.
func (b BBox) Height() float64 { return b[3] - b[1] }

// BoundsOf walks the coordinates of any geometry and returns its bounding
// box. The second return value is false when the geometry is nil or has no
// coordinates at all, in which case the box must not be used.
func BoundsOf(g orb.Geometry) (BBox, bool) {
	acc := accumulator{box: BBox{math.MaxFloat64, math.MaxFloat64, -math.MaxFloat64, -math.MaxFloat64}}
	acc.walk(g)
	if !acc.seen {
		return BBox{}, false
	}
	return acc.box, true
}

type accumulator struct {
	box  BBox
	seen bool
}

func (a *accumulator) point(p orb.Point) {
	a.seen = true
	if p[0] < a.box[0] {
		a.box[0] = p[0]
	}
	if p[1] < a.box[1] {
		a.box[1] = p[1]
	}
	if p[0] > a.box[2] {
		a.box[2] = p[0]
	}
	if p[1] > a.box[3] {
		a.box[3] = p[1]
	}
}

func (a *accumulator) walk(g orb.Geometry) {
	switch geom := g.(type) {
	case nil:
	case orb.Point:
		a.point(geom)
	case orb.MultiPoint:
		for _, p := range geom {
			a.point(p)
		}
	case orb.LineString:
		for _, p := range geom {
			a.point(p)
		}
	case orb.MultiLineString:
		for _, ls := range geom {
			a.walk(ls)
		}
	case orb.Ring:
		for _, p := range geom {
			a.point(p)
		}
	case orb.Polygon:
		for _, r := range geom {
			a.walk(r)
		}
	case orb.MultiPolygon:
		for _, poly := range geom {
			a.walk(poly)
		}
	case orb.Collection:
		for _, sub := range geom {
			a.walk(sub)
		}
	case orb.Bound:
		a.point(geom.Min)
		a.point(geom.Max)
	}
}

// PointInPolygon reports whether the point lies inside a Polygon or
// MultiPolygon using the even-odd ray casting rule. Holes (rings after the
// first) subtract from the outer ring; for a MultiPolygon the point is
// inside when any constituent polygon contains it.
//
// Edge ties follow the half-open convention produced by the strict
// comparison in the crossing test: points on a polygon's bottom or left
// edges count as inside, points on its top or right edges as outside, so
// adjacent regions sharing an edge never both claim the same point.
//
// Every caller is expected to run a BBox.Contains pre-filter first; the
// ray cast is O(edges) and the bbox check is what keeps highlight passes
// over thousands of points cheap.
func PointInPolygon(g orb.Geometry, lng, lat float64) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		return polygonContains(geom, lng, lat)
	case orb.MultiPolygon:
		for _, poly := range geom {
			if polygonContains(poly, lng, lat) {
				return true
			}
		}
	}
	return false
}

func polygonContains(poly orb.Polygon, lng, lat float64) bool {
	if len(poly) == 0 {
		return false
	}
	if !ringContains(poly[0], lng, lat) {
		return false
	}
	// A hit inside any hole cancels the outer ring hit.
	for i := 1; i < len(poly); i++ {
		if ringContains(poly[i], lng, lat) {
			return false
		}
	}
	return true
}

func ringContains(ring orb.Ring, lng, lat float64) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > lat) != (yj > lat) &&
			lng < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// TileIndex converts a longitude/latitude pair to slippy map tile indices
// at the given zoom, per the standard Web Mercator formula. Latitude is
// clamped to the projection's valid range and the result is clamped to the
// tile grid.
func TileIndex(lng, lat float64, zoom int) (x, y int) {
	if lat > WebMercatorMaxLat {
		lat = WebMercatorMaxLat
	} else if lat < -WebMercatorMaxLat {
		lat = -WebMercatorMaxLat
	}

	n := math.Exp2(float64(zoom))
	x = int(math.Floor((lng + 180.0) / 360.0 * n))

	latRad := lat * math.Pi / 180.0
	y = int(math.Floor((1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0 * n))

	maxTile := int(n) - 1
	if x < 0 {
		x = 0
	} else if x > maxTile {
		x = maxTile
	}
	if y < 0 {
		y = 0
	} else if y > maxTile {
		y = maxTile
	}
	return x, y
}

// HaversineMeters returns the great-circle distance between two points
// in meters.
func HaversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180.0
	phi2 := lat2 * math.Pi / 180.0
	dPhi := (lat2 - lat1) * math.Pi / 180.0
	dLambda := (lng2 - lng1) * math.Pi / 180.0

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)

	h := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// BoundaryDistanceMeters returns the distance from the point to the
// nearest edge of a Polygon or MultiPolygon, in meters, using an
// equirectangular approximation centered on the point. Other geometry
// kinds return +Inf.
func BoundaryDistanceMeters(g orb.Geometry, lng, lat float64) float64 {
	best := math.Inf(1)
	cosLat := math.Cos(lat * math.Pi / 180.0)
	visit := func(poly orb.Polygon) {
		for _, ring := range poly {
			n := len(ring)
			for i, j := 0, n-1; i < n; j, i = i, i+1 {
				d := segmentDistanceMeters(lng, lat, ring[j], ring[i], cosLat)
				if d < best {
					best = d
				}
			}
		}
	}
	switch geom := g.(type) {
	case orb.Polygon:
		visit(geom)
	case orb.MultiPolygon:
		for _, poly := range geom {
			visit(poly)
		}
	}
	return best
}

// segmentDistanceMeters measures point-to-segment distance in a local
// planar frame centered on the query point.
func segmentDistanceMeters(lng, lat float64, a, b orb.Point, cosLat float64) float64 {
	const metersPerDegree = earthRadiusMeters * math.Pi / 180.0
	ax := (a[0] - lng) * cosLat * metersPerDegree
	ay := (a[1] - lat) * metersPerDegree
	bx := (b[0] - lng) * cosLat * metersPerDegree
	by := (b[1] - lat) * metersPerDegree
	dx, dy := bx-ax, by-ay
	if dx == 0 && dy == 0 {
		return math.Hypot(ax, ay)
	}
	t := -(ax*dx + ay*dy) / (dx*dx + dy*dy)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return math.Hypot(ax+t*dx, ay+t*dy)
}
