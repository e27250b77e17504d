// internal/service/interaction/projection.go

// Package interaction translates dashboard gestures into navigation
// transitions: hover affordances, click resolution against the rendered
// layer, and rectangular box selection of map points.
package interaction

import (
	"math"

	"mapnav/internal/domain/geometry"
	"mapnav/internal/service/layers"
)

const tileSize = 256.0

// Projection converts between viewport screen pixels and geographic
// coordinates using the Web Mercator global pixel grid at the viewport's
// fractional zoom.
type Projection struct {
	vp        layers.Viewport
	worldSize float64
	centerGX  float64
	centerGY  float64
}

func NewProjection(vp layers.Viewport) Projection {
	worldSize := tileSize * math.Pow(2, vp.Zoom)
	gx, gy := globalPixel(vp.CenterLng, vp.CenterLat, worldSize)
	return Projection{vp: vp, worldSize: worldSize, centerGX: gx, centerGY: gy}
}

func globalPixel(lng, lat float64, worldSize float64) (x, y float64) {
	if lat > geometry.WebMercatorMaxLat {
		lat = geometry.WebMercatorMaxLat
	} else if lat < -geometry.WebMercatorMaxLat {
		lat = -geometry.WebMercatorMaxLat
	}
	x = (lng + 180.0) / 360.0 * worldSize
	latRad := lat * math.Pi / 180.0
	y = (1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0 * worldSize
	return x, y
}

// ScreenToGeo converts viewport pixel coordinates, origin at the top
// left, into longitude and latitude.
func (p Projection) ScreenToGeo(sx, sy float64) (lng, lat float64) {
	gx := p.centerGX + sx - float64(p.vp.Width)/2.0
	gy := p.centerGY + sy - float64(p.vp.Height)/2.0

	lng = gx/p.worldSize*360.0 - 180.0
	n := math.Pi - 2.0*math.Pi*gy/p.worldSize
	lat = 180.0 / math.Pi * math.Atan(math.Sinh(n))
	return lng, lat
}

// GeoToScreen converts longitude and latitude into viewport pixels.
func (p Projection) GeoToScreen(lng, lat float64) (sx, sy float64) {
	gx, gy := globalPixel(lng, lat, p.worldSize)
	sx = gx - p.centerGX + float64(p.vp.Width)/2.0
	sy = gy - p.centerGY + float64(p.vp.Height)/2.0
	return sx, sy
}

// FitViewport returns a viewport centered on the bbox at the highest
// band zoom that keeps the whole box on a canvas of the given size, with
// a small margin so boundaries are not flush against the edge.
func FitViewport(box geometry.BBox, width, height int, minZoom, maxZoom int) layers.Viewport {
	const margin = 0.9

	cx, cy := box.Center()
	zoom := minZoom
	for z := maxZoom; z >= minZoom; z-- {
		worldSize := tileSize * math.Pow(2, float64(z))
		x1, y1 := globalPixel(box[0], box[3], worldSize)
		x2, y2 := globalPixel(box[2], box[1], worldSize)
		if x2-x1 <= float64(width)*margin && y2-y1 <= float64(height)*margin {
			zoom = z
			break
		}
	}

	vp := layers.Viewport{
		CenterLng: cx,
		CenterLat: cy,
		Zoom:      float64(zoom),
		Width:     width,
		Height:    height,
	}
	proj := NewProjection(vp)
	wLng, nLat := proj.ScreenToGeo(0, 0)
	eLng, sLat := proj.ScreenToGeo(float64(width), float64(height))
	vp.Bounds = geometry.NewBBox(wLng, sLat, eLng, nLat)
	return vp
}
