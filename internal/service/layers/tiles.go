// internal/service/layers/tiles.go

package layers

import (
	"math"

	"github.com/paulmach/orb/maptile"

	"mapnav/internal/domain/geometry"
	"mapnav/internal/domain/hierarchy"
)

// Viewport is the dashboard map's current view: center, zoom, geographic
// bounds and canvas size in screen pixels.
type Viewport struct {
	CenterLng float64       `json:"centerLng"`
	CenterLat float64       `json:"centerLat"`
	Zoom      float64       `json:"zoom"`
	Bounds    geometry.BBox `json:"bounds"`
	Width     int           `json:"width"`
	Height    int           `json:"height"`
}

// ZoomBand returns the zoom range a level's tiles are published at.
// Prefetch zooms are clamped into the band so a department navigation at
// street zoom still checks department tiles.
func ZoomBand(level hierarchy.Level) (min, max int) {
	switch level {
	case hierarchy.LevelProvince:
		return 6, 10
	case hierarchy.LevelDistrict:
		return 8, 12
	default:
		return 4, 7
	}
}

// ClampZoom clamps a fractional map zoom into the level's band.
func ClampZoom(zoom float64, level hierarchy.Level) int {
	z := int(math.Round(zoom))
	lo, hi := ZoomBand(level)
	if z < lo {
		return lo
	}
	if z > hi {
		return hi
	}
	return z
}

// CandidateTiles returns the small set of tile coordinates a navigation
// prefetch probes for the target level: the tile under the viewport
// center plus its four edge neighbors, intersected with the viewport's
// tile range when bounds are known.
func CandidateTiles(vp Viewport, level hierarchy.Level) []maptile.Tile {
	zoom := ClampZoom(vp.Zoom, level)
	cx, cy := geometry.TileIndex(vp.CenterLng, vp.CenterLat, zoom)

	offsets := [5][2]int{{0, 0}, {-1, 0}, {1, 0}, {0, -1}, {0, 1}}
	maxTile := (1 << uint(zoom)) - 1

	var rangeKnown bool
	var minX, maxX, minY, maxY int
	if vp.Bounds != (geometry.BBox{}) {
		rangeKnown = true
		minX, maxY = geometry.TileIndex(vp.Bounds[0], vp.Bounds[1], zoom)
		maxX, minY = geometry.TileIndex(vp.Bounds[2], vp.Bounds[3], zoom)
	}

	tiles := make([]maptile.Tile, 0, len(offsets))
	seen := make(map[[2]int]struct{}, len(offsets))
	for _, off := range offsets {
		x, y := cx+off[0], cy+off[1]
		if x < 0 || y < 0 || x > maxTile || y > maxTile {
			continue
		}
		if rangeKnown && (x < minX || x > maxX || y < minY || y > maxY) {
			continue
		}
		key := [2]int{x, y}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		tiles = append(tiles, maptile.New(uint32(x), uint32(y), maptile.Zoom(zoom)))
	}
	return tiles
}
