// internal/service/highlight/engine.go

// Package highlight resolves which rendered boundary features contain
// live interviewer points. Containment runs in two stages: a cheap bbox
// prefilter over every feature, then the exact even-odd test only for
// bbox candidates.
package highlight

import (
	"math"
	"sync"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"mapnav/internal/domain/geometry"
	"mapnav/internal/domain/hierarchy"
	"mapnav/internal/domain/tracking"
)

// DefaultBoundsCacheSize bounds the per-session feature bbox cache.
// Peru's district layer has ~1,900 features, so the default holds every
// layer at once.
const DefaultBoundsCacheSize = 4096

// Result is one highlight computation over a rendered layer. Codes maps
// each matched feature's canonical code to the number of points it
// contains; forms maps every accepted spelling back to the canonical
// code so lookups tolerate padded and unpadded inputs.
type Result struct {
	Level     hierarchy.Level
	Codes     map[string]int
	forms     map[string]string
	Unmatched int
	Fallback  int
}

func emptyResult(level hierarchy.Level) *Result {
	return &Result{
		Level: level,
		Codes: make(map[string]int),
		forms: make(map[string]string),
	}
}

// Highlighted reports whether the feature with the given code, in any of
// its spellings, contains at least one point.
func (r *Result) Highlighted(code string) bool {
	_, ok := r.forms[code]
	if ok {
		return true
	}
	width := r.Level.CodeWidth()
	for _, form := range hierarchy.CodeForms(code, width) {
		if _, ok := r.forms[form]; ok {
			return true
		}
	}
	return false
}

// Count returns the number of points inside the feature with the given
// code, zero when not highlighted.
func (r *Result) Count(code string) int {
	if canonical, ok := r.forms[code]; ok {
		return r.Codes[canonical]
	}
	width := r.Level.CodeWidth()
	for _, form := range hierarchy.CodeForms(code, width) {
		if canonical, ok := r.forms[form]; ok {
			return r.Codes[canonical]
		}
	}
	return 0
}

// Engine computes highlight sets. It memoizes the last result so
// repeated reads between point snapshots or level changes cost nothing;
// callers pass a monotonically increasing points revision.
type Engine struct {
	bounds *geometry.BoundsCache
	log    zerolog.Logger

	mu        sync.Mutex
	lastLevel hierarchy.Level
	lastRev   uint64
	last      *Result
}

func NewEngine(cacheSize int, logger zerolog.Logger) *Engine {
	if cacheSize <= 0 {
		cacheSize = DefaultBoundsCacheSize
	}
	return &Engine{
		bounds: geometry.NewBoundsCache(cacheSize),
		log:    logger.With().Str("component", "highlight").Logger(),
	}
}

type candidate struct {
	feature *geojson.Feature
	code    string
	box     geometry.BBox
}

// Compute resolves containment of points against the layer rendered at
// level. rev identifies the point snapshot; a call with the same level
// and revision as the previous one returns the memoized result. The
// second return value reports whether a fresh computation ran.
func (e *Engine) Compute(level hierarchy.Level, rev uint64, layer *geojson.FeatureCollection, points []tracking.MapPoint) (*Result, bool) {
	e.mu.Lock()
	if e.last != nil && e.lastLevel == level && e.lastRev == rev {
		cached := e.last
		e.mu.Unlock()
		return cached, false
	}
	e.mu.Unlock()

	result := e.compute(level, layer, points)

	e.mu.Lock()
	e.lastLevel = level
	e.lastRev = rev
	e.last = result
	e.mu.Unlock()
	return result, true
}

// Invalidate drops the memoized result, forcing the next Compute to run.
func (e *Engine) Invalidate() {
	e.mu.Lock()
	e.last = nil
	e.mu.Unlock()
}

func (e *Engine) compute(level hierarchy.Level, layer *geojson.FeatureCollection, points []tracking.MapPoint) *Result {
	result := emptyResult(level)
	if layer == nil || len(layer.Features) == 0 || len(points) == 0 {
		return result
	}

	width := level.CodeWidth()
	candidates := make([]candidate, 0, len(layer.Features))
	for _, f := range layer.Features {
		code := hierarchy.FeatureCode(f, level)
		if code == "" {
			continue
		}
		box, ok := e.bounds.FeatureBounds(f)
		if !ok {
			e.log.Debug().Str("code", code).Msg("feature with degenerate geometry skipped")
			continue
		}
		candidates = append(candidates, candidate{feature: f, code: code, box: box})
	}

	for _, p := range points {
		hits := hitCandidates(candidates, p.Lng, p.Lat)
		matched := ""
		for _, c := range hits {
			if geometry.PointInPolygon(c.feature.Geometry, p.Lng, p.Lat) {
				matched = c.code
				break
			}
		}
		if matched == "" && len(hits) > 0 {
			// Ray cast rejected every bbox candidate. Only a point sitting
			// on a shared boundary or in a float-precision sliver between
			// adjacent polygons gets reassigned; a point in the empty part
			// of a concave feature's bbox stays unmatched.
			if code := nearestBoundaryCandidate(hits, p.Lng, p.Lat); code != "" {
				matched = code
				result.Fallback++
			}
		}
		if matched == "" {
			result.Unmatched++
			continue
		}
		result.Codes[matched]++
	}

	for code := range result.Codes {
		for _, form := range hierarchy.CodeForms(code, width) {
			result.forms[form] = code
		}
	}
	return result
}

func hitCandidates(candidates []candidate, lng, lat float64) []candidate {
	var hits []candidate
	for _, c := range candidates {
		if c.box.Contains(lng, lat) {
			hits = append(hits, c)
		}
	}
	return hits
}

// boundarySeamMeters bounds how far from a polygon edge a point may sit
// and still be treated as a boundary tie rather than genuinely outside.
const boundarySeamMeters = 30.0

func nearestBoundaryCandidate(hits []candidate, lng, lat float64) string {
	best := ""
	bestDist := math.Inf(1)
	for _, c := range hits {
		d := geometry.BoundaryDistanceMeters(c.feature.Geometry, lng, lat)
		if d < bestDist {
			best = c.code
			bestDist = d
		}
	}
	if bestDist > boundarySeamMeters {
		return ""
	}
	return best
}
