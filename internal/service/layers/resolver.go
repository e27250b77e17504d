// internal/service/layers/resolver.go

// Package layers decides which geometry layer is rendered. Navigation
// moves the target level immediately, but the rendered level only
// advances once the target layer is known to be ready (any tile probe
// succeeded, or the prefetch timeout elapsed) and its geometry is loaded,
// so the map never shows a flash of missing geometry between levels.
package layers

import (
	"context"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/rs/zerolog"

	"mapnav/internal/domain/geometry"
	"mapnav/internal/domain/hierarchy"
	"mapnav/internal/metrics"
)

// DefaultPrefetchTimeout bounds the tile readiness race. A fully cached
// or empty tile set produces no 200 responses, so the timeout is the
// expected unblocking mechanism, not an error.
const DefaultPrefetchTimeout = 4 * time.Second

// DefaultIdleDelay is how long the rendered level must stay stable before
// the next deeper level is warmed in the background.
const DefaultIdleDelay = 1500 * time.Millisecond

// LayerStatus is surfaced to the dashboard alongside rendered-level
// changes.
type LayerStatus string

const (
	// StatusLoading means a navigation prefetch for the level is in flight.
	StatusLoading LayerStatus = "loading"
	// StatusReady means the level's geometry is rendered.
	StatusReady LayerStatus = "ready"
	// StatusEmpty means the level's geometry could not be fetched; the
	// previously rendered layer stays on screen.
	StatusEmpty LayerStatus = "empty"
)

// LayerMeta is the optional metadata served with a boundary layer.
type LayerMeta struct {
	BBox         geometry.BBox `json:"bbox"`
	FeatureCount int           `json:"featureCount"`
	AllowedCodes []string      `json:"codes,omitempty"`
}

// LayerData couples a fetched feature collection with its metadata.
type LayerData struct {
	Collection *geojson.FeatureCollection
	Meta       *LayerMeta
}

// LayerSource fetches a level's boundary geometry.
type LayerSource interface {
	FetchLayer(ctx context.Context, level hierarchy.Level) (*LayerData, error)
}

// TileChecker probes one tile of a level's tile set for data. It reports
// true on HTTP 200 or 204; the body is never parsed.
type TileChecker interface {
	CheckTile(ctx context.Context, level hierarchy.Level, tile maptile.Tile) (bool, error)
}

// Config parameterizes a Resolver. Metrics may be nil.
type Config struct {
	PrefetchTimeout time.Duration
	IdleDelay       time.Duration
	Metrics         *metrics.Metrics
}

// Resolver owns the rendered/target level pair and the per-session layer
// cache. All cache writes go through its own sequencing; no other
// component mutates the cache.
type Resolver struct {
	source LayerSource
	tiles  TileChecker
	cfg    Config
	log    zerolog.Logger

	mu           sync.Mutex
	generation   uint64
	cancelActive context.CancelFunc
	cancelIdle   context.CancelFunc
	rendered     hierarchy.Level
	target       hierarchy.Level
	cache        map[hierarchy.Level]*LayerData

	onRendered func(hierarchy.Level, *LayerData)
	onStatus   func(hierarchy.Level, LayerStatus)
}

// NewResolver creates a resolver starting at the department level with an
// empty cache.
func NewResolver(source LayerSource, tiles TileChecker, cfg Config, logger zerolog.Logger) *Resolver {
	if cfg.PrefetchTimeout <= 0 {
		cfg.PrefetchTimeout = DefaultPrefetchTimeout
	}
	if cfg.IdleDelay <= 0 {
		cfg.IdleDelay = DefaultIdleDelay
	}
	return &Resolver{
		source:   source,
		tiles:    tiles,
		cfg:      cfg,
		log:      logger.With().Str("component", "layers").Logger(),
		rendered: hierarchy.LevelDepartment,
		target:   hierarchy.LevelDepartment,
		cache:    make(map[hierarchy.Level]*LayerData),
	}
}

// OnRendered registers the callback fired after the rendered level
// advances. Must be set before the first Navigate.
func (r *Resolver) OnRendered(fn func(hierarchy.Level, *LayerData)) { r.onRendered = fn }

// OnStatus registers the loading/ready/empty status callback.
func (r *Resolver) OnStatus(fn func(hierarchy.Level, LayerStatus)) { r.onStatus = fn }

// Rendered returns the currently rendered level.
func (r *Resolver) Rendered() hierarchy.Level {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rendered
}

// Target returns the level navigation last asked for.
func (r *Resolver) Target() hierarchy.Level {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.target
}

// Layer returns the cached geometry for a level, if loaded.
func (r *Resolver) Layer(level hierarchy.Level) (*LayerData, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, ok := r.cache[level]
	return data, ok
}

// RenderedLayer returns the geometry of the currently rendered level.
func (r *Resolver) RenderedLayer() (*LayerData, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, ok := r.cache[r.rendered]
	return data, ok
}

// Navigate requests that the rendered level move to the given target. The
// previous prefetch, and any idle warmup, is cancelled; its late results
// are discarded by generation check, so a superseded prefetch completing
// out of order is a guaranteed no-op.
func (r *Resolver) Navigate(ctx context.Context, level hierarchy.Level, vp Viewport) {
	r.mu.Lock()
	r.generation++
	gen := r.generation
	if r.cancelActive != nil {
		r.cancelActive()
	}
	if r.cancelIdle != nil {
		r.cancelIdle()
		r.cancelIdle = nil
	}
	pctx, cancel := context.WithCancel(ctx)
	r.cancelActive = cancel
	r.target = level
	r.mu.Unlock()

	r.notifyStatus(level, StatusLoading)
	go r.prefetch(pctx, gen, level, vp)
}

// Close cancels any in-flight prefetch and idle warmup.
func (r *Resolver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation++ // poison outstanding commits
	if r.cancelActive != nil {
		r.cancelActive()
		r.cancelActive = nil
	}
	if r.cancelIdle != nil {
		r.cancelIdle()
		r.cancelIdle = nil
	}
}

// prefetch races the level's candidate tiles against the timeout: the
// first successful probe, or the timeout, resolves "layer ready". It
// never waits for every tile.
func (r *Resolver) prefetch(ctx context.Context, gen uint64, level hierarchy.Level, vp Viewport) {
	if r.tiles != nil {
		candidates := CandidateTiles(vp, level)
		ready := make(chan struct{}, 1)
		for _, tile := range candidates {
			go func(t maptile.Tile) {
				ok, err := r.tiles.CheckTile(ctx, level, t)
				if err != nil || !ok {
					return
				}
				select {
				case ready <- struct{}{}:
				default:
				}
			}(tile)
		}

		timer := time.NewTimer(r.cfg.PrefetchTimeout)
		defer timer.Stop()
		select {
		case <-ready:
		case <-timer.C:
			r.cfg.Metrics.IncPrefetchTimeout()
			r.log.Debug().Str("level", string(level)).Msg("prefetch timeout elapsed, committing anyway")
		case <-ctx.Done():
			return
		}
	}
	r.commit(ctx, gen, level, vp)
}

// commit advances the rendered level once the target layer's geometry is
// available. A stale generation means a later navigation superseded this
// one; its result is discarded, so the rendered level can never regress
// to stale geometry because of an out-of-order response.
func (r *Resolver) commit(ctx context.Context, gen uint64, level hierarchy.Level, vp Viewport) {
	data, cached := r.Layer(level)
	if !cached {
		fetched, err := r.source.FetchLayer(ctx, level)
		if err != nil {
			if ctx.Err() != nil || r.staleGen(gen) {
				return
			}
			// Fetch failure is "no data for this layer": keep whatever was
			// rendered and surface the empty status.
			r.log.Warn().Err(err).Str("level", string(level)).Msg("layer fetch failed, keeping rendered layer")
			r.notifyStatus(level, StatusEmpty)
			return
		}
		data = fetched
	}

	r.mu.Lock()
	if gen != r.generation {
		r.mu.Unlock()
		return
	}
	r.cache[level] = data
	r.rendered = level
	r.cancelActive = nil
	r.mu.Unlock()

	r.notifyStatus(level, StatusReady)
	if r.onRendered != nil {
		r.onRendered(level, data)
	}
	r.scheduleIdlePrefetch(gen, level, vp)
}

// scheduleIdlePrefetch opportunistically warms the next deeper level's
// tiles and geometry near the viewport center once the rendered level is
// stable. Best effort: cancelled by the next navigation and never touches
// the rendered level.
func (r *Resolver) scheduleIdlePrefetch(gen uint64, level hierarchy.Level, vp Viewport) {
	next, ok := level.Deeper()
	if !ok {
		return
	}

	ictx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	if gen != r.generation {
		r.mu.Unlock()
		cancel()
		return
	}
	r.cancelIdle = cancel
	r.mu.Unlock()

	go func() {
		defer cancel()
		select {
		case <-time.After(r.cfg.IdleDelay):
		case <-ictx.Done():
			return
		}

		if r.tiles != nil {
			for _, tile := range CandidateTiles(vp, next) {
				if ictx.Err() != nil {
					return
				}
				r.tiles.CheckTile(ictx, next, tile) //nolint:errcheck // warmup only
			}
		}

		if _, cached := r.Layer(next); cached {
			return
		}
		data, err := r.source.FetchLayer(ictx, next)
		if err != nil || ictx.Err() != nil {
			return
		}
		r.mu.Lock()
		if _, exists := r.cache[next]; !exists {
			r.cache[next] = data
		}
		r.mu.Unlock()
		r.log.Debug().Str("level", string(next)).Msg("idle prefetch warmed next level")
	}()
}

func (r *Resolver) staleGen(gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return gen != r.generation
}

func (r *Resolver) notifyStatus(level hierarchy.Level, status LayerStatus) {
	if r.onStatus != nil {
		r.onStatus(level, status)
	}
}
