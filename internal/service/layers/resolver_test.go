package layers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapnav/internal/domain/hierarchy"
)

type fakeSource struct {
	mu      sync.Mutex
	calls   map[hierarchy.Level]int
	failing map[hierarchy.Level]bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		calls:   make(map[hierarchy.Level]int),
		failing: make(map[hierarchy.Level]bool),
	}
}

func (s *fakeSource) FetchLayer(_ context.Context, level hierarchy.Level) (*LayerData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[level]++
	if s.failing[level] {
		return nil, errors.New("upstream unavailable")
	}
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Point{-75, -12}))
	return &LayerData{Collection: fc, Meta: &LayerMeta{FeatureCount: 1}}, nil
}

func (s *fakeSource) fetchCount(level hierarchy.Level) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[level]
}

// fakeChecker holds every probe until release is closed, so tests control
// when a prefetch resolves.
type fakeChecker struct {
	release chan struct{}
	ok      bool
}

func (c *fakeChecker) CheckTile(ctx context.Context, _ hierarchy.Level, _ maptile.Tile) (bool, error) {
	if c.release != nil {
		select {
		case <-c.release:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	return c.ok, nil
}

type renderLog struct {
	mu     sync.Mutex
	levels []hierarchy.Level
	status map[hierarchy.Level][]LayerStatus
}

func newRenderLog(r *Resolver) *renderLog {
	rl := &renderLog{status: make(map[hierarchy.Level][]LayerStatus)}
	r.OnRendered(func(level hierarchy.Level, _ *LayerData) {
		rl.mu.Lock()
		rl.levels = append(rl.levels, level)
		rl.mu.Unlock()
	})
	r.OnStatus(func(level hierarchy.Level, st LayerStatus) {
		rl.mu.Lock()
		rl.status[level] = append(rl.status[level], st)
		rl.mu.Unlock()
	})
	return rl
}

func (rl *renderLog) rendered() []hierarchy.Level {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	out := make([]hierarchy.Level, len(rl.levels))
	copy(out, rl.levels)
	return out
}

func (rl *renderLog) statusesFor(level hierarchy.Level) []LayerStatus {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	out := make([]LayerStatus, len(rl.status[level]))
	copy(out, rl.status[level])
	return out
}

func limaViewport() Viewport {
	return Viewport{CenterLng: -77.03, CenterLat: -12.05, Zoom: 6, Width: 1024, Height: 768}
}

func testConfig() Config {
	return Config{PrefetchTimeout: 50 * time.Millisecond, IdleDelay: time.Hour}
}

func TestNavigateCommitsTargetLevel(t *testing.T) {
	source := newFakeSource()
	r := NewResolver(source, &fakeChecker{ok: true}, testConfig(), zerolog.Nop())
	defer r.Close()
	rl := newRenderLog(r)

	r.Navigate(context.Background(), hierarchy.LevelProvince, limaViewport())

	require.Eventually(t, func() bool {
		return r.Rendered() == hierarchy.LevelProvince
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, hierarchy.LevelProvince, r.Target())
	_, cached := r.Layer(hierarchy.LevelProvince)
	assert.True(t, cached)
	assert.Equal(t, []LayerStatus{StatusLoading, StatusReady}, rl.statusesFor(hierarchy.LevelProvince))
}

func TestSupersededNavigationIsDiscarded(t *testing.T) {
	source := newFakeSource()
	blocker := &fakeChecker{release: make(chan struct{}), ok: true}
	r := NewResolver(source, blocker, Config{PrefetchTimeout: time.Hour, IdleDelay: time.Hour}, zerolog.Nop())
	defer r.Close()
	rl := newRenderLog(r)

	// First navigation blocks on its tile probes; the second supersedes
	// it before it can resolve.
	r.Navigate(context.Background(), hierarchy.LevelProvince, limaViewport())
	r.Navigate(context.Background(), hierarchy.LevelDistrict, limaViewport())
	close(blocker.release)

	require.Eventually(t, func() bool {
		return r.Rendered() == hierarchy.LevelDistrict
	}, time.Second, 5*time.Millisecond)

	// Give the superseded goroutine a chance to misbehave, then verify
	// it never advanced the rendered level.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, hierarchy.LevelDistrict, r.Rendered())
	assert.Equal(t, []hierarchy.Level{hierarchy.LevelDistrict}, rl.rendered())
	assert.Zero(t, source.fetchCount(hierarchy.LevelProvince))
}

func TestPrefetchTimeoutStillCommits(t *testing.T) {
	source := newFakeSource()
	// Probes never succeed; only the timeout can unblock the race.
	never := &fakeChecker{release: make(chan struct{}), ok: false}
	r := NewResolver(source, never, testConfig(), zerolog.Nop())
	defer r.Close()

	start := time.Now()
	r.Navigate(context.Background(), hierarchy.LevelProvince, limaViewport())

	require.Eventually(t, func() bool {
		return r.Rendered() == hierarchy.LevelProvince
	}, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestFetchFailureKeepsRenderedLayer(t *testing.T) {
	source := newFakeSource()
	source.failing[hierarchy.LevelProvince] = true
	r := NewResolver(source, &fakeChecker{ok: true}, testConfig(), zerolog.Nop())
	defer r.Close()
	rl := newRenderLog(r)

	r.Navigate(context.Background(), hierarchy.LevelProvince, limaViewport())

	require.Eventually(t, func() bool {
		st := rl.statusesFor(hierarchy.LevelProvince)
		return len(st) == 2 && st[1] == StatusEmpty
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, hierarchy.LevelDepartment, r.Rendered())
	assert.Empty(t, rl.rendered())
}

func TestNilTileCheckerCommitsImmediately(t *testing.T) {
	source := newFakeSource()
	r := NewResolver(source, nil, Config{PrefetchTimeout: time.Hour, IdleDelay: time.Hour}, zerolog.Nop())
	defer r.Close()

	r.Navigate(context.Background(), hierarchy.LevelDistrict, limaViewport())

	require.Eventually(t, func() bool {
		return r.Rendered() == hierarchy.LevelDistrict
	}, time.Second, 5*time.Millisecond)
}

func TestCachedLayerIsNotRefetched(t *testing.T) {
	source := newFakeSource()
	r := NewResolver(source, nil, testConfig(), zerolog.Nop())
	defer r.Close()

	r.Navigate(context.Background(), hierarchy.LevelProvince, limaViewport())
	require.Eventually(t, func() bool {
		return r.Rendered() == hierarchy.LevelProvince
	}, time.Second, 5*time.Millisecond)

	r.Navigate(context.Background(), hierarchy.LevelDepartment, limaViewport())
	require.Eventually(t, func() bool {
		return r.Rendered() == hierarchy.LevelDepartment
	}, time.Second, 5*time.Millisecond)

	r.Navigate(context.Background(), hierarchy.LevelProvince, limaViewport())
	require.Eventually(t, func() bool {
		return r.Rendered() == hierarchy.LevelProvince
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, source.fetchCount(hierarchy.LevelProvince))
}

func TestIdlePrefetchWarmsNextLevel(t *testing.T) {
	source := newFakeSource()
	r := NewResolver(source, nil, Config{PrefetchTimeout: 50 * time.Millisecond, IdleDelay: 10 * time.Millisecond}, zerolog.Nop())
	defer r.Close()

	r.Navigate(context.Background(), hierarchy.LevelProvince, limaViewport())

	require.Eventually(t, func() bool {
		_, cached := r.Layer(hierarchy.LevelDistrict)
		return cached
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, hierarchy.LevelProvince, r.Rendered())
}
