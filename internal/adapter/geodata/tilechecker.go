// internal/adapter/geodata/tilechecker.go

package geodata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/paulmach/orb/maptile"
	"github.com/rs/zerolog"

	"mapnav/internal/domain/hierarchy"
	"mapnav/internal/metrics"
)

// TileCheckerConfig parameterizes tile readiness probes.
type TileCheckerConfig struct {
	// BaseURL of the tile server; tiles live at {base}/{z}/{x}/{y}.
	BaseURL string
	// Version is the tile set version passed as the cache-busting v
	// parameter.
	Version string
	Timeout time.Duration
}

// TileChecker probes the tile server for layer readiness. It implements
// layers.TileChecker. Probes share one pooled client so concurrent
// navigations reuse connections.
type TileChecker struct {
	cfg     TileCheckerConfig
	http    *http.Client
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func NewTileChecker(cfg TileCheckerConfig, httpClient *http.Client, m *metrics.Metrics, logger zerolog.Logger) *TileChecker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 16,
			},
		}
	}
	return &TileChecker{
		cfg:     cfg,
		http:    httpClient,
		metrics: m,
		log:     logger.With().Str("component", "tilecheck").Logger(),
	}
}

// CheckTile reports whether a tile of the level's tile set has data. A
// 200 or 204 means the tile set is ready; the body is discarded without
// parsing. 404 and any other status mean not ready.
func (t *TileChecker) CheckTile(ctx context.Context, level hierarchy.Level, tile maptile.Tile) (bool, error) {
	url := fmt.Sprintf("%s/%d/%d/%d?layer=%s", t.cfg.BaseURL, tile.Z, tile.X, tile.Y, level)
	if t.cfg.Version != "" {
		url += "&v=" + t.cfg.Version
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build tile request: %w", err)
	}
	req.Header.Set("User-Agent", "mapnav-dashboard/1.0")
	resp, err := t.http.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			t.metrics.IncTileCheck(string(level), "error")
		}
		return false, fmt.Errorf("tile probe %s failed: %w", url, err)
	}
	defer resp.Body.Close()
	// Drain so the connection returns to the pool.
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		t.metrics.IncTileCheck(string(level), "hit")
		return true, nil
	default:
		t.metrics.IncTileCheck(string(level), "miss")
		return false, nil
	}
}
