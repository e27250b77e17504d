// internal/adapter/geodata/client.go

// Package geodata adapts external boundary sources: the static GeoJSON
// endpoints, the campaign API, the tile server and the PostGIS boundary
// store.
package geodata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"mapnav/internal/domain/geometry"
	"mapnav/internal/domain/hierarchy"
	"mapnav/internal/metrics"
	"mapnav/internal/service/layers"
)

// maxLayerBytes caps a boundary layer download. The full Peru district
// layer is ~25 MB; anything past this is a broken upstream.
const maxLayerBytes = 128 << 20

// ClientConfig parameterizes the HTTP boundary client.
type ClientConfig struct {
	// BaseURL serves the static reference layers at /geo/{level}.geojson.
	BaseURL string
	// CampaignID switches fetches to the campaign API, which returns a
	// trimmed layer plus metadata.
	CampaignID string
	Timeout    time.Duration
}

// Client fetches boundary layers over HTTP. It implements
// layers.LayerSource.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewClient creates the boundary client. A nil http.Client gets a pooled
// default with the configured timeout.
func NewClient(cfg ClientConfig, httpClient *http.Client, m *metrics.Metrics, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		cfg:     cfg,
		http:    httpClient,
		metrics: m,
		log:     logger.With().Str("component", "geodata").Logger(),
	}
}

// campaignResponse is the campaign API's layer envelope.
type campaignResponse struct {
	GeoJSON json.RawMessage `json:"geojson"`
	Meta    *struct {
		BBox         [4]float64 `json:"bbox"`
		FeatureCount int        `json:"featureCount"`
		Codes        []string   `json:"codes"`
	} `json:"meta"`
}

// FetchLayer downloads one level's boundary layer. With a campaign
// configured it asks the campaign API and carries the trimmed layer's
// allow-list through as metadata; otherwise it fetches the static
// reference layer.
func (c *Client) FetchLayer(ctx context.Context, level hierarchy.Level) (*layers.LayerData, error) {
	var data *layers.LayerData
	var err error
	if c.cfg.CampaignID != "" {
		data, err = c.fetchCampaignLayer(ctx, level)
	} else {
		data, err = c.fetchStaticLayer(ctx, level)
	}
	if err != nil {
		c.metrics.IncLayerFetch(string(level), "error")
		return nil, err
	}
	c.metrics.IncLayerFetch(string(level), "ok")
	return data, nil
}

func (c *Client) fetchStaticLayer(ctx context.Context, level hierarchy.Level) (*layers.LayerData, error) {
	url := fmt.Sprintf("%s/geo/%s.geojson", c.cfg.BaseURL, level)
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s layer: %w", level, err)
	}
	return &layers.LayerData{
		Collection: fc,
		Meta:       &layers.LayerMeta{FeatureCount: len(fc.Features)},
	}, nil
}

func (c *Client) fetchCampaignLayer(ctx context.Context, level hierarchy.Level) (*layers.LayerData, error) {
	url := fmt.Sprintf("%s/api/geojson?campaignId=%s&layerType=%s&meta=1", c.cfg.BaseURL, c.cfg.CampaignID, level)
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	var resp campaignResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse campaign envelope for %s: %w", level, err)
	}
	if len(resp.GeoJSON) == 0 {
		return nil, fmt.Errorf("campaign %s has no %s layer", c.cfg.CampaignID, level)
	}
	fc, err := geojson.UnmarshalFeatureCollection(resp.GeoJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to parse campaign %s layer: %w", level, err)
	}

	meta := &layers.LayerMeta{FeatureCount: len(fc.Features)}
	if resp.Meta != nil {
		meta.BBox = geometry.BBox(resp.Meta.BBox)
		meta.FeatureCount = resp.Meta.FeatureCount
		meta.AllowedCodes = resp.Meta.Codes
	}
	return &layers.LayerData{Collection: fc, Meta: meta}, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxLayerBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", url, err)
	}
	return body, nil
}
