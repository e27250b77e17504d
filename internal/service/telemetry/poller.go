// internal/service/telemetry/poller.go

package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// PollerConfig parameterizes the REST polling feed.
type PollerConfig struct {
	BaseURL string
	// Interval between polls. Zero or negative disables polling entirely.
	Interval        time.Duration
	IncludePrevious bool
}

// Poller periodically pulls the full tracking snapshot from the survey
// backend. It is the fallback feed: when a push feed is connected the
// poller is suspended, and it resumes if the push connection drops.
type Poller struct {
	cfg    PollerConfig
	hub    *Hub
	client *http.Client
	log    zerolog.Logger

	suspended atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewPoller(cfg PollerConfig, hub *Hub, client *http.Client, logger zerolog.Logger) *Poller {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Poller{
		cfg:    cfg,
		hub:    hub,
		client: client,
		log:    logger.With().Str("component", "telemetry-poller").Logger(),
	}
}

// Start begins the polling loop. A non-positive interval disables the
// feed; Start still succeeds so wiring stays uniform.
func (p *Poller) Start(ctx context.Context) error {
	if p.cfg.Interval <= 0 {
		p.log.Info().Msg("polling disabled by configuration")
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.cfg.Interval)
		defer ticker.Stop()

		p.pollOnce(ctx)
		for {
			select {
			case <-ticker.C:
				p.pollOnce(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Stop halts the polling loop, waiting until it exits or ctx expires.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Suspend pauses ingestion while a push feed is live. The loop keeps
// ticking so resumption is immediate.
func (p *Poller) Suspend() { p.suspended.Store(true) }

// Resume re-enables ingestion after a push feed drops.
func (p *Poller) Resume() { p.suspended.Store(false) }

func (p *Poller) pollOnce(ctx context.Context) {
	if p.suspended.Load() {
		return
	}
	url := p.cfg.BaseURL + "/api/interviewer-tracking"
	if p.cfg.IncludePrevious {
		url += "?includePrevious=1"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		p.log.Error().Err(err).Msg("failed to build tracking request")
		return
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Warn().Err(err).Msg("tracking poll failed")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		p.log.Warn().Int("status", resp.StatusCode).Msg("tracking poll returned non-OK status")
		return
	}

	// The backend wraps the snapshot in a points envelope.
	var payload struct {
		Points []RawSample `json:"points"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		p.log.Warn().Err(err).Str("url", url).Msg("undecodable tracking response")
		return
	}
	for _, raw := range payload.Points {
		p.hub.Ingest(raw)
	}
}
