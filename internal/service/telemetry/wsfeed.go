// internal/service/telemetry/wsfeed.go

package telemetry

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Named events on the push socket.
const (
	EventInterviewerTracking = "interviewer_tracking"
	EventAppState            = "app_state_events"
)

// envelope is the framing of every push message.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// appStateEvent reports an app moving to the foreground or background.
type appStateEvent struct {
	InterviewerKey string `json:"interviewerKey"`
	State          string `json:"state"`
	At             string `json:"at"`
}

// WSFeedConfig parameterizes the websocket push feed.
type WSFeedConfig struct {
	URL              string
	HandshakeTimeout time.Duration
	ReconnectDelay   time.Duration
}

// WSFeed consumes pushed telemetry over a websocket. While connected it
// suspends the poller; push and pull never ingest concurrently for the
// same backend.
type WSFeed struct {
	cfg    WSFeedConfig
	hub    *Hub
	poller *Poller
	log    zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWSFeed creates the push feed. poller may be nil when polling is
// disabled.
func NewWSFeed(cfg WSFeedConfig, hub *Hub, poller *Poller, logger zerolog.Logger) *WSFeed {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	return &WSFeed{
		cfg:    cfg,
		hub:    hub,
		poller: poller,
		log:    logger.With().Str("component", "telemetry-ws").Logger(),
	}
}

// Start runs the connect-read-reconnect loop until the context is
// cancelled.
func (f *WSFeed) Start(ctx context.Context) error {
	if f.cfg.URL == "" {
		f.log.Info().Msg("websocket feed disabled by configuration")
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		for {
			f.runConnection(ctx)
			select {
			case <-time.After(f.cfg.ReconnectDelay):
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Stop closes the feed, waiting until the loop exits or ctx expires.
func (f *WSFeed) Stop(ctx context.Context) error {
	if f.cancel != nil {
		f.cancel()
	}
	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *WSFeed) runConnection(ctx context.Context) {
	dialer := websocket.Dialer{HandshakeTimeout: f.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		f.log.Warn().Err(err).Str("url", f.cfg.URL).Msg("websocket dial failed")
		return
	}
	defer conn.Close()

	f.log.Info().Str("url", f.cfg.URL).Msg("websocket feed connected, poller suspended")
	if f.poller != nil {
		f.poller.Suspend()
		defer f.poller.Resume()
	}

	// Unblock ReadMessage when the context is cancelled.
	closed := make(chan struct{})
	defer close(closed)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-closed:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				f.log.Warn().Err(err).Msg("websocket read failed, falling back to polling")
			}
			return
		}
		f.dispatch(data)
	}
}

func (f *WSFeed) dispatch(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		f.log.Debug().Err(err).Msg("unframed websocket message dropped")
		return
	}
	switch env.Event {
	case EventInterviewerTracking:
		f.ingestTracking(env.Data)
	case EventAppState:
		f.ingestAppState(env.Data)
	default:
		f.log.Debug().Str("event", env.Event).Msg("unknown websocket event ignored")
	}
}

// ingestTracking accepts both a single observation and a batch.
func (f *WSFeed) ingestTracking(data json.RawMessage) {
	var batch []RawSample
	if err := json.Unmarshal(data, &batch); err == nil {
		for _, raw := range batch {
			f.hub.Ingest(raw)
		}
		return
	}
	var single RawSample
	if err := json.Unmarshal(data, &single); err != nil {
		f.log.Debug().Err(err).Msg("undecodable tracking event dropped")
		return
	}
	f.hub.Ingest(single)
}

func (f *WSFeed) ingestAppState(data json.RawMessage) {
	var events []appStateEvent
	if err := json.Unmarshal(data, &events); err != nil {
		var single appStateEvent
		if err := json.Unmarshal(data, &single); err != nil {
			f.log.Debug().Err(err).Msg("undecodable app state event dropped")
			return
		}
		events = []appStateEvent{single}
	}
	for _, ev := range events {
		if ev.State != "foreground" || ev.InterviewerKey == "" {
			continue
		}
		at, err := parseTime(ev.At)
		if err != nil {
			f.log.Debug().Err(err).Str("key", ev.InterviewerKey).Msg("app state event with bad timestamp dropped")
			continue
		}
		f.hub.MarkForeground(ev.InterviewerKey, at)
	}
}
