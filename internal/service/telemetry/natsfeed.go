// internal/service/telemetry/natsfeed.go

package telemetry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Raw ingestion subjects. Backends that already speak NATS publish here
// instead of exposing a websocket.
const (
	RawSamplesSubject  = "telemetry.raw.samples"
	RawAppStateSubject = "telemetry.raw.appstate"
)

// NATSFeed subscribes to raw telemetry subjects on the event bus and
// funnels them into the hub.
type NATSFeed struct {
	conn *nats.Conn
	hub  *Hub
	log  zerolog.Logger
	subs []*nats.Subscription
}

func NewNATSFeed(conn *nats.Conn, hub *Hub, logger zerolog.Logger) *NATSFeed {
	return &NATSFeed{
		conn: conn,
		hub:  hub,
		log:  logger.With().Str("component", "telemetry-nats").Logger(),
	}
}

// Start subscribes to the raw subjects.
func (f *NATSFeed) Start(_ context.Context) error {
	sampleSub, err := f.conn.Subscribe(RawSamplesSubject, func(msg *nats.Msg) {
		var raw RawSample
		if err := json.Unmarshal(msg.Data, &raw); err != nil {
			f.log.Debug().Err(err).Msg("undecodable sample message dropped")
			return
		}
		f.hub.Ingest(raw)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", RawSamplesSubject, err)
	}
	f.subs = append(f.subs, sampleSub)

	stateSub, err := f.conn.Subscribe(RawAppStateSubject, func(msg *nats.Msg) {
		var ev appStateEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			f.log.Debug().Err(err).Msg("undecodable app state message dropped")
			return
		}
		if ev.State != "foreground" || ev.InterviewerKey == "" {
			return
		}
		at, err := parseTime(ev.At)
		if err != nil {
			return
		}
		f.hub.MarkForeground(ev.InterviewerKey, at)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", RawAppStateSubject, err)
	}
	f.subs = append(f.subs, stateSub)
	return nil
}

// Stop drains the subscriptions.
func (f *NATSFeed) Stop(_ context.Context) error {
	for _, sub := range f.subs {
		if err := sub.Unsubscribe(); err != nil {
			f.log.Warn().Err(err).Msg("failed to unsubscribe")
		}
	}
	f.subs = nil
	return nil
}
