// internal/service/telemetry/hub.go

package telemetry

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"mapnav/internal/domain/tracking"
	"mapnav/internal/metrics"
)

// RecordsSubject is the NATS subject classified records are published
// on, one message per record.
const RecordsSubject = "telemetry.records"

// HubConfig parameterizes the hub.
type HubConfig struct {
	Thresholds     tracking.Thresholds
	PublishSubject string
}

// Hub is the single ingestion point for interviewer telemetry. It keeps
// the previous sample per interviewer so distance deltas and foreground
// signals survive across observations, classifies each new sample, and
// fans immutable records out to registered handlers and the event bus.
type Hub struct {
	cfg      HubConfig
	eventBus *nats.Conn
	metrics  *metrics.Metrics
	log      zerolog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	prev     map[string]tracking.Sample
	records  map[string]tracking.Record
	revision uint64
	handlers []func(tracking.Record)
}

// NewHub creates a hub. The event bus and metrics may be nil; fan-out to
// handlers works without either.
func NewHub(cfg HubConfig, eventBus *nats.Conn, m *metrics.Metrics, logger zerolog.Logger) *Hub {
	if cfg.Thresholds == (tracking.Thresholds{}) {
		cfg.Thresholds = tracking.DefaultThresholds()
	}
	if cfg.PublishSubject == "" {
		cfg.PublishSubject = RecordsSubject
	}
	return &Hub{
		cfg:      cfg,
		eventBus: eventBus,
		metrics:  m,
		log:      logger.With().Str("component", "telemetry").Logger(),
		now:      time.Now,
		prev:     make(map[string]tracking.Sample),
		records:  make(map[string]tracking.Record),
	}
}

// OnRecord registers a handler invoked for every classified record.
// Handlers must be registered before feeds start.
func (h *Hub) OnRecord(fn func(tracking.Record)) {
	h.handlers = append(h.handlers, fn)
}

// Ingest normalizes and accepts one raw observation. Malformed
// observations are dropped and logged, never propagated.
func (h *Hub) Ingest(raw RawSample) {
	sample, err := Normalize(raw)
	if err != nil {
		h.metrics.IncTelemetryDropped()
		h.log.Debug().Err(err).Msg("telemetry observation dropped")
		return
	}
	h.Accept(sample)
}

// Accept merges a normalized sample with the interviewer's history,
// classifies it and fans the record out.
func (h *Hub) Accept(s tracking.Sample) {
	h.mu.Lock()
	if prev, ok := h.prev[s.InterviewerKey]; ok {
		if s.DistanceMeters == nil {
			d := tracking.DistanceDelta(prev, s)
			s.DistanceMeters = &d
		}
		// The freshest foreground signal wins regardless of which
		// observation carried it.
		if prev.LastForegroundAt != nil &&
			(s.LastForegroundAt == nil || prev.LastForegroundAt.After(*s.LastForegroundAt)) {
			s.LastForegroundAt = prev.LastForegroundAt
		}
	}
	record := tracking.Classify(s, h.now(), h.cfg.Thresholds)
	h.prev[s.InterviewerKey] = s
	h.records[s.InterviewerKey] = record
	h.revision++
	handlers := h.handlers
	h.mu.Unlock()

	h.metrics.IncTelemetryAccepted()
	for _, fn := range handlers {
		fn(record)
	}
	h.publish(record)
}

// MarkForeground merges an app-foreground event into the interviewer's
// state and reclassifies, so presence flips without a fresh location
// sample.
func (h *Hub) MarkForeground(key string, at time.Time) {
	h.mu.Lock()
	s, ok := h.prev[key]
	if !ok {
		h.mu.Unlock()
		return
	}
	if s.LastForegroundAt == nil || at.After(*s.LastForegroundAt) {
		s.LastForegroundAt = &at
	}
	record := tracking.Classify(s, h.now(), h.cfg.Thresholds)
	h.prev[key] = s
	h.records[key] = record
	h.revision++
	handlers := h.handlers
	h.mu.Unlock()

	for _, fn := range handlers {
		fn(record)
	}
	h.publish(record)
}

// Snapshot returns the current map points and the revision that
// identifies this exact point population. Highlight memoization keys on
// the revision.
func (h *Hub) Snapshot() ([]tracking.MapPoint, uint64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	points := make([]tracking.MapPoint, 0, len(h.records))
	for _, r := range h.records {
		points = append(points, r.MapPoint())
	}
	return points, h.revision
}

// Record returns the latest classified record for an interviewer.
func (h *Hub) Record(key string) (tracking.Record, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.records[key]
	return r, ok
}

// Revision returns the current point population revision.
func (h *Hub) Revision() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.revision
}

func (h *Hub) publish(record tracking.Record) {
	if h.eventBus == nil {
		return
	}
	data, err := json.Marshal(record)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to marshal record for event bus")
		return
	}
	if err := h.eventBus.Publish(h.cfg.PublishSubject, data); err != nil {
		h.log.Error().Err(err).Msg("failed to publish record to event bus")
	}
}
