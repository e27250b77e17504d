// internal/metrics/metrics.go

// Package metrics holds the engine's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every counter the engine emits. A nil *Metrics is
// valid everywhere and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	TileChecks          *prometheus.CounterVec
	PrefetchTimeouts    prometheus.Counter
	LayerFetches        *prometheus.CounterVec
	TelemetryAccepted   prometheus.Counter
	TelemetryDropped    prometheus.Counter
	HighlightRecomputes prometheus.Counter
	SessionsActive      prometheus.Gauge
}

// New creates the metric set on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		TileChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mapnav_tile_checks_total",
			Help: "Tile readiness probes by result.",
		}, []string{"level", "result"}),
		PrefetchTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "mapnav_prefetch_timeouts_total",
			Help: "Navigation prefetches resolved by timeout instead of a tile hit.",
		}),
		LayerFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mapnav_layer_fetches_total",
			Help: "Boundary layer fetches by level and result.",
		}, []string{"level", "result"}),
		TelemetryAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "mapnav_telemetry_accepted_total",
			Help: "Telemetry observations accepted after normalization.",
		}),
		TelemetryDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "mapnav_telemetry_dropped_total",
			Help: "Malformed telemetry observations dropped.",
		}),
		HighlightRecomputes: factory.NewCounter(prometheus.CounterOpts{
			Name: "mapnav_highlight_recomputes_total",
			Help: "Highlight set computations that could not reuse the memoized result.",
		}),
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mapnav_sessions_active",
			Help: "Dashboard sessions currently alive.",
		}),
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncTileCheck(level, result string) {
	if m != nil {
		m.TileChecks.WithLabelValues(level, result).Inc()
	}
}

func (m *Metrics) IncPrefetchTimeout() {
	if m != nil {
		m.PrefetchTimeouts.Inc()
	}
}

func (m *Metrics) IncLayerFetch(level, result string) {
	if m != nil {
		m.LayerFetches.WithLabelValues(level, result).Inc()
	}
}

func (m *Metrics) IncTelemetryAccepted() {
	if m != nil {
		m.TelemetryAccepted.Inc()
	}
}

func (m *Metrics) IncTelemetryDropped() {
	if m != nil {
		m.TelemetryDropped.Inc()
	}
}

func (m *Metrics) IncHighlightRecompute() {
	if m != nil {
		m.HighlightRecomputes.Inc()
	}
}

func (m *Metrics) SetSessionsActive(n int) {
	if m != nil {
		m.SessionsActive.Set(float64(n))
	}
}
