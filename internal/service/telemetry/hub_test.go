package telemetry

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapnav/internal/domain/tracking"
)

var frozen = time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

func newTestHub() *Hub {
	h := NewHub(HubConfig{}, nil, nil, zerolog.Nop())
	h.now = func() time.Time { return frozen }
	return h
}

func rawAt(key string, lat, lng float64, at time.Time) RawSample {
	tr := true
	ts := at.Format(time.RFC3339)
	return RawSample{
		InterviewerKey:    key,
		Lat:               &lat,
		Lng:               &lng,
		TrackedAt:         ts,
		LastForegroundAt:  ts,
		InternetReachable: &tr,
	}
}

func TestNormalizeRejectsMalformedObservations(t *testing.T) {
	lat, lng := -12.05, -77.03
	bad := []RawSample{
		{Lat: &lat, Lng: &lng, TrackedAt: "2026-08-28T12:00:00Z"}, // no key
		{InterviewerKey: "k", TrackedAt: "2026-08-28T12:00:00Z"},  // no coords
		{InterviewerKey: "k", Lat: &lat, Lng: &lng},               // no timestamp
		{InterviewerKey: "k", Lat: &lat, Lng: &lng, TrackedAt: "not a time"},
	}
	for i, raw := range bad {
		_, err := Normalize(raw)
		assert.Error(t, err, "case %d", i)
	}

	nan := func() float64 { var z float64; return 0 / z }()
	_, err := Normalize(RawSample{InterviewerKey: "k", Lat: &nan, Lng: &lng, TrackedAt: "2026-08-28T12:00:00Z"})
	assert.Error(t, err, "non-finite latitude must be rejected")

	good := rawAt("k", lat, lng, frozen)
	s, err := Normalize(good)
	require.NoError(t, err)
	assert.Equal(t, "k", s.InterviewerKey)
	assert.True(t, s.InternetReachable)
	require.NotNil(t, s.LastForegroundAt)
}

func TestNormalizeAcceptsLegacyTimestampLayout(t *testing.T) {
	lat, lng := -12.0, -77.0
	s, err := Normalize(RawSample{InterviewerKey: "k", Lat: &lat, Lng: &lng, TrackedAt: "2026-08-28 11:59:30"})
	require.NoError(t, err)
	assert.Equal(t, 2026, s.TrackedAt.Year())
}

func TestHubComputesDistanceDeltaAcrossSamples(t *testing.T) {
	h := newTestHub()
	var records []tracking.Record
	h.OnRecord(func(r tracking.Record) { records = append(records, r) })

	h.Ingest(rawAt("ana", -12.05, -77.03, frozen.Add(-5*time.Second)))
	// Roughly 25 m north of the first sample.
	h.Ingest(rawAt("ana", -12.05+0.000225, -77.03, frozen))

	require.Len(t, records, 2)
	first, second := records[0], records[1]
	assert.False(t, first.IsMoving, "no previous sample means no distance")

	require.NotNil(t, second.DistanceMeters)
	assert.InDelta(t, 25, *second.DistanceMeters, 3)
	assert.True(t, second.IsMoving)
	assert.Equal(t, tracking.MotionFromDistance, second.MotionSource)
	assert.Equal(t, tracking.StatusConnected, second.Status)
}

func TestHubKeepsFreshestForegroundSignal(t *testing.T) {
	h := newTestHub()

	h.Ingest(rawAt("ana", -12.05, -77.03, frozen.Add(-5*time.Second)))

	// The next observation carries no foreground signal of its own; the
	// hub must reuse the one from the previous sample.
	lat, lng := -12.05, -77.03
	tr := true
	h.Ingest(RawSample{
		InterviewerKey:    "ana",
		Lat:               &lat,
		Lng:               &lng,
		TrackedAt:         frozen.Format(time.RFC3339),
		InternetReachable: &tr,
	})

	r, ok := h.Record("ana")
	require.True(t, ok)
	assert.True(t, r.IsActive, "foreground signal must survive across samples")
}

func TestMarkForegroundReclassifiesWithoutNewSample(t *testing.T) {
	h := newTestHub()

	// Stale foreground signal: inactive.
	lat, lng := -12.05, -77.03
	tr := true
	h.Ingest(RawSample{
		InterviewerKey:    "ana",
		Lat:               &lat,
		Lng:               &lng,
		TrackedAt:         frozen.Add(-time.Minute).Format(time.RFC3339),
		LastForegroundAt:  frozen.Add(-time.Minute).Format(time.RFC3339),
		InternetReachable: &tr,
	})
	r, _ := h.Record("ana")
	require.Equal(t, tracking.StatusInactive, r.Status)
	before := h.Revision()

	h.MarkForeground("ana", frozen)

	r, _ = h.Record("ana")
	assert.True(t, r.IsActive)
	assert.NotEqual(t, tracking.StatusInactive, r.Status)
	assert.Greater(t, h.Revision(), before)

	// Foreground events for unknown interviewers are ignored.
	h.MarkForeground("nobody", frozen)
	_, ok := h.Record("nobody")
	assert.False(t, ok)
}

func TestSnapshotRevisionAdvancesPerAcceptedSample(t *testing.T) {
	h := newTestHub()
	_, rev0 := h.Snapshot()

	h.Ingest(rawAt("ana", -12.05, -77.03, frozen))
	h.Ingest(rawAt("luis", -13.52, -71.97, frozen))
	points, rev := h.Snapshot()

	assert.Len(t, points, 2)
	assert.Equal(t, rev0+2, rev)

	// Malformed input never advances the revision.
	h.Ingest(RawSample{InterviewerKey: "ghost"})
	_, after := h.Snapshot()
	assert.Equal(t, rev, after)
}
