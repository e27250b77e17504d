// internal/service/telemetry/normalize.go

// Package telemetry ingests raw interviewer telemetry from the survey
// backend over polling, websocket push or NATS, normalizes it, and fans
// classified records out to the rest of the engine.
package telemetry

import (
	"fmt"
	"math"
	"time"

	"mapnav/internal/domain/tracking"
)

// RawSample is the wire shape of one telemetry observation. Field
// presence is loose: upstream emits whatever the device reported.
type RawSample struct {
	InterviewerKey    string   `json:"interviewerKey"`
	Lat               *float64 `json:"lat"`
	Lng               *float64 `json:"lng"`
	TrackedAt         string   `json:"trackedAt"`
	Mode              string   `json:"mode"`
	DistanceMeters    *float64 `json:"distanceMeters"`
	Accuracy          float64  `json:"accuracy"`
	Speed             float64  `json:"speed"`
	LastForegroundAt  string   `json:"lastForegroundAt"`
	InternetReachable *bool    `json:"internetReachable"`
	Connected         *bool    `json:"connected"`
}

// timeLayouts are tried in order when parsing upstream timestamps. The
// backend emits RFC 3339; older app builds emit a bare datetime.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable timestamp %q", s)
}

// Normalize validates a raw observation and converts it into an
// immutable sample. Malformed observations are rejected with an error;
// the caller drops them without propagating anything downstream.
func Normalize(raw RawSample) (tracking.Sample, error) {
	if raw.InterviewerKey == "" {
		return tracking.Sample{}, fmt.Errorf("observation without interviewer key")
	}
	if raw.Lat == nil || raw.Lng == nil {
		return tracking.Sample{}, fmt.Errorf("observation for %s without coordinates", raw.InterviewerKey)
	}
	lat, lng := *raw.Lat, *raw.Lng
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return tracking.Sample{}, fmt.Errorf("observation for %s with non-finite coordinates", raw.InterviewerKey)
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return tracking.Sample{}, fmt.Errorf("observation for %s outside coordinate range", raw.InterviewerKey)
	}
	if raw.TrackedAt == "" {
		return tracking.Sample{}, fmt.Errorf("observation for %s without timestamp", raw.InterviewerKey)
	}
	trackedAt, err := parseTime(raw.TrackedAt)
	if err != nil {
		return tracking.Sample{}, fmt.Errorf("observation for %s: %w", raw.InterviewerKey, err)
	}

	s := tracking.Sample{
		InterviewerKey: raw.InterviewerKey,
		Lat:            lat,
		Lng:            lng,
		TrackedAt:      trackedAt,
		Mode:           raw.Mode,
		DistanceMeters: raw.DistanceMeters,
		Accuracy:       raw.Accuracy,
		Speed:          raw.Speed,
	}
	if raw.LastForegroundAt != "" {
		if fg, err := parseTime(raw.LastForegroundAt); err == nil {
			s.LastForegroundAt = &fg
		}
	}
	if raw.InternetReachable != nil {
		s.InternetReachable = *raw.InternetReachable
	}
	if raw.Connected != nil {
		s.Connected = *raw.Connected
	}
	return s, nil
}
