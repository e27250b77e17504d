// internal/domain/tracking/model.go

// Package tracking models the live telemetry of field interviewers and
// the classification of each tracked entity into presence, motion and
// connectivity states.
package tracking

import (
	"time"

	"mapnav/internal/domain/geometry"
)

// Status is the final classification of a tracked entity.
type Status string

const (
	// StatusConnected means active, moving and reachable.
	StatusConnected Status = "connected"
	// StatusStationary means active but not moving.
	StatusStationary Status = "stationary"
	// StatusInactive means the entity's presence signal is stale, or it is
	// moving without connectivity.
	StatusInactive Status = "inactive"
)

// MotionSource says where the IsMoving flag came from. The mode-tag
// fallback is a degraded-telemetry signal and should be treated as lower
// confidence than a distance-based result.
type MotionSource string

const (
	MotionFromDistance MotionSource = "distance"
	MotionFromModeTag  MotionSource = "mode-tag"
	MotionUnknown      MotionSource = "unknown"
)

// PointKind distinguishes the two live point populations drawn on the map.
type PointKind string

const (
	PointInterview PointKind = "interview"
	PointTracking  PointKind = "tracking"
)

// Sample is one normalized telemetry observation for an interviewer.
// Samples are immutable once produced by the feed normalizer.
type Sample struct {
	InterviewerKey string    `json:"interviewerKey"`
	Lat            float64   `json:"lat"`
	Lng            float64   `json:"lng"`
	TrackedAt      time.Time `json:"trackedAt"`
	Mode           string    `json:"mode,omitempty"`
	// DistanceMeters is the great-circle distance from the previous sample
	// for the same key, when a previous sample exists.
	DistanceMeters *float64 `json:"distanceMeters,omitempty"`
	Accuracy       float64  `json:"accuracy,omitempty"`
	Speed          float64  `json:"speed,omitempty"`
	// LastForegroundAt is the latest app-foreground signal for the entity,
	// merged in from presence events. Nil when no signal was ever seen.
	LastForegroundAt  *time.Time `json:"lastForegroundAt,omitempty"`
	InternetReachable bool       `json:"internetReachable"`
	Connected         bool       `json:"connected"`
}

// Record is a classified sample: the sample plus the derived presence,
// motion and connectivity flags and the final status.
type Record struct {
	Sample
	IsActive     bool         `json:"isActive"`
	IsMoving     bool         `json:"isMoving"`
	IsConnected  bool         `json:"isConnected"`
	MotionSource MotionSource `json:"motionSource"`
	Status       Status       `json:"status"`
}

// MapPoint is one point drawn on the map, an immutable snapshot for a
// single highlight computation.
type MapPoint struct {
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	Kind        PointKind `json:"kind"`
	Candidate   string    `json:"candidate,omitempty"`
	Interviewer string    `json:"interviewer,omitempty"`
	Status      string    `json:"status,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

// MapPoint converts the record into its map representation.
func (r Record) MapPoint() MapPoint {
	return MapPoint{
		Lat:         r.Lat,
		Lng:         r.Lng,
		Kind:        PointTracking,
		Interviewer: r.InterviewerKey,
		Status:      string(r.Status),
		CreatedAt:   r.TrackedAt,
	}
}

// DistanceDelta returns the great-circle distance in meters between two
// consecutive samples for the same entity key.
func DistanceDelta(prev, cur Sample) float64 {
	return geometry.HaversineMeters(prev.Lat, prev.Lng, cur.Lat, cur.Lng)
}
