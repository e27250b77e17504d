// internal/domain/tracking/classifier.go

package tracking

import "time"

// Default classifier thresholds.
const (
	DefaultPresenceThreshold = 15 * time.Second
	DefaultMovementMeters    = 10.0
)

// ModeMoving is the literal mode tag some devices report in place of a
// distance delta.
const ModeMoving = "moving"

// Thresholds parameterizes Classify.
type Thresholds struct {
	// Presence is the maximum staleness of the last-foreground signal
	// before the entity is considered inactive.
	Presence time.Duration
	// MovementMeters is the minimum distance-since-last-sample that counts
	// as movement.
	MovementMeters float64
}

// DefaultThresholds returns the standard presence and movement thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Presence:       DefaultPresenceThreshold,
		MovementMeters: DefaultMovementMeters,
	}
}

// Classify derives the presence, motion and connectivity flags and the
// final status for one sample. It is pure: the result depends only on the
// sample, the clock value and the thresholds.
//
// The rules evaluate in order:
//  1. active: last-foreground within the presence threshold of now; with
//     no foreground signal at all, the position timestamp stands in.
//  2. moving: distance delta above the movement threshold; with no
//     distance available, the literal "moving" mode tag is used as a
//     low-confidence fallback and flagged via MotionSource.
//  3. connected: explicitly internet-reachable or generically connected.
//  4. status: inactive unless active; stationary unless moving; then
//     connected if reachable, inactive otherwise.
func Classify(s Sample, now time.Time, th Thresholds) Record {
	r := Record{Sample: s}

	if s.LastForegroundAt != nil {
		r.IsActive = now.Sub(*s.LastForegroundAt) <= th.Presence
	} else {
		r.IsActive = !s.TrackedAt.IsZero() && now.Sub(s.TrackedAt) <= th.Presence
	}

	switch {
	case s.DistanceMeters != nil:
		r.IsMoving = *s.DistanceMeters > th.MovementMeters
		r.MotionSource = MotionFromDistance
	case s.Mode != "":
		r.IsMoving = s.Mode == ModeMoving
		r.MotionSource = MotionFromModeTag
	default:
		r.MotionSource = MotionUnknown
	}

	r.IsConnected = s.InternetReachable || s.Connected

	switch {
	case !r.IsActive:
		r.Status = StatusInactive
	case !r.IsMoving:
		r.Status = StatusStationary
	case r.IsConnected:
		r.Status = StatusConnected
	default:
		r.Status = StatusInactive
	}
	return r
}
