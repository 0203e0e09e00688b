// internal/model/core/playback.go
package core

import "time"

// Playback is the window read by the replay mode and the timeline scrubber.
type Playback struct {
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	CurrentTime time.Time `json:"currentTime"`
}

// Valid rejects inverted or empty ranges. A malformed window must be caught
// at the boundary and replaced with a fallback, never fed into rendering math.
func (p Playback) Valid() bool {
	if p.StartTime.IsZero() || p.EndTime.IsZero() {
		return false
	}
	return p.EndTime.After(p.StartTime)
}

// Clamped returns the playback with CurrentTime forced inside the window.
func (p Playback) Clamped() Playback {
	if p.CurrentTime.Before(p.StartTime) {
		p.CurrentTime = p.StartTime
	}
	if p.CurrentTime.After(p.EndTime) {
		p.CurrentTime = p.EndTime
	}
	return p
}
