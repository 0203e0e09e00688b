// internal/model/core/zone.go
package core

import "time"

// TimeWindow is a recurring weekly activity predicate for a traffic zone.
// A zero window (no days, zero hours) is always active.
type TimeWindow struct {
	Days      []time.Weekday `json:"days,omitempty"`
	StartHour int            `json:"startHour"`
	EndHour   int            `json:"endHour"`
}

// ActiveAt reports whether the window covers the given instant.
func (w TimeWindow) ActiveAt(t time.Time) bool {
	if len(w.Days) == 0 && w.StartHour == 0 && w.EndHour == 0 {
		return true
	}
	if len(w.Days) > 0 {
		match := false
		for _, d := range w.Days {
			if t.Weekday() == d {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	if w.StartHour == 0 && w.EndHour == 0 {
		return true
	}
	h := t.Hour()
	if w.StartHour <= w.EndHour {
		return h >= w.StartHour && h < w.EndHour
	}
	// window wraps past midnight
	return h >= w.StartHour || h < w.EndHour
}

// TrafficZone is a geofenced speed multiplier. Either Polygon (a closed ring)
// or Center+RadiusM describes the area. Read-only input to the speed model.
type TrafficZone struct {
	ID         string     `json:"id"`
	Name       string     `json:"name,omitempty"`
	Polygon    []LatLng   `json:"polygon,omitempty"`
	Center     LatLng     `json:"center"`
	RadiusM    float64    `json:"radiusM"`
	Multiplier float64    `json:"multiplier"`
	Window     TimeWindow `json:"window"`
}
