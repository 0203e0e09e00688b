// internal/sim/speed.go
package sim

import (
	"time"

	"github.com/fleetlens/maprt/internal/geo"
	"github.com/fleetlens/maprt/internal/model/core"
)

// Default speed model parameters. The floor guarantees forward progress even
// under worst-case congestion so a simulated fleet can never deadlock.
const (
	DefaultBaseSpeedKph = 40.0
	DefaultMinSpeedKph  = 5.0
	DefaultJitterRatio  = 0.1
)

// SpeedModel computes an entity's instantaneous speed from its base speed,
// time-of-day and day-of-week multipliers, overlapping congestion zones, and
// a caller-supplied jitter sample. It is pure: all randomness stays with the
// caller so trajectories replay bit-identically from a seed.
type SpeedModel struct {
	BaseKph     float64
	MinKph      float64
	JitterRatio float64
	Zones       []core.TrafficZone
}

// NewSpeedModel fills unset fields with defaults.
func NewSpeedModel(baseKph, minKph, jitterRatio float64, zones []core.TrafficZone) SpeedModel {
	if baseKph <= 0 {
		baseKph = DefaultBaseSpeedKph
	}
	if minKph <= 0 {
		minKph = DefaultMinSpeedKph
	}
	if jitterRatio < 0 {
		jitterRatio = DefaultJitterRatio
	}
	return SpeedModel{BaseKph: baseKph, MinKph: minKph, JitterRatio: jitterRatio, Zones: zones}
}

// timeOfDayFactor models rush-hour congestion.
func timeOfDayFactor(t time.Time) float64 {
	switch h := t.Hour(); {
	case h >= 7 && h < 9:
		return 0.6
	case h >= 17 && h < 19:
		return 0.55
	case h >= 22 || h < 5:
		return 1.0
	default:
		return 0.85
	}
}

// dayOfWeekFactor models market-day and weekend traffic.
func dayOfWeekFactor(t time.Time) float64 {
	switch t.Weekday() {
	case time.Saturday:
		return 0.75
	case time.Sunday:
		return 0.9
	default:
		return 1.0
	}
}

// zoneFactor composes multipliers of every active zone containing pos.
// Overlapping zones compose multiplicatively.
func (m SpeedModel) zoneFactor(pos core.LatLng, t time.Time) float64 {
	factor := 1.0
	for _, z := range m.Zones {
		if z.Multiplier <= 0 || z.Multiplier >= 1 {
			continue
		}
		if !z.Window.ActiveAt(t) {
			continue
		}
		if geo.InZone(z, pos) {
			factor *= z.Multiplier
		}
	}
	return factor
}

// ActiveZones returns the IDs of every zone containing pos at time t. The
// engine uses this for zoneEnter/zoneExit event detection.
func (m SpeedModel) ActiveZones(pos core.LatLng, t time.Time) []string {
	var ids []string
	for _, z := range m.Zones {
		if !z.Window.ActiveAt(t) {
			continue
		}
		if geo.InZone(z, pos) {
			ids = append(ids, z.ID)
		}
	}
	return ids
}

// SpeedKph computes the instantaneous speed at a position and simulated time.
// jitter must be in [-JitterRatio, +JitterRatio]; the result is clamped to
// [MinKph, BaseKph].
func (m SpeedModel) SpeedKph(pos core.LatLng, t time.Time, jitter float64) float64 {
	speed := m.BaseKph *
		timeOfDayFactor(t) *
		dayOfWeekFactor(t) *
		m.zoneFactor(pos, t) *
		(1 + jitter)
	return geo.Clamp(speed, m.MinKph, m.BaseKph)
}
