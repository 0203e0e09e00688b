// internal/sim/movement.go
package sim

import (
	"github.com/fleetlens/maprt/internal/geo"
	"github.com/fleetlens/maprt/internal/model/core"
)

// Progress tracks an entity's position along a route polyline. Cumulative
// traveled distance is non-decreasing; Advance past the final waypoint
// reports completion exactly once.
type Progress struct {
	route     core.Route
	segLens   []float64 // great-circle length of each segment, meters
	seg       int
	offsetM   float64 // distance into current segment
	traveledM float64
	done      bool
}

// NewProgress places a fresh progress tracker at the start of the route.
// Returns nil for routes too short to walk.
func NewProgress(r core.Route) *Progress {
	if !r.Valid() {
		return nil
	}
	segLens := make([]float64, len(r.Polyline)-1)
	for i := 1; i < len(r.Polyline); i++ {
		segLens[i-1] = geo.DistanceM(r.Polyline[i-1], r.Polyline[i])
	}
	return &Progress{route: r, segLens: segLens}
}

// Route returns the route being walked.
func (p *Progress) Route() core.Route { return p.route }

// TraveledM returns cumulative distance traveled along the route.
func (p *Progress) TraveledM() float64 { return p.traveledM }

// Done reports whether the final waypoint has been reached.
func (p *Progress) Done() bool { return p.done }

// Reset moves the tracker back to the route start.
func (p *Progress) Reset() {
	p.seg = 0
	p.offsetM = 0
	p.traveledM = 0
	p.done = false
}

// Position returns the current interpolated position.
func (p *Progress) Position() core.LatLng {
	if p.done || p.seg >= len(p.segLens) {
		return p.route.Polyline[len(p.route.Polyline)-1]
	}
	a := p.route.Polyline[p.seg]
	b := p.route.Polyline[p.seg+1]
	if p.segLens[p.seg] == 0 {
		return a
	}
	frac := p.offsetM / p.segLens[p.seg]
	return core.LatLng{
		Lat: a.Lat + (b.Lat-a.Lat)*frac,
		Lng: a.Lng + (b.Lng-a.Lng)*frac,
	}
}

// Heading returns the bearing of the current segment in degrees.
func (p *Progress) Heading() float64 {
	seg := p.seg
	if seg >= len(p.segLens) {
		seg = len(p.segLens) - 1
	}
	return geo.BearingDeg(p.route.Polyline[seg], p.route.Polyline[seg+1])
}

// Advance moves distM meters along the remaining route. It returns the new
// position, the heading of the segment the entity ends on, and whether this
// call reached the final waypoint. Advancing a finished tracker is a no-op
// that never reports completion again.
func (p *Progress) Advance(distM float64) (pos core.LatLng, headingDeg float64, completed bool) {
	if p.done {
		return p.Position(), p.Heading(), false
	}
	if distM < 0 {
		distM = 0
	}

	remaining := distM
	for remaining > 0 && p.seg < len(p.segLens) {
		segRemaining := p.segLens[p.seg] - p.offsetM
		if remaining < segRemaining {
			p.offsetM += remaining
			p.traveledM += remaining
			remaining = 0
			break
		}
		remaining -= segRemaining
		p.traveledM += segRemaining
		p.seg++
		p.offsetM = 0
	}

	if p.seg >= len(p.segLens) {
		p.done = true
		return p.route.Polyline[len(p.route.Polyline)-1], p.Heading(), true
	}
	return p.Position(), p.Heading(), false
}
