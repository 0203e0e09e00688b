package geo

import (
	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/fleetlens/maprt/internal/model/core"
)

// ZonePolygon builds a simplefeatures polygon from a zone's ring, closing it
// if the producer left it open. Returns false if the ring is unusable.
func ZonePolygon(ring []core.LatLng) (geom.Polygon, bool) {
	if len(ring) < 3 {
		return geom.Polygon{}, false
	}
	closed := ring
	if ring[0] != ring[len(ring)-1] {
		closed = append(append([]core.LatLng{}, ring...), ring[0])
	}
	flat := make([]float64, 0, len(closed)*2)
	for _, p := range closed {
		flat = append(flat, p.Lng, p.Lat)
	}
	seq := geom.NewSequence(flat, geom.DimXY)
	ls := geom.NewLineString(seq)
	return geom.NewPolygon([]geom.LineString{ls}), true
}

// InZone reports whether a point lies inside a traffic zone. Polygon zones
// use an exact point-in-polygon test; radius zones use great-circle distance
// from the center. A zone with neither shape never matches.
func InZone(z core.TrafficZone, p core.LatLng) bool {
	if len(z.Polygon) >= 3 {
		poly, ok := ZonePolygon(z.Polygon)
		if !ok {
			return false
		}
		pt := geom.NewPoint(geom.Coordinates{XY: geom.XY{X: p.Lng, Y: p.Lat}})
		return geom.Intersects(poly.AsGeometry(), pt.AsGeometry())
	}
	if z.RadiusM > 0 {
		return DistanceM(z.Center, p) <= z.RadiusM
	}
	return false
}
