package geo

import (
	"encoding/json"
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/fleetlens/maprt/internal/model/core"
)

// ParsePolyline parses a JSON array of [lng, lat] pairs into a polyline.
// Input format: "[[lng1,lat1],[lng2,lat2],...]"
func ParsePolyline(input string) ([]core.LatLng, error) {
	var coords [][]float64
	if err := json.Unmarshal([]byte(input), &coords); err != nil {
		return nil, fmt.Errorf("failed to parse polyline JSON: %w", err)
	}

	if len(coords) < 2 {
		return nil, fmt.Errorf("polyline must have at least 2 points, got %d", len(coords))
	}

	polyline := make([]core.LatLng, len(coords))
	for i, coord := range coords {
		if len(coord) < 2 {
			return nil, fmt.Errorf("coordinate %d has insufficient values", i)
		}
		polyline[i] = core.LatLng{Lng: coord[0], Lat: coord[1]}
	}

	return polyline, nil
}

// LineString builds a simplefeatures LineString from a polyline, projected
// into EPSG:3857 for rendering.
func LineString(polyline []core.LatLng) (geom.LineString, error) {
	if len(polyline) < 2 {
		return geom.LineString{}, fmt.Errorf("polyline must have at least 2 points, got %d", len(polyline))
	}
	flat := make([]float64, 0, len(polyline)*2)
	for _, p := range polyline {
		x, y := Project3857(p)
		flat = append(flat, x, y)
	}
	seq := geom.NewSequence(flat, geom.DimXY)
	return geom.NewLineString(seq), nil
}

// PolylineLengthM returns the cumulative great-circle length of a polyline
// in meters.
func PolylineLengthM(polyline []core.LatLng) float64 {
	var total float64
	for i := 1; i < len(polyline); i++ {
		total += DistanceM(polyline[i-1], polyline[i])
	}
	return total
}
