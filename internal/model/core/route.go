// internal/model/core/route.go
package core

// Waypoint is optional metadata attached to a point along a route.
type Waypoint struct {
	Name  string `json:"name"`
	Coord LatLng `json:"coord"`
}

// Route is an ordered polyline. It is used both for rendering on the route
// layer and as the path a simulated entity walks.
type Route struct {
	ID        string     `json:"id"`
	Polyline  []LatLng   `json:"polyline"`
	Waypoints []Waypoint `json:"waypoints,omitempty"`
}

// Valid reports whether the route has enough points to be walked or drawn.
func (r Route) Valid() bool {
	return len(r.Polyline) >= 2
}
