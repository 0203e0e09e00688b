// internal/model/core/place.go
package core

// Place is a static map feature (facility or warehouse). Immutable for the
// runtime's purposes; its lifecycle is bound to the current map session.
type Place struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Coord    LatLng `json:"coord"`
	Slots    int    `json:"slots"`
}
