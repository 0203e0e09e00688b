// internal/model/core/payload.go
package core

// UpdatePayload is the structural bag of everything a data producer (live
// feed or simulator) can push through the runtime in one call. Every field is
// optional: a nil slice or pointer means "unchanged", never "clear". An empty
// non-nil slice clears the corresponding layer.
type UpdatePayload struct {
	Vehicles   []Entity  `json:"vehicles,omitempty"`
	Drivers    []Entity  `json:"drivers,omitempty"`
	Routes     []Route   `json:"routes,omitempty"`
	Alerts     []Alert   `json:"alerts,omitempty"`
	Batches    []Batch   `json:"batches,omitempty"`
	Warehouses []Place   `json:"warehouses,omitempty"`
	Facilities []Place   `json:"facilities,omitempty"`
	Playback   *Playback `json:"playback,omitempty"`
}

// Empty reports whether no field is present at all.
func (p UpdatePayload) Empty() bool {
	return p.Vehicles == nil && p.Drivers == nil && p.Routes == nil &&
		p.Alerts == nil && p.Batches == nil && p.Warehouses == nil &&
		p.Facilities == nil && p.Playback == nil
}
