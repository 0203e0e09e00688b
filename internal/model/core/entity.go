// internal/model/core/entity.go
package core

// Status describes what a fleet entity is currently doing.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusEnRoute    Status = "en-route"
	StatusDelivering Status = "delivering"
	StatusDelayed    Status = "delayed"
	StatusBrokenDown Status = "broken-down"
	StatusOffline    Status = "offline"
)

// EntityKind distinguishes vehicles from drivers in shared layer code.
type EntityKind string

const (
	KindVehicle EntityKind = "vehicle"
	KindDriver  EntityKind = "driver"
)

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Location is an entity's position plus instantaneous motion.
type Location struct {
	LatLng
	HeadingDeg float64 `json:"headingDegrees"`
	SpeedKph   float64 `json:"speedKph"`
}

// Capacity holds load figures for an entity.
// Available and UtilizationRatio are derived: whenever Total and Used are
// both present, Available = Total - Used and UtilizationRatio = Used / Total.
// Producers are not required to send the derived fields; consumers fill them
// in via convert.DeriveCapacity rather than failing on partial shapes.
type Capacity struct {
	Total            float64 `json:"total"`
	Used             float64 `json:"used"`
	Available        float64 `json:"available"`
	UtilizationRatio float64 `json:"utilizationRatio"`
}

// Entity is a moving fleet member (vehicle or driver) as rendered on the map.
// It is transient view state: produced fresh each tick by the live feed or
// the simulator and owned by the layer that renders it. Never persisted by
// the runtime.
type Entity struct {
	ID       string     `json:"id"`
	Kind     EntityKind `json:"kind"`
	Name     string     `json:"name,omitempty"`
	Location Location   `json:"location"`
	Capacity Capacity   `json:"capacity"`
	Status   Status     `json:"status"`
	RouteID  string     `json:"routeId,omitempty"`
}

// Alert is a point annotation rendered on the alert layer.
type Alert struct {
	ID       string `json:"id"`
	EntityID string `json:"entityId,omitempty"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Coord    LatLng `json:"coord"`
}

// Batch is a grouped set of delivery stops shown on the batch layer.
type Batch struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Status string   `json:"status"`
	Stops  []LatLng `json:"stops"`
}
