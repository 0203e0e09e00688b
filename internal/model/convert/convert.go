// internal/model/convert/convert.go

// Package convert normalizes producer-shaped entity data into core types.
// Different producers (live feed, simulator, partial telemetry) do not emit a
// uniform shape, so every path through here tolerates missing fields and
// derives what it can instead of failing. A rendering layer must never crash
// on malformed input.
package convert

import (
	"encoding/json"

	"github.com/fleetlens/maprt/internal/model/core"
)

// DefaultNominalCapacity is used when a producer sends no capacity at all.
const DefaultNominalCapacity = 100

// RawEntity is the wire shape of an entity before normalization. Capacity may
// arrive as a nested object, a flat number, or not at all; the load figure may
// arrive under "used", "current_load", or "load".
type RawEntity struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind,omitempty"`
	Name        string          `json:"name,omitempty"`
	Lat         float64         `json:"lat"`
	Lng         float64         `json:"lng"`
	HeadingDeg  float64         `json:"headingDegrees"`
	SpeedKph    float64         `json:"speedKph"`
	Status      string          `json:"status,omitempty"`
	RouteID     string          `json:"routeId,omitempty"`
	Capacity    json.RawMessage `json:"capacity,omitempty"`
	CurrentLoad *float64        `json:"current_load,omitempty"`
	Load        *float64        `json:"load,omitempty"`
	Used        *float64        `json:"used,omitempty"`
}

// capacityObject is the nested capacity shape. Pointers distinguish "absent"
// from zero so partial objects can be completed.
type capacityObject struct {
	Total            *float64 `json:"total"`
	Used             *float64 `json:"used"`
	Available        *float64 `json:"available"`
	UtilizationRatio *float64 `json:"utilizationRatio"`
}

// DeriveCapacity fills in Available and UtilizationRatio from Total and Used.
// Total falls back to nominal when absent or non-positive; Used defaults to 0
// and is clamped into [0, Total].
func DeriveCapacity(c core.Capacity, nominal float64) core.Capacity {
	if nominal <= 0 {
		nominal = DefaultNominalCapacity
	}
	if c.Total <= 0 {
		c.Total = nominal
	}
	if c.Used < 0 {
		c.Used = 0
	}
	if c.Used > c.Total {
		c.Used = c.Total
	}
	c.Available = c.Total - c.Used
	c.UtilizationRatio = c.Used / c.Total
	return c
}

// NormalizeCapacity interprets any of the tolerated capacity shapes:
//
//   - nested object: {"total": 100, "used": 30, ...}
//   - flat number plus a separate load field: "capacity": 100, "current_load": 30
//   - absent entirely
//
// and always returns a fully derived core.Capacity. It never returns an error;
// unparseable input degrades to the nominal default.
func NormalizeCapacity(raw json.RawMessage, load *float64, nominal float64) core.Capacity {
	var c core.Capacity

	if load != nil {
		c.Used = *load
	}

	if len(raw) > 0 {
		var flat float64
		if err := json.Unmarshal(raw, &flat); err == nil {
			c.Total = flat
			return DeriveCapacity(c, nominal)
		}
		var obj capacityObject
		if err := json.Unmarshal(raw, &obj); err == nil {
			if obj.Total != nil {
				c.Total = *obj.Total
			}
			if obj.Used != nil {
				c.Used = *obj.Used
			}
			// Available/UtilizationRatio are recomputed below even when the
			// producer sent them, so the invariant holds regardless of input.
		}
	}

	return DeriveCapacity(c, nominal)
}

// EntityFromRaw builds a normalized core.Entity from the wire shape.
func EntityFromRaw(raw RawEntity, nominal float64) core.Entity {
	load := raw.Used
	if load == nil {
		load = raw.CurrentLoad
	}
	if load == nil {
		load = raw.Load
	}

	kind := core.EntityKind(raw.Kind)
	if kind != core.KindDriver {
		kind = core.KindVehicle
	}

	status := core.Status(raw.Status)
	if status == "" {
		status = core.StatusIdle
	}

	return core.Entity{
		ID:   raw.ID,
		Kind: kind,
		Name: raw.Name,
		Location: core.Location{
			LatLng:     core.LatLng{Lat: raw.Lat, Lng: raw.Lng},
			HeadingDeg: raw.HeadingDeg,
			SpeedKph:   raw.SpeedKph,
		},
		Capacity: NormalizeCapacity(raw.Capacity, load, nominal),
		Status:   status,
		RouteID:  raw.RouteID,
	}
}

// NormalizeEntity re-derives the capacity invariant on an already-typed
// entity. Used at the layer boundary for producers that send core.Entity
// values with partial capacity.
func NormalizeEntity(e core.Entity, nominal float64) core.Entity {
	e.Capacity = DeriveCapacity(e.Capacity, nominal)
	if e.Status == "" {
		e.Status = core.StatusIdle
	}
	if e.Kind == "" {
		e.Kind = core.KindVehicle
	}
	return e
}

// EntitiesFromJSON decodes a JSON array of raw entities, dropping elements
// that fail to decode rather than rejecting the whole batch.
func EntitiesFromJSON(data []byte, nominal float64) []core.Entity {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil
	}
	out := make([]core.Entity, 0, len(raws))
	for _, r := range raws {
		var raw RawEntity
		if err := json.Unmarshal(r, &raw); err != nil {
			continue
		}
		if raw.ID == "" {
			continue
		}
		out = append(out, EntityFromRaw(raw, nominal))
	}
	return out
}
