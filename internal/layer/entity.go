// internal/layer/entity.go
package layer

import (
	"fmt"

	"github.com/fleetlens/maprt/internal/cache"
	"github.com/fleetlens/maprt/internal/engine"
	"github.com/fleetlens/maprt/internal/geo"
	"github.com/fleetlens/maprt/internal/model/convert"
	"github.com/fleetlens/maprt/internal/model/core"
)

// EntityLayer renders moving fleet entities (vehicle and driver layers are
// both instances of it). Every incoming entity passes through capacity
// normalization before rendering: the producer is not trusted to send a
// uniform or complete shape.
type EntityLayer struct {
	base
	nominal float64
	cache   *cache.EntityCache
}

// NewEntityLayer builds a symbol layer for entities. The cache is optional;
// when present every rendered entity is recorded for the trail layer.
func NewEntityLayer(id string, nominalCapacity float64, ec *cache.EntityCache) *EntityLayer {
	return &EntityLayer{
		base: base{
			id: id,
			spec: engine.LayerSpec{
				Type:   "symbol",
				Paint:  map[string]any{"icon-opacity": 1.0},
				Layout: map[string]any{"icon-size": 1.0, "text-field": "name"},
			},
			modes: map[core.Mode]modeProps{
				core.ModeLive: {
					paint:  map[string]any{"icon-opacity": 1.0},
					layout: map[string]any{"icon-size": 1.2, "text-field": "name"},
				},
				core.ModePlanning: {
					paint:  map[string]any{"icon-opacity": 0.6},
					layout: map[string]any{"icon-size": 0.9, "text-field": ""},
				},
				core.ModeReplay: {
					paint:  map[string]any{"icon-opacity": 0.9},
					layout: map[string]any{"icon-size": 1.0, "text-field": "name"},
				},
				core.ModeMinimal: {
					paint:  map[string]any{"icon-opacity": 0.4},
					layout: map[string]any{"icon-size": 0.7, "text-field": ""},
				},
			},
		},
		nominal: nominalCapacity,
		cache:   ec,
	}
}

// Update accepts a []core.Entity batch or raw JSON bytes of the wire shape.
func (l *EntityLayer) Update(data any) error {
	var entities []core.Entity
	switch v := data.(type) {
	case nil:
		entities = nil
	case []core.Entity:
		entities = make([]core.Entity, len(v))
		for i, e := range v {
			entities[i] = convert.NormalizeEntity(e, l.nominal)
		}
	case []byte:
		entities = convert.EntitiesFromJSON(v, l.nominal)
	default:
		return fmt.Errorf("layer %s: unsupported payload type %T", l.id, data)
	}

	if l.cache != nil {
		l.cache.RecordBatch(entities)
	}

	features := make([]engine.Feature, 0, len(entities))
	for _, e := range entities {
		if e.ID == "" {
			continue
		}
		x, y := geo.Project3857(e.Location.LatLng)
		features = append(features, engine.Feature{
			ID: e.ID,
			X:  x,
			Y:  y,
			Props: map[string]any{
				"kind":        string(e.Kind),
				"name":        e.Name,
				"status":      string(e.Status),
				"heading":     e.Location.HeadingDeg,
				"speedKph":    e.Location.SpeedKph,
				"utilization": e.Capacity.UtilizationRatio,
				"available":   e.Capacity.Available,
			},
		})
	}
	return l.setData(features)
}
