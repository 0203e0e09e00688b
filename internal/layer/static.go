// internal/layer/static.go
package layer

import (
	"fmt"

	"github.com/fleetlens/maprt/internal/engine"
	"github.com/fleetlens/maprt/internal/geo"
	"github.com/fleetlens/maprt/internal/model/core"
)

// PlaceLayer renders static places (facilities, warehouses).
type PlaceLayer struct {
	base
}

// NewPlaceLayer builds a symbol layer for static places.
func NewPlaceLayer(id string) *PlaceLayer {
	return &PlaceLayer{
		base: base{
			id: id,
			spec: engine.LayerSpec{
				Type:   "symbol",
				Paint:  map[string]any{"icon-opacity": 1.0},
				Layout: map[string]any{"icon-size": 1.0, "text-field": "name"},
			},
			modes: map[core.Mode]modeProps{
				core.ModeLive:     {paint: map[string]any{"icon-opacity": 0.9}},
				core.ModePlanning: {paint: map[string]any{"icon-opacity": 1.0}, layout: map[string]any{"icon-size": 1.3}},
				core.ModeReplay:   {paint: map[string]any{"icon-opacity": 0.7}},
				core.ModeMinimal:  {paint: map[string]any{"icon-opacity": 0.3}, layout: map[string]any{"text-field": ""}},
			},
		},
	}
}

// Update accepts a []core.Place batch.
func (l *PlaceLayer) Update(data any) error {
	var places []core.Place
	switch v := data.(type) {
	case nil:
	case []core.Place:
		places = v
	default:
		return fmt.Errorf("layer %s: unsupported payload type %T", l.id, data)
	}

	features := make([]engine.Feature, 0, len(places))
	for _, p := range places {
		if p.ID == "" {
			continue
		}
		x, y := geo.Project3857(p.Coord)
		features = append(features, engine.Feature{
			ID: p.ID,
			X:  x,
			Y:  y,
			Props: map[string]any{
				"name":     p.Name,
				"category": p.Category,
				"slots":    p.Slots,
			},
		})
	}
	return l.setData(features)
}

// RouteLayer renders route polylines.
type RouteLayer struct {
	base
}

// NewRouteLayer builds the line layer for routes.
func NewRouteLayer() *RouteLayer {
	return &RouteLayer{
		base: base{
			id: IDRoutes,
			spec: engine.LayerSpec{
				Type:  "line",
				Paint: map[string]any{"line-opacity": 0.8, "line-width": 3.0},
			},
			modes: map[core.Mode]modeProps{
				core.ModeLive:     {paint: map[string]any{"line-opacity": 0.8, "line-width": 3.0}},
				core.ModePlanning: {paint: map[string]any{"line-opacity": 1.0, "line-width": 5.0}},
				core.ModeReplay:   {paint: map[string]any{"line-opacity": 0.5, "line-width": 2.0}},
				core.ModeMinimal:  {paint: map[string]any{"line-opacity": 0.2, "line-width": 1.0}},
			},
		},
	}
}

// Update accepts a []core.Route batch. Routes too short to draw are skipped.
func (l *RouteLayer) Update(data any) error {
	var routes []core.Route
	switch v := data.(type) {
	case nil:
	case []core.Route:
		routes = v
	default:
		return fmt.Errorf("layer %s: unsupported payload type %T", l.id, data)
	}

	features := make([]engine.Feature, 0, len(routes))
	for _, r := range routes {
		if r.ID == "" || !r.Valid() {
			continue
		}
		features = append(features, engine.Feature{
			ID:    r.ID,
			Line:  projectLine(r.Polyline),
			Props: map[string]any{"waypoints": len(r.Waypoints)},
		})
	}
	return l.setData(features)
}

// AlertLayer renders alert markers.
type AlertLayer struct {
	base
}

// NewAlertLayer builds the circle layer for alerts.
func NewAlertLayer() *AlertLayer {
	return &AlertLayer{
		base: base{
			id: IDAlerts,
			spec: engine.LayerSpec{
				Type:  "circle",
				Paint: map[string]any{"circle-opacity": 1.0, "circle-radius": 8.0},
			},
			modes: map[core.Mode]modeProps{
				core.ModeLive:     {paint: map[string]any{"circle-opacity": 1.0, "circle-radius": 8.0}},
				core.ModePlanning: {paint: map[string]any{"circle-opacity": 0.5, "circle-radius": 5.0}},
				core.ModeReplay:   {paint: map[string]any{"circle-opacity": 0.8, "circle-radius": 6.0}},
				core.ModeMinimal:  {paint: map[string]any{"circle-opacity": 0.3, "circle-radius": 4.0}},
			},
		},
	}
}

// Update accepts a []core.Alert batch.
func (l *AlertLayer) Update(data any) error {
	var alerts []core.Alert
	switch v := data.(type) {
	case nil:
	case []core.Alert:
		alerts = v
	default:
		return fmt.Errorf("layer %s: unsupported payload type %T", l.id, data)
	}

	features := make([]engine.Feature, 0, len(alerts))
	for _, a := range alerts {
		if a.ID == "" {
			continue
		}
		x, y := geo.Project3857(a.Coord)
		features = append(features, engine.Feature{
			ID: a.ID,
			X:  x,
			Y:  y,
			Props: map[string]any{
				"severity": a.Severity,
				"message":  a.Message,
				"entityId": a.EntityID,
			},
		})
	}
	return l.setData(features)
}

// BatchLayer renders delivery batches as stop sequences.
type BatchLayer struct {
	base
}

// NewBatchLayer builds the line layer for delivery batches.
func NewBatchLayer() *BatchLayer {
	return &BatchLayer{
		base: base{
			id: IDBatches,
			spec: engine.LayerSpec{
				Type:  "line",
				Paint: map[string]any{"line-opacity": 0.6, "line-width": 2.0},
			},
			modes: map[core.Mode]modeProps{
				core.ModeLive:     {paint: map[string]any{"line-opacity": 0.6}},
				core.ModePlanning: {paint: map[string]any{"line-opacity": 1.0, "line-width": 4.0}},
				core.ModeReplay:   {paint: map[string]any{"line-opacity": 0.4}},
				core.ModeMinimal:  {paint: map[string]any{"line-opacity": 0.15}},
			},
		},
	}
}

// Update accepts a []core.Batch batch. Batches with fewer than two stops are
// rendered as nothing rather than rejected.
func (l *BatchLayer) Update(data any) error {
	var batches []core.Batch
	switch v := data.(type) {
	case nil:
	case []core.Batch:
		batches = v
	default:
		return fmt.Errorf("layer %s: unsupported payload type %T", l.id, data)
	}

	features := make([]engine.Feature, 0, len(batches))
	for _, b := range batches {
		if b.ID == "" || len(b.Stops) < 2 {
			continue
		}
		features = append(features, engine.Feature{
			ID:   b.ID,
			Line: projectLine(b.Stops),
			Props: map[string]any{
				"name":   b.Name,
				"status": b.Status,
				"stops":  len(b.Stops),
			},
		})
	}
	return l.setData(features)
}

func projectLine(points []core.LatLng) [][2]float64 {
	line := make([][2]float64, len(points))
	for i, p := range points {
		x, y := geo.Project3857(p)
		line[i] = [2]float64{x, y}
	}
	return line
}
