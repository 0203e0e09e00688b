// internal/layer/trail.go
package layer

import (
	"fmt"
	"sort"

	"github.com/fleetlens/maprt/internal/cache"
	"github.com/fleetlens/maprt/internal/engine"
	"github.com/fleetlens/maprt/internal/model/core"
)

// TrailLayer renders the recent-position trail of every moving entity. It
// reads from the entity cache rather than from update payloads: any payload
// routed to it just triggers a re-render of the cached trails.
type TrailLayer struct {
	base
	cache *cache.EntityCache
}

// NewTrailLayer builds the line layer for entity trails.
func NewTrailLayer(ec *cache.EntityCache) *TrailLayer {
	return &TrailLayer{
		base: base{
			id: IDTrails,
			spec: engine.LayerSpec{
				Type:  "line",
				Paint: map[string]any{"line-opacity": 0.4, "line-width": 1.5},
			},
			modes: map[core.Mode]modeProps{
				core.ModeLive:     {paint: map[string]any{"line-opacity": 0.4}},
				core.ModePlanning: {paint: map[string]any{"line-opacity": 0.1}},
				core.ModeReplay:   {paint: map[string]any{"line-opacity": 0.9, "line-width": 2.5}},
				core.ModeMinimal:  {paint: map[string]any{"line-opacity": 0.0}},
			},
		},
		cache: ec,
	}
}

// Update re-renders trails from the cache. The payload itself is ignored.
func (l *TrailLayer) Update(any) error {
	if l.cache == nil {
		return fmt.Errorf("layer %s: no entity cache", l.id)
	}

	trails := l.cache.Trails()
	ids := make([]string, 0, len(trails))
	for id := range trails {
		ids = append(ids, id)
	}
	// Stable feature order keeps renders deterministic.
	sort.Strings(ids)

	features := make([]engine.Feature, 0, len(ids))
	for _, id := range ids {
		features = append(features, engine.Feature{
			ID:    "trail-" + id,
			Line:  projectLine(trails[id]),
			Props: map[string]any{"entityId": id},
		})
	}
	return l.setData(features)
}
