// internal/layer/registry.go
package layer

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/fleetlens/maprt/internal/cache"
	"github.com/fleetlens/maprt/internal/engine"
	"github.com/fleetlens/maprt/internal/model/core"
)

// Registry owns one entry per visual layer, in mount order. It is created
// once per runtime and survives detach/attach cycles together with the
// engine it mounted into.
type Registry struct {
	mu    sync.Mutex
	order []string
	byID  map[string]Layer
	mode  core.Mode

	logger *slog.Logger
}

// NewRegistry builds the standard layer set. Line layers mount before symbol
// layers so markers draw on top.
func NewRegistry(nominalCapacity float64, ec *cache.EntityCache, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		byID:   make(map[string]Layer),
		mode:   core.ModeLive,
		logger: logger,
	}
	r.add(NewRouteLayer())
	r.add(NewBatchLayer())
	r.add(NewTrailLayer(ec))
	r.add(NewPlaceLayer(IDWarehouses))
	r.add(NewPlaceLayer(IDFacilities))
	r.add(NewEntityLayer(IDVehicles, nominalCapacity, ec))
	r.add(NewEntityLayer(IDDrivers, nominalCapacity, ec))
	r.add(NewAlertLayer())
	return r
}

func (r *Registry) add(l Layer) {
	r.order = append(r.order, l.ID())
	r.byID[l.ID()] = l
}

// Get returns the layer with the given id.
func (r *Registry) Get(id string) (Layer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.byID[id]
	return l, ok
}

// IDs returns layer ids in mount order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// MountAll mounts every layer into the engine in order, then re-applies the
// current mode so a rebind comes back with the right visual configuration.
// A single failing layer is logged and skipped: a missing decorative layer
// must not block the rest of the map.
func (r *Registry) MountAll(eng engine.Engine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, id := range r.order {
		l := r.byID[id]
		if err := l.Mount(eng); err != nil {
			r.logger.Warn("layer mount failed", "layer", id, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("mount %s: %w", id, err)
			}
			continue
		}
		l.ApplyMode(r.mode)
	}
	return firstErr
}

// AllMounted reports whether every registered layer is mounted.
func (r *Registry) AllMounted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		if !r.byID[id].Mounted() {
			return false
		}
	}
	return true
}

// ApplyMode applies a visual mode to every mounted layer in place.
func (r *Registry) ApplyMode(m core.Mode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = m
	for _, id := range r.order {
		r.byID[id].ApplyMode(m)
	}
}

// Mode returns the currently applied mode.
func (r *Registry) Mode() core.Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// FeatureCounts reports the rendered feature count per layer.
func (r *Registry) FeatureCounts() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.order))
	for _, id := range r.order {
		out[id] = r.byID[id].FeatureCount()
	}
	return out
}
