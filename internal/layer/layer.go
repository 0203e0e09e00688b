// internal/layer/layer.go

// Package layer holds the registry of visual map layers. Every layer follows
// a mount-once, update-many lifecycle: Mount registers rendering primitives
// with the engine exactly once, Update replaces the rendered data set, and
// visibility is always a paint-level toggle. Layers normalize incoming data
// defensively; a malformed producer batch degrades to what can be rendered
// and never breaks the map.
package layer

import (
	"fmt"
	"sync"

	"github.com/fleetlens/maprt/internal/engine"
	"github.com/fleetlens/maprt/internal/model/core"
)

// Layer identifiers. These double as the keys of the pending update buffer.
const (
	IDVehicles   = "vehicles"
	IDDrivers    = "drivers"
	IDFacilities = "facilities"
	IDWarehouses = "warehouses"
	IDRoutes     = "routes"
	IDAlerts     = "alerts"
	IDTrails     = "trails"
	IDBatches    = "batches"
)

// Layer is one visual data series on the map.
type Layer interface {
	ID() string

	// Mount registers the layer's rendering primitives. Idempotent: the
	// second call is a no-op.
	Mount(eng engine.Engine) error
	Mounted() bool

	// Update replaces the layer's rendered data set. It must accept the
	// payload type the registry routes to it, tolerate an empty batch, and
	// return an error (never panic) on anything else.
	Update(data any) error

	// SetVisible toggles paint-level visibility without touching data.
	SetVisible(visible bool) error

	// ApplyMode applies the paint/layout properties the layer declares for
	// a mode. No structural changes, no re-mount.
	ApplyMode(m core.Mode)

	// FeatureCount reports how many features the layer currently renders.
	FeatureCount() int
}

// modeProps is a layer's visual configuration for one mode.
type modeProps struct {
	paint  map[string]any
	layout map[string]any
}

// base carries the lifecycle shared by all layers.
type base struct {
	mu      sync.Mutex
	id      string
	spec    engine.LayerSpec
	modes   map[core.Mode]modeProps
	eng     engine.Engine
	mounted bool
	count   int
}

func (b *base) ID() string { return b.id }

func (b *base) Mount(eng engine.Engine) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mounted && b.eng == eng {
		return nil
	}
	if err := eng.AddLayer(b.id, b.spec); err != nil {
		return fmt.Errorf("mount layer %s: %w", b.id, err)
	}
	b.eng = eng
	b.mounted = true
	return nil
}

func (b *base) Mounted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mounted
}

func (b *base) SetVisible(visible bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.mounted {
		return fmt.Errorf("layer %s not mounted", b.id)
	}
	return b.eng.SetVisibility(b.id, visible)
}

func (b *base) ApplyMode(m core.Mode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.mounted {
		return
	}
	props, ok := b.modes[m]
	if !ok {
		return
	}
	if len(props.paint) > 0 {
		_ = b.eng.SetPaint(b.id, props.paint)
	}
	if len(props.layout) > 0 {
		_ = b.eng.SetLayout(b.id, props.layout)
	}
}

func (b *base) FeatureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// setData pushes features to the engine and records the count.
func (b *base) setData(features []engine.Feature) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.mounted {
		return fmt.Errorf("layer %s not mounted", b.id)
	}
	if err := b.eng.SetData(b.id, features); err != nil {
		return err
	}
	b.count = len(features)
	return nil
}
