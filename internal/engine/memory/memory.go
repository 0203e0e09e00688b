// internal/engine/memory/memory.go

// Package memory is the reference engine implementation. It renders nothing
// but keeps the full canvas state in memory, which makes it the workhorse for
// tests and offline demos: layer data, paint properties, and the attached
// surface all survive detach/attach cycles exactly like a real canvas.
package memory

import (
	"fmt"
	"sync"

	"github.com/fleetlens/maprt/internal/channel"
	"github.com/fleetlens/maprt/internal/engine"
)

type layerState struct {
	spec     engine.LayerSpec
	features []engine.Feature
	paint    map[string]any
	layout   map[string]any
	visible  bool
}

// Engine is an in-memory engine.Engine.
type Engine struct {
	mu      sync.Mutex
	surface engine.Surface
	layers  map[string]*layerState
	order   []string
	events  channel.Channel[engine.Event]
	closed  bool

	attachCount int
	resizeCount int
}

// New creates an unattached in-memory engine.
func New() *Engine {
	return &Engine{
		layers: make(map[string]*layerState),
		events: channel.NewBuffered[engine.Event](16),
	}
}

// Attach binds to a surface and immediately reports base-loaded. The load is
// synchronous here, but consumers still observe it through the events channel
// like they would with a real async engine.
func (e *Engine) Attach(s engine.Surface) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return fmt.Errorf("engine closed")
	}
	e.surface = s
	e.attachCount++
	e.events.TrySend(engine.Event{Kind: engine.EventBaseLoaded})
	return nil
}

// Resize records the new surface dimensions.
func (e *Engine) Resize(s engine.Surface) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.surface = s
	e.resizeCount++
}

// AddLayer registers a layer once; repeat calls are no-ops.
func (e *Engine) AddLayer(id string, spec engine.LayerSpec) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.layers[id]; ok {
		return nil
	}
	e.layers[id] = &layerState{
		spec:    spec,
		paint:   cloneProps(spec.Paint),
		layout:  cloneProps(spec.Layout),
		visible: true,
	}
	e.order = append(e.order, id)
	return nil
}

// HasLayer reports whether the layer was added.
func (e *Engine) HasLayer(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.layers[id]
	return ok
}

// SetData replaces the layer's feature set.
func (e *Engine) SetData(id string, features []engine.Feature) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ls, ok := e.layers[id]
	if !ok {
		return fmt.Errorf("unknown layer: %s", id)
	}
	ls.features = append([]engine.Feature(nil), features...)
	return nil
}

// SetPaint merges paint properties in place.
func (e *Engine) SetPaint(id string, props map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ls, ok := e.layers[id]
	if !ok {
		return fmt.Errorf("unknown layer: %s", id)
	}
	for k, v := range props {
		ls.paint[k] = v
	}
	return nil
}

// SetLayout merges layout properties in place.
func (e *Engine) SetLayout(id string, props map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ls, ok := e.layers[id]
	if !ok {
		return fmt.Errorf("unknown layer: %s", id)
	}
	for k, v := range props {
		ls.layout[k] = v
	}
	return nil
}

// SetVisibility toggles the layer, leaving its data untouched.
func (e *Engine) SetVisibility(id string, visible bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ls, ok := e.layers[id]
	if !ok {
		return fmt.Errorf("unknown layer: %s", id)
	}
	ls.visible = visible
	return nil
}

// Events returns the lifecycle channel.
func (e *Engine) Events() <-chan engine.Event { return e.events.Receive() }

// Close marks the engine unusable.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// Fault injects an engine fault event. Test hook.
func (e *Engine) Fault(err error) {
	e.events.TrySend(engine.Event{Kind: engine.EventFault, Err: err})
}

// Surface returns the currently attached surface.
func (e *Engine) Surface() engine.Surface {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.surface
}

// Data returns a copy of a layer's feature set.
func (e *Engine) Data(id string) []engine.Feature {
	e.mu.Lock()
	defer e.mu.Unlock()
	ls, ok := e.layers[id]
	if !ok {
		return nil
	}
	return append([]engine.Feature(nil), ls.features...)
}

// Visible reports a layer's visibility flag.
func (e *Engine) Visible(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ls, ok := e.layers[id]
	return ok && ls.visible
}

// Paint returns a layer's current paint property value.
func (e *Engine) Paint(id, key string) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ls, ok := e.layers[id]
	if !ok {
		return nil, false
	}
	v, ok := ls.paint[key]
	return v, ok
}

// Layout returns a layer's current layout property value.
func (e *Engine) Layout(id, key string) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ls, ok := e.layers[id]
	if !ok {
		return nil, false
	}
	v, ok := ls.layout[key]
	return v, ok
}

// AttachCount and ResizeCount expose lifecycle counters for tests.
func (e *Engine) AttachCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attachCount
}

func (e *Engine) ResizeCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resizeCount
}

func cloneProps(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
