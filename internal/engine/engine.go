// internal/engine/engine.go

// Package engine abstracts the embedded map rendering engine. Implementations
// own a canvas with an asynchronous load sequence; the runtime state machine
// is the only caller allowed to touch an Engine once it owns it.
package engine

// Surface describes the host mounting surface the canvas is attached to.
// Rebinding to a new surface moves the canvas without recreating the engine.
type Surface struct {
	ID     string
	Width  int
	Height int
}

// EventKind discriminates engine lifecycle events.
type EventKind int

const (
	// EventBaseLoaded fires when the engine's base style and tiles are
	// ready and structural layer mutations may begin.
	EventBaseLoaded EventKind = iota
	// EventFault reports an engine-internal failure. The runtime reacts by
	// entering its degraded state.
	EventFault
)

// Event is an engine lifecycle notification.
type Event struct {
	Kind EventKind
	Err  error
}

// LayerSpec declares a layer's rendering primitives at mount time.
type LayerSpec struct {
	Type   string // "symbol", "line", "fill" or "circle"
	Paint  map[string]any
	Layout map[string]any
}

// Feature is one rendered datum, positioned in EPSG:3857 canvas meters.
type Feature struct {
	ID    string         `json:"id"`
	X     float64        `json:"x"`
	Y     float64        `json:"y"`
	Line  [][2]float64   `json:"line,omitempty"` // for line features
	Props map[string]any `json:"props,omitempty"`
}

// Engine is the rendering engine contract. All methods must tolerate being
// called in any order; implementations report readiness and faults through
// the Events channel instead of blocking callers.
type Engine interface {
	// Attach binds the canvas to a surface and (re)starts the async load
	// sequence. Attaching to a new surface moves the existing canvas; it
	// never discards camera state or layer data.
	Attach(s Surface) error

	// Resize tells the engine its surface dimensions changed.
	Resize(s Surface)

	// AddLayer registers a layer's rendering primitives. Implementations
	// must make this idempotent per layer id.
	AddLayer(id string, spec LayerSpec) error

	// HasLayer reports whether a layer is registered.
	HasLayer(id string) bool

	// SetData replaces a layer's rendered feature set.
	SetData(id string, features []Feature) error

	// SetPaint and SetLayout apply visual properties in place.
	SetPaint(id string, props map[string]any) error
	SetLayout(id string, props map[string]any) error

	// SetVisibility toggles a layer without touching its data.
	SetVisibility(id string, visible bool) error

	// Events delivers lifecycle notifications. The channel stays open for
	// the engine's lifetime; a new EventBaseLoaded follows every Attach.
	Events() <-chan Event

	// Close releases the engine. Only called at process shutdown.
	Close() error
}
