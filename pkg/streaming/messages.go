// Package streaming defines the wire protocol between the map runtime and a
// browser canvas host. Every message travels inside an Envelope.
package streaming

import "encoding/json"

// Message type constants for canvas mutations.
const (
	TypeAttach        = "attach"
	TypeResize        = "resize"
	TypeAddLayer      = "add_layer"
	TypeSetData       = "set_data"
	TypeSetPaint      = "set_paint"
	TypeSetLayout     = "set_layout"
	TypeSetVisibility = "set_visibility"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the canvas host's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// AttachPayload binds the remote canvas to a surface.
type AttachPayload struct {
	SurfaceID string `json:"surfaceId"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// ResizePayload carries new surface dimensions.
type ResizePayload struct {
	SurfaceID string `json:"surfaceId"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// AddLayerPayload declares a layer's rendering primitives.
type AddLayerPayload struct {
	LayerID string         `json:"layerId"`
	Kind    string         `json:"kind"`
	Paint   map[string]any `json:"paint,omitempty"`
	Layout  map[string]any `json:"layout,omitempty"`
}

// SetDataPayload replaces a layer's feature set.
type SetDataPayload struct {
	LayerID  string          `json:"layerId"`
	Features json.RawMessage `json:"features"`
}

// SetPropsPayload applies paint or layout properties in place.
type SetPropsPayload struct {
	LayerID string         `json:"layerId"`
	Props   map[string]any `json:"props"`
}

// SetVisibilityPayload toggles a layer without touching its data.
type SetVisibilityPayload struct {
	LayerID string `json:"layerId"`
	Visible bool   `json:"visible"`
}
