// internal/engine/stream/stream.go

// Package stream is the production engine implementation. It ships canvas
// mutations to a browser host over a reconnecting WebSocket and mirrors all
// layer state locally so a rebind after reconnect can replay the canvas
// without re-fetching anything.
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fleetlens/maprt/internal/channel"
	"github.com/fleetlens/maprt/internal/engine"
	"github.com/fleetlens/maprt/pkg/streaming"
)

// Config holds streaming engine settings.
type Config struct {
	URL    string
	Secret string
}

type mirrorLayer struct {
	spec     engine.LayerSpec
	features []engine.Feature
	visible  bool
}

// Engine streams mutations to a remote canvas host.
type Engine struct {
	conn   *connection
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	surface engine.Surface
	layers  map[string]*mirrorLayer
	dialed  bool

	events channel.Channel[engine.Event]
}

// New creates a streaming engine. Nothing is dialed until the first Attach.
func New(cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		cfg:    cfg,
		logger: logger,
		layers: make(map[string]*mirrorLayer),
		events: channel.NewBuffered[engine.Event](16),
	}
	e.conn = newConnection(logger, func(err error) {
		e.events.TrySend(engine.Event{Kind: engine.EventFault, Err: err})
	})
	return e
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload and pushes it to the write loop
// (fire-and-forget).
func (e *Engine) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	e.conn.send(data)
	return nil
}

// Attach binds the remote canvas to a surface. The first call dials the
// host; later calls only re-bind. Readiness is reported asynchronously on
// the events channel once the host acknowledges the attach.
func (e *Engine) Attach(s engine.Surface) error {
	e.mu.Lock()
	e.surface = s
	needDial := !e.dialed
	if needDial {
		e.dialed = true
	}
	e.mu.Unlock()

	if needDial {
		if err := e.conn.dial(e.cfg.URL, e.cfg.Secret); err != nil {
			e.mu.Lock()
			e.dialed = false
			e.mu.Unlock()
			return err
		}
	}

	data, err := marshalEnvelope(streaming.TypeAttach, streaming.AttachPayload{
		SurfaceID: s.ID,
		Width:     s.Width,
		Height:    s.Height,
	})
	if err != nil {
		return err
	}

	e.conn.mu.Lock()
	e.conn.cachedAttachMsg = data
	e.conn.mu.Unlock()

	go func() {
		if err := e.conn.sendAndWait(data, streaming.TypeAttach, ackTimeout); err != nil {
			e.logger.Warn("attach not acknowledged", "error", err)
			e.events.TrySend(engine.Event{Kind: engine.EventFault, Err: err})
			return
		}
		e.replayMirror()
		e.events.TrySend(engine.Event{Kind: engine.EventBaseLoaded})
	}()
	return nil
}

// replayMirror pushes all mirrored layer state to the host. Called after a
// (re)attach so the canvas matches in-memory state without any re-fetch.
func (e *Engine) replayMirror() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, ml := range e.layers {
		_ = e.sendAddLayerLocked(id, ml.spec)
		if ml.features != nil {
			_ = e.sendDataLocked(id, ml.features)
		}
		_ = e.sendEnvelope(streaming.TypeSetVisibility, streaming.SetVisibilityPayload{
			LayerID: id, Visible: ml.visible,
		})
	}
}

// Resize forwards new surface dimensions.
func (e *Engine) Resize(s engine.Surface) {
	e.mu.Lock()
	e.surface = s
	e.mu.Unlock()
	_ = e.sendEnvelope(streaming.TypeResize, streaming.ResizePayload{
		SurfaceID: s.ID, Width: s.Width, Height: s.Height,
	})
}

func (e *Engine) sendAddLayerLocked(id string, spec engine.LayerSpec) error {
	return e.sendEnvelope(streaming.TypeAddLayer, streaming.AddLayerPayload{
		LayerID: id,
		Kind:    spec.Type,
		Paint:   spec.Paint,
		Layout:  spec.Layout,
	})
}

func (e *Engine) sendDataLocked(id string, features []engine.Feature) error {
	raw, err := json.Marshal(features)
	if err != nil {
		return fmt.Errorf("marshal features for %s: %w", id, err)
	}
	return e.sendEnvelope(streaming.TypeSetData, streaming.SetDataPayload{
		LayerID: id, Features: raw,
	})
}

// AddLayer registers a layer. Idempotent per id.
func (e *Engine) AddLayer(id string, spec engine.LayerSpec) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.layers[id]; ok {
		return nil
	}
	e.layers[id] = &mirrorLayer{spec: spec, visible: true}
	return e.sendAddLayerLocked(id, spec)
}

// HasLayer reports whether the layer was added.
func (e *Engine) HasLayer(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.layers[id]
	return ok
}

// SetData replaces a layer's feature set, mirroring it for replay.
func (e *Engine) SetData(id string, features []engine.Feature) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ml, ok := e.layers[id]
	if !ok {
		return fmt.Errorf("unknown layer: %s", id)
	}
	ml.features = append([]engine.Feature(nil), features...)
	return e.sendDataLocked(id, ml.features)
}

// SetPaint applies paint properties in place.
func (e *Engine) SetPaint(id string, props map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.layers[id]; !ok {
		return fmt.Errorf("unknown layer: %s", id)
	}
	return e.sendEnvelope(streaming.TypeSetPaint, streaming.SetPropsPayload{LayerID: id, Props: props})
}

// SetLayout applies layout properties in place.
func (e *Engine) SetLayout(id string, props map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.layers[id]; !ok {
		return fmt.Errorf("unknown layer: %s", id)
	}
	return e.sendEnvelope(streaming.TypeSetLayout, streaming.SetPropsPayload{LayerID: id, Props: props})
}

// SetVisibility toggles a layer, leaving its mirrored data untouched.
func (e *Engine) SetVisibility(id string, visible bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ml, ok := e.layers[id]
	if !ok {
		return fmt.Errorf("unknown layer: %s", id)
	}
	ml.visible = visible
	return e.sendEnvelope(streaming.TypeSetVisibility, streaming.SetVisibilityPayload{
		LayerID: id, Visible: visible,
	})
}

// Events returns the lifecycle channel.
func (e *Engine) Events() <-chan engine.Event { return e.events.Receive() }

// Close shuts the connection down.
func (e *Engine) Close() error {
	return e.conn.close()
}
