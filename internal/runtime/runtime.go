// internal/runtime/runtime.go

// Package runtime implements the map lifecycle state machine. The Runtime is
// the single owner of the rendering engine: it sequences attach, engine load,
// layer mounting and the one-shot flush of buffered updates, and it gates
// every external command on the current state. Commands that arrive in the
// wrong state are buffered or dropped, never errors for the caller.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fleetlens/maprt/internal/buffer"
	"github.com/fleetlens/maprt/internal/engine"
	"github.com/fleetlens/maprt/internal/layer"
	"github.com/fleetlens/maprt/internal/model/core"
	"github.com/fleetlens/maprt/internal/sim"
)

// DefaultLoadTimeout bounds how long an engine may take between Attach and
// its base-loaded event before the runtime logs a stall. The runtime does not
// give up at the deadline; a late event still completes the sequence.
const DefaultLoadTimeout = 30 * time.Second

// Option configures a Runtime.
type Option func(*Runtime)

// WithLoadTimeout overrides the engine load stall deadline.
func WithLoadTimeout(d time.Duration) Option {
	return func(r *Runtime) {
		r.loadTimeout = d
	}
}

// WithSimEventSink registers a sink that receives simulation events whenever
// demo mode is active. Used by the replay recorder.
func WithSimEventSink(sink sim.EventSink) Option {
	return func(r *Runtime) {
		r.simEventSink = sink
	}
}

// WithSimTickSink registers a sink that receives per-tick fleet snapshots
// whenever demo mode is active. Used by the replay recorder.
func WithSimTickSink(sink sim.TickSink) Option {
	return func(r *Runtime) {
		r.simTickSink = sink
	}
}

// Runtime is the lifecycle authority over one engine and its layer set.
type Runtime struct {
	logger      *slog.Logger
	eng         engine.Engine
	reg         *layer.Registry
	pending     *buffer.Pending
	loadTimeout time.Duration

	mu       sync.Mutex
	state    State
	surface  engine.Surface
	attached bool
	playback *core.Playback
	sim      *sim.Engine

	simEventSink sim.EventSink
	simTickSink  sim.TickSink

	done chan struct{}

	// OTEL metrics
	transitions metric.Int64Counter
	rejected    metric.Int64Counter
	buffered    metric.Int64Counter
	applied     metric.Int64Counter
}

// New wires a Runtime around an engine and a layer registry. The returned
// runtime starts in UNINITIALIZED and watches the engine's event channel for
// its whole lifetime.
func New(eng engine.Engine, reg *layer.Registry, logger *slog.Logger, opts ...Option) (*Runtime, error) {
	r := &Runtime{
		logger:      logger.With("component", "runtime"),
		eng:         eng,
		reg:         reg,
		pending:     buffer.New(),
		loadTimeout: DefaultLoadTimeout,
		state:       StateUninitialized,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	m := meter()

	var err error
	r.transitions, err = m.Int64Counter(
		"map.runtime.transitions",
		metric.WithDescription("Total accepted state transitions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating transitions counter: %w", err)
	}
	r.rejected, err = m.Int64Counter(
		"map.runtime.transitions.rejected",
		metric.WithDescription("Total rejected state transitions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rejected counter: %w", err)
	}
	r.buffered, err = m.Int64Counter(
		"map.updates.buffered",
		metric.WithDescription("Updates held back because the map was not ready"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating buffered counter: %w", err)
	}
	r.applied, err = m.Int64Counter(
		"map.updates.applied",
		metric.WithDescription("Updates applied to mounted layers"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating applied counter: %w", err)
	}

	go r.watchEngine()

	return r, nil
}

// State returns the current lifecycle state.
func (r *Runtime) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// CanAcceptUpdates reports whether updates apply immediately instead of being
// buffered.
func (r *Runtime) CanAcceptUpdates() bool {
	return r.State() == StateReady
}

// HasPlaybackData reports whether a valid playback window has been received.
func (r *Runtime) HasPlaybackData() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playback != nil
}

// Playback returns the current playback window, if any.
func (r *Runtime) Playback() (core.Playback, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.playback == nil {
		return core.Playback{}, false
	}
	return *r.playback, true
}

// PendingKeys lists the layer ids with a buffered update. Monitoring only.
func (r *Runtime) PendingKeys() []string {
	return r.pending.Keys()
}

// DemoActive reports whether the simulation engine is running.
func (r *Runtime) DemoActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim != nil
}

// Sim returns the active simulation engine, if any.
func (r *Runtime) Sim() (*sim.Engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sim == nil {
		return nil, false
	}
	return r.sim, true
}

// setState records an already-validated transition. Callers hold r.mu.
func (r *Runtime) setState(to State) {
	from := r.state
	r.state = to
	r.logger.Info("state transition", "from", from.String(), "to", to.String())
	r.transitions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("from", from.String()),
		attribute.String("to", to.String()),
	))
}

// transition validates and applies a state change. Invalid transitions are
// logged and refused; the runtime stays where it is. Callers hold r.mu.
func (r *Runtime) transition(to State) bool {
	if !canTransition(r.state, to) {
		r.logger.Warn("invalid state transition ignored",
			"from", r.state.String(), "to", to.String())
		r.rejected.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("from", r.state.String()),
			attribute.String("to", to.String()),
		))
		return false
	}
	r.setState(to)
	return true
}

// Attach binds the map to a host surface and starts the load sequence.
// Attaching to the surface the runtime already occupies is a no-op. Attaching
// while bound elsewhere, or while degraded, detaches first and rebinds the
// existing engine so camera state and layer data survive the move.
func (r *Runtime) Attach(s engine.Surface) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.attached && r.surface.ID == s.ID &&
		r.state != StateDetached && r.state != StateDegraded {
		r.logger.Debug("attach ignored, already bound", "surface", s.ID)
		return
	}

	// Rebinding or recovering: fall back to DETACHED before re-entering the
	// load sequence.
	if r.state != StateUninitialized && r.state != StateDetached {
		if !r.transition(StateDetached) {
			return
		}
	}

	if !r.transition(StateInitializing) {
		return
	}

	r.surface = s
	r.attached = true

	if err := r.eng.Attach(s); err != nil {
		r.logger.Error("engine attach failed", "surface", s.ID, "error", err)
		r.attached = false
		r.transition(StateDetached)
		return
	}
	r.eng.Resize(s)

	deadline := r.loadTimeout
	time.AfterFunc(deadline, func() {
		if r.State() == StateInitializing {
			r.logger.Warn("engine load exceeded deadline",
				"surface", s.ID, "timeout", deadline)
		}
	})
}

// Resize reports new dimensions for the current surface. Ignored while the
// map is unbound.
func (r *Runtime) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.attached {
		r.logger.Debug("resize without surface ignored")
		return
	}
	r.surface.Width = width
	r.surface.Height = height
	r.eng.Resize(r.surface)
}

// Detach unbinds the map from its surface. The engine and all layer data are
// retained; a later Attach resumes from where the map left off.
func (r *Runtime) Detach() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.transition(StateDetached) {
		return
	}
	r.attached = false
}

// watchEngine is the single consumer of the engine's event channel.
func (r *Runtime) watchEngine() {
	events := r.eng.Events()
	for {
		select {
		case <-r.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Kind {
			case engine.EventBaseLoaded:
				r.onBaseLoaded()
			case engine.EventFault:
				r.onFault(ev.Err)
			}
		}
	}
}

// onBaseLoaded drives the mount-and-flush sequence. The whole sequence runs
// under the runtime lock so updates arriving concurrently are buffered until
// READY and then picked up by the flush exactly once.
func (r *Runtime) onBaseLoaded() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateInitializing {
		r.logger.Debug("base loaded event ignored", "state", r.state.String())
		return
	}
	r.transition(StateLoadingLayers)

	if err := r.reg.MountAll(r.eng); err != nil {
		// Partial mounts degrade individual layers, not the map. Buffered
		// updates for an unmounted layer stay buffered.
		r.logger.Warn("layer mounting incomplete", "error", err)
	}
	r.transition(StateLayersMounted)

	r.flushLocked()
	r.transition(StateReady)
}

// onFault moves a ready map to DEGRADED. Faults in other states are logged
// and otherwise ignored; the load stall deadline covers the attach path.
func (r *Runtime) onFault(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Error("engine fault", "state", r.state.String(), "error", err)
	if r.state == StateReady {
		r.transition(StateDegraded)
	}
}

// flushLocked applies every buffered update to its mounted layer. Entries for
// layers that failed to mount are put back untouched. Callers hold r.mu.
func (r *Runtime) flushLocked() {
	drained := r.pending.Drain()
	if len(drained) == 0 {
		return
	}
	r.logger.Info("flushing buffered updates", "layers", len(drained))
	for id, data := range drained {
		l, ok := r.reg.Get(id)
		if !ok || !l.Mounted() {
			r.pending.Put(id, data)
			continue
		}
		r.applyLocked(l, data)
	}
}

// applyLocked hands data to a mounted layer and keeps the trail layer in step
// with entity movement. Callers hold r.mu.
func (r *Runtime) applyLocked(l layer.Layer, data any) {
	if err := l.Update(data); err != nil {
		r.logger.Warn("layer update failed", "layer", l.ID(), "error", err)
		return
	}
	r.applied.Add(context.Background(), 1, metric.WithAttributes(attribute.String("layer", l.ID())))

	if l.ID() == layer.IDVehicles || l.ID() == layer.IDDrivers {
		if tl, ok := r.reg.Get(layer.IDTrails); ok && tl.Mounted() {
			if err := tl.Update(nil); err != nil {
				r.logger.Warn("trail refresh failed", "error", err)
			}
		}
	}
}

// Update routes one payload from a data producer. Each present field either
// applies immediately (READY) or replaces the pending entry for its layer
// (anywhere else). Absent fields leave their layers untouched.
func (r *Runtime) Update(p core.UpdatePayload) {
	if p.Empty() {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if p.Playback != nil {
		r.setPlaybackLocked(*p.Playback)
	}

	route := func(id string, data any) {
		if r.state == StateReady {
			if l, ok := r.reg.Get(id); ok && l.Mounted() {
				r.applyLocked(l, data)
				return
			}
		}
		r.pending.Put(id, data)
		r.buffered.Add(context.Background(), 1, metric.WithAttributes(attribute.String("layer", id)))
	}

	if p.Vehicles != nil {
		route(layer.IDVehicles, p.Vehicles)
	}
	if p.Drivers != nil {
		route(layer.IDDrivers, p.Drivers)
	}
	if p.Routes != nil {
		route(layer.IDRoutes, p.Routes)
	}
	if p.Alerts != nil {
		route(layer.IDAlerts, p.Alerts)
	}
	if p.Batches != nil {
		route(layer.IDBatches, p.Batches)
	}
	if p.Warehouses != nil {
		route(layer.IDWarehouses, p.Warehouses)
	}
	if p.Facilities != nil {
		route(layer.IDFacilities, p.Facilities)
	}
}

// setPlaybackLocked validates and stores a playback window. An invalid window
// keeps whatever was stored before. Callers hold r.mu.
func (r *Runtime) setPlaybackLocked(p core.Playback) {
	if !p.Valid() {
		r.logger.Warn("invalid playback window ignored",
			"start", p.StartTime, "end", p.EndTime)
		return
	}
	clamped := p.Clamped()
	r.playback = &clamped
}

// ToggleLayerVisibility flips one layer's paint-level visibility. Valid once
// layers are mounted; a no-op before that or for an unknown layer.
func (r *Runtime) ToggleLayerVisibility(id string, visible bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateLayersMounted && r.state != StateReady {
		r.logger.Debug("visibility toggle ignored",
			"layer", id, "state", r.state.String())
		return
	}
	l, ok := r.reg.Get(id)
	if !ok {
		r.logger.Warn("visibility toggle for unknown layer", "layer", id)
		return
	}
	if err := l.SetVisible(visible); err != nil {
		r.logger.Warn("visibility toggle failed", "layer", id, "error", err)
	}
}

// ApplyModeConfig switches the display mode. Unknown modes are refused; the
// registry re-applies the active mode to late-mounting layers on its own.
func (r *Runtime) ApplyModeConfig(m core.Mode) {
	if !core.KnownMode(m) {
		r.logger.Warn("unknown display mode ignored", "mode", string(m))
		return
	}
	r.reg.ApplyMode(m)
	r.logger.Info("display mode applied", "mode", string(m))
}

// Mode returns the active display mode.
func (r *Runtime) Mode() core.Mode {
	return r.reg.Mode()
}

// EnableDemoMode starts the deterministic movement simulation, feeding its
// ticks through Update like any other producer. Requires READY. Calling it
// while a simulation is already running is a no-op.
func (r *Runtime) EnableDemoMode(cfg sim.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateReady {
		r.logger.Warn("demo mode refused", "state", r.state.String())
		return fmt.Errorf("demo mode requires a ready map, state is %s", r.state)
	}
	if r.sim != nil {
		r.logger.Debug("demo mode already active")
		return nil
	}

	eng, err := sim.New(cfg, r, r.logger)
	if err != nil {
		return fmt.Errorf("starting simulation: %w", err)
	}
	if r.simEventSink != nil {
		eng.SetEventSink(r.simEventSink)
	}
	if r.simTickSink != nil {
		eng.SetTickSink(r.simTickSink)
	}
	r.sim = eng
	eng.Start()
	r.logger.Info("demo mode enabled",
		"vehicles", cfg.Vehicles, "routes", len(cfg.Routes), "seed", cfg.Seed)
	return nil
}

// DisableDemoMode stops and discards the simulation engine. Safe to call when
// no simulation is running.
func (r *Runtime) DisableDemoMode() {
	r.mu.Lock()
	eng := r.sim
	r.sim = nil
	r.mu.Unlock()

	if eng == nil {
		return
	}
	eng.Stop()
	r.logger.Info("demo mode disabled")
}

// Close stops the simulation, stops watching the engine and releases it.
func (r *Runtime) Close() error {
	r.DisableDemoMode()
	close(r.done)
	return r.eng.Close()
}
