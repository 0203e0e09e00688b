// internal/sim/engine.go

// Package sim is the deterministic demo and stress harness. It generates a
// reproducible stream of moving entities and pushes each tick's batch through
// the same update path a live feed would use: at the runtime boundary the
// simulator is indistinguishable from production data.
package sim

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/fleetlens/maprt/internal/model/core"
)

// UpdateSink receives each tick's batch. The runtime's Update method
// satisfies this; the engine holds no reference to anything behind it.
type UpdateSink interface {
	Update(core.UpdatePayload)
}

// EventSink optionally receives every event as it is appended to the log.
// Used by the forensic replay recorder.
type EventSink func(core.SimEvent)

// TickSink optionally receives each completed tick's fleet snapshot.
type TickSink func(tick uint64, simTime time.Time, entities []core.Entity)

// Config controls a simulation run. The same Seed with the same tick count
// always reproduces bit-identical trajectories.
type Config struct {
	Seed          int64
	TickInterval  time.Duration
	PlaybackSpeed float64
	Vehicles      int
	Routes        []core.Route
	Zones         []core.TrafficZone

	BaseSpeedKph float64
	MinSpeedKph  float64
	JitterRatio  float64

	// Per-tick incident probabilities, evaluated per entity.
	DelayProbability     float64
	BreakdownProbability float64

	// LoopRoutes resets an entity to the route start after completion
	// instead of parking it idle.
	LoopRoutes bool

	// StartTime anchors the simulated clock. Fixed default keeps the
	// time-of-day factors deterministic across runs.
	StartTime time.Time
}

// defaultStartTime is a Monday 10:00 UTC, outside every rush-hour window.
var defaultStartTime = time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)

const (
	defaultTickInterval = 2 * time.Second
	delayTicks          = 5
)

type simEntity struct {
	entity   core.Entity
	progress *Progress
	inZones  map[string]bool
	delayed  uint64 // tick at which a delay ends
	broken   bool
}

// Engine orchestrates the fixed-interval tick loop over a simulated fleet.
// It owns the append-only event log (single writer) and reports every batch
// to its sink. Safe to destroy and recreate without touching runtime state.
type Engine struct {
	cfg   Config
	model SpeedModel
	rng   *rand.Rand
	sink  UpdateSink

	mu       sync.Mutex
	entities []*simEntity
	events   []core.SimEvent
	tick     uint64
	simTime  time.Time

	eventSink EventSink
	tickSink  TickSink
	logger    *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New builds an engine from config. Returns an error when no walkable route
// is available; everything else falls back to defaults.
func New(cfg Config, sink UpdateSink, logger *slog.Logger) (*Engine, error) {
	if sink == nil {
		return nil, fmt.Errorf("sim: nil update sink")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.PlaybackSpeed <= 0 {
		cfg.PlaybackSpeed = 1
	}
	if cfg.Vehicles <= 0 {
		cfg.Vehicles = 10
	}
	if cfg.StartTime.IsZero() {
		cfg.StartTime = defaultStartTime
	}

	routes := make([]core.Route, 0, len(cfg.Routes))
	for _, r := range cfg.Routes {
		if r.Valid() {
			routes = append(routes, r)
		}
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("sim: no walkable routes configured")
	}
	cfg.Routes = routes

	e := &Engine{
		cfg:     cfg,
		model:   NewSpeedModel(cfg.BaseSpeedKph, cfg.MinSpeedKph, cfg.JitterRatio, cfg.Zones),
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		sink:    sink,
		simTime: cfg.StartTime,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
	e.placeFleet()
	return e, nil
}

// placeFleet creates the simulated entities. Initial placement draws from the
// seeded generator so it replays identically.
func (e *Engine) placeFleet() {
	e.entities = make([]*simEntity, 0, e.cfg.Vehicles)
	for i := 0; i < e.cfg.Vehicles; i++ {
		route := e.cfg.Routes[i%len(e.cfg.Routes)]
		prog := NewProgress(route)
		// Scatter along the first quarter of the route.
		startM := e.rng.Float64() * 0.25 * PolylineLength(route)
		prog.Advance(startM)

		total := 40 + float64(e.rng.Intn(8))*10
		used := float64(e.rng.Intn(int(total)))

		ent := core.Entity{
			ID:      fmt.Sprintf("sim-veh-%02d", i+1),
			Kind:    core.KindVehicle,
			Name:    fmt.Sprintf("Sim Vehicle %d", i+1),
			Status:  core.StatusEnRoute,
			RouteID: route.ID,
			Capacity: core.Capacity{
				Total: total,
				Used:  used,
			},
		}
		ent.Capacity.Available = total - used
		ent.Capacity.UtilizationRatio = used / total
		ent.Location = core.Location{
			LatLng:     prog.Position(),
			HeadingDeg: prog.Heading(),
		}

		e.entities = append(e.entities, &simEntity{
			entity:   ent,
			progress: prog,
			inZones:  make(map[string]bool),
		})
	}
}

// Start launches the tick loop. Each wall-clock TickInterval advances the
// simulated clock by TickInterval times PlaybackSpeed.
func (e *Engine) Start() {
	interval := e.cfg.TickInterval
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-e.stopCh:
				return
			case <-ticker.C:
				e.sink.Update(e.Step())
			}
		}
	}()
	e.logger.Info("simulation started",
		"seed", e.cfg.Seed, "vehicles", e.cfg.Vehicles,
		"tickInterval", e.cfg.TickInterval, "playbackSpeed", e.cfg.PlaybackSpeed)
}

// Stop halts the tick loop. Idempotent.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()
}

// SetEventSink attaches a consumer for appended events. Call before Start.
func (e *Engine) SetEventSink(sink EventSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.eventSink = sink
}

// SetTickSink attaches a consumer for per-tick fleet snapshots. Call before
// Start.
func (e *Engine) SetTickSink(sink TickSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickSink = sink
}

// Step advances every entity by one simulated tick and returns the resulting
// batch. Exported so tests and forensic replay can drive the engine without
// the wall-clock timer.
func (e *Engine) Step() core.UpdatePayload {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.tick++
	dt := time.Duration(float64(e.cfg.TickInterval) * e.cfg.PlaybackSpeed)
	e.simTime = e.simTime.Add(dt)
	dtSec := dt.Seconds()

	batch := make([]core.Entity, 0, len(e.entities))
	for _, se := range e.entities {
		e.stepEntity(se, dtSec)
		batch = append(batch, se.entity)
	}

	if e.tickSink != nil {
		e.tickSink(e.tick, e.simTime, batch)
	}

	return core.UpdatePayload{Vehicles: batch}
}

// stepEntity advances one entity. Randomness is drawn in a fixed order per
// entity per tick (delay roll, breakdown roll, jitter) so trajectories stay
// seed-deterministic.
func (e *Engine) stepEntity(se *simEntity, dtSec float64) {
	delayRoll := e.rng.Float64()
	breakRoll := e.rng.Float64()
	jitter := (e.rng.Float64()*2 - 1) * e.model.JitterRatio

	if se.broken {
		se.entity.Location.SpeedKph = 0
		return
	}
	if se.progress.Done() && !e.cfg.LoopRoutes {
		se.entity.Status = core.StatusIdle
		se.entity.Location.SpeedKph = 0
		return
	}

	if e.cfg.BreakdownProbability > 0 && breakRoll < e.cfg.BreakdownProbability {
		se.broken = true
		se.entity.Status = core.StatusBrokenDown
		se.entity.Location.SpeedKph = 0
		e.appendEvent(core.SimEvent{
			Type:      core.EventBreakdown,
			EntityID:  se.entity.ID,
			Timestamp: e.simTime,
		})
		return
	}

	if se.delayed > e.tick {
		se.entity.Status = core.StatusDelayed
		se.entity.Location.SpeedKph = 0
		return
	}

	if e.cfg.DelayProbability > 0 && delayRoll < e.cfg.DelayProbability {
		se.delayed = e.tick + delayTicks
		se.entity.Status = core.StatusDelayed
		se.entity.Location.SpeedKph = 0
		e.appendEvent(core.SimEvent{
			Type:      core.EventDelay,
			EntityID:  se.entity.ID,
			Timestamp: e.simTime,
			Payload:   map[string]any{"ticks": delayTicks},
		})
		return
	}

	pos := se.progress.Position()
	speed := e.model.SpeedKph(pos, e.simTime, jitter)
	distM := speed / 3.6 * dtSec

	newPos, heading, completed := se.progress.Advance(distM)
	se.entity.Status = core.StatusEnRoute
	se.entity.Location.LatLng = newPos
	se.entity.Location.HeadingDeg = heading
	se.entity.Location.SpeedKph = speed

	e.detectZoneCrossings(se, newPos)

	if completed {
		e.appendEvent(core.SimEvent{
			Type:      core.EventArrival,
			EntityID:  se.entity.ID,
			Timestamp: e.simTime,
			Payload:   map[string]any{"routeId": se.progress.Route().ID},
		})
		e.appendEvent(core.SimEvent{
			Type:      core.EventCompletion,
			EntityID:  se.entity.ID,
			Timestamp: e.simTime,
			Payload:   map[string]any{"routeId": se.progress.Route().ID},
		})
		if e.cfg.LoopRoutes {
			se.progress.Reset()
			se.entity.Status = core.StatusEnRoute
		} else {
			se.entity.Status = core.StatusIdle
			se.entity.Location.SpeedKph = 0
		}
	}
}

func (e *Engine) detectZoneCrossings(se *simEntity, pos core.LatLng) {
	active := e.model.ActiveZones(pos, e.simTime)
	now := make(map[string]bool, len(active))
	for _, id := range active {
		now[id] = true
		if !se.inZones[id] {
			e.appendEvent(core.SimEvent{
				Type:      core.EventZoneEnter,
				EntityID:  se.entity.ID,
				Timestamp: e.simTime,
				Payload:   map[string]any{"zoneId": id},
			})
		}
	}
	for id := range se.inZones {
		if !now[id] {
			e.appendEvent(core.SimEvent{
				Type:      core.EventZoneExit,
				EntityID:  se.entity.ID,
				Timestamp: e.simTime,
				Payload:   map[string]any{"zoneId": id},
			})
		}
	}
	se.inZones = now
}

// appendEvent adds to the log and notifies the event sink. Caller holds mu.
func (e *Engine) appendEvent(ev core.SimEvent) {
	e.events = append(e.events, ev)
	if e.eventSink != nil {
		e.eventSink(ev)
	}
}

// Events returns a snapshot copy of the event log.
func (e *Engine) Events() []core.SimEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]core.SimEvent, len(e.events))
	copy(out, e.events)
	return out
}

// Tick returns the number of completed ticks.
func (e *Engine) Tick() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick
}

// Entities returns a snapshot copy of the current fleet.
func (e *Engine) Entities() []core.Entity {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]core.Entity, 0, len(e.entities))
	for _, se := range e.entities {
		out = append(out, se.entity)
	}
	return out
}

// SimTime returns the current simulated clock.
func (e *Engine) SimTime() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.simTime
}

// PolylineLength returns the total route length in meters.
func PolylineLength(r core.Route) float64 {
	var total float64
	prog := NewProgress(r)
	if prog == nil {
		return 0
	}
	for _, l := range prog.segLens {
		total += l
	}
	return total
}
