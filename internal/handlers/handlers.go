// Package handlers binds host commands to the map runtime. The host drives
// the map through string commands carrying positional args and, for data
// commands, a JSON payload; the Service here validates, parses, and forwards
// them. A malformed command never propagates an error back into the map: the
// contract with the host is fire-and-forget, so handlers log and absorb.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fleetlens/maprt/internal/engine"
	"github.com/fleetlens/maprt/internal/influx"
	"github.com/fleetlens/maprt/internal/model/convert"
	"github.com/fleetlens/maprt/internal/model/core"
	"github.com/fleetlens/maprt/internal/runtime"
	"github.com/fleetlens/maprt/internal/sim"
	"github.com/fleetlens/maprt/internal/util"
)

// Host command names. Registered with the dispatcher by the daemon.
const (
	CmdAttach    = ":MAP:ATTACH:"
	CmdDetach    = ":MAP:DETACH:"
	CmdResize    = ":MAP:RESIZE:"
	CmdUpdate    = ":MAP:UPDATE:"
	CmdLayer     = ":MAP:LAYER:"
	CmdMode      = ":MODE:"
	CmdDemoStart = ":DEMO:START:"
	CmdDemoStop  = ":DEMO:STOP:"
	CmdStatus    = ":STATUS:"
	CmdMetric    = ":METRIC:"
)

// Dependencies holds everything the handler service needs.
type Dependencies struct {
	Runtime      *runtime.Runtime
	Logger       *slog.Logger
	DemoDefaults sim.Config
	// NominalCapacity backs capacity derivation for producers that send no
	// capacity figures at all. Zero falls back to the package default.
	NominalCapacity float64
	// Metrics receives host-pushed telemetry points. Optional.
	Metrics *influx.Manager
	Version string
	// OnDemoStart and OnDemoStop bracket demo mode for session-scoped
	// consumers such as the replay recorder. Optional.
	OnDemoStart func(sim.Config)
	OnDemoStop  func()
}

// Service provides handler methods for processing host commands.
type Service struct {
	deps Dependencies
	log  *slog.Logger
}

// NewService creates a new handler service.
func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		deps: deps,
		log:  logger.With("component", "handlers"),
	}
}

// HandleAttach binds the map to a host surface.
// Args: surfaceID [WIDTHxHEIGHT]
func (s *Service) HandleAttach(args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("%s requires a surface id", CmdAttach)
	}
	surface := engine.Surface{ID: util.CleanArg(args[0])}
	if surface.ID == "" {
		return "", fmt.Errorf("%s surface id is empty", CmdAttach)
	}
	if len(args) > 1 {
		surface.Width, surface.Height = util.ParseDims(args[1])
	}
	s.deps.Runtime.Attach(surface)
	return s.deps.Runtime.State().String(), nil
}

// HandleDetach unbinds the map from its surface.
func (s *Service) HandleDetach(args []string) (string, error) {
	s.deps.Runtime.Detach()
	return s.deps.Runtime.State().String(), nil
}

// HandleResize reports new surface dimensions.
// Args: WIDTHxHEIGHT
func (s *Service) HandleResize(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%s requires dimensions", CmdResize)
	}
	w, h := util.ParseDims(args[0])
	if w == 0 && h == 0 {
		return fmt.Errorf("%s: bad dimensions %q", CmdResize, args[0])
	}
	s.deps.Runtime.Resize(w, h)
	return nil
}

// updateWire is the host's JSON shape of an update. Entity batches stay raw
// so capacity normalization can tolerate all the shapes producers send.
type updateWire struct {
	Vehicles   json.RawMessage `json:"vehicles"`
	Drivers    json.RawMessage `json:"drivers"`
	Routes     []core.Route    `json:"routes"`
	Alerts     []core.Alert    `json:"alerts"`
	Batches    []core.Batch    `json:"batches"`
	Warehouses []core.Place    `json:"warehouses"`
	Facilities []core.Place    `json:"facilities"`
	Playback   *core.Playback  `json:"playback"`
}

// HandleUpdate ingests one data payload: any combination of entity batches,
// static features and a playback window. Unknown fields are ignored,
// malformed elements dropped.
func (s *Service) HandleUpdate(raw []byte) error {
	if len(raw) == 0 {
		return fmt.Errorf("%s requires a JSON payload", CmdUpdate)
	}
	var w updateWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return fmt.Errorf("%s: decoding payload: %w", CmdUpdate, err)
	}

	nominal := s.deps.NominalCapacity
	p := core.UpdatePayload{
		Routes:     w.Routes,
		Alerts:     w.Alerts,
		Batches:    w.Batches,
		Warehouses: w.Warehouses,
		Facilities: w.Facilities,
		Playback:   w.Playback,
	}
	if w.Vehicles != nil {
		p.Vehicles = convert.EntitiesFromJSON(w.Vehicles, nominal)
	}
	if w.Drivers != nil {
		p.Drivers = convert.EntitiesFromJSON(w.Drivers, nominal)
	}

	if p.Empty() {
		s.log.Debug("empty update payload ignored")
		return nil
	}
	s.deps.Runtime.Update(p)
	return nil
}

// HandleLayer toggles a layer's visibility.
// Args: layerID on|off
func (s *Service) HandleLayer(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%s requires a layer id and a state", CmdLayer)
	}
	id := util.CleanArg(args[0])
	visible, ok := util.ParseOnOff(args[1])
	if !ok {
		return fmt.Errorf("%s: bad visibility %q", CmdLayer, args[1])
	}
	s.deps.Runtime.ToggleLayerVisibility(id, visible)
	return nil
}

// HandleMode switches the display mode.
// Args: live|planning|replay|minimal
func (s *Service) HandleMode(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%s requires a mode", CmdMode)
	}
	m := core.Mode(strings.ToLower(util.CleanArg(args[0])))
	if !core.KnownMode(m) {
		return fmt.Errorf("%s: unknown mode %q", CmdMode, args[0])
	}
	s.deps.Runtime.ApplyModeConfig(m)
	return nil
}

// demoOverrides is the optional JSON payload of a demo start command. Absent
// fields keep the configured defaults.
type demoOverrides struct {
	Seed          *int64   `json:"seed,omitempty"`
	Vehicles      *int     `json:"vehicles,omitempty"`
	PlaybackSpeed *float64 `json:"playbackSpeed,omitempty"`
	TickMs        *int     `json:"tickMs,omitempty"`
}

// HandleDemoStart starts the movement simulation.
func (s *Service) HandleDemoStart(raw []byte) error {
	cfg := s.deps.DemoDefaults
	if len(cfg.Routes) == 0 {
		cfg = sim.DemoFleet()
	}

	if len(raw) > 0 {
		var o demoOverrides
		if err := json.Unmarshal(raw, &o); err != nil {
			return fmt.Errorf("%s: decoding overrides: %w", CmdDemoStart, err)
		}
		if o.Seed != nil {
			cfg.Seed = *o.Seed
		}
		if o.Vehicles != nil {
			cfg.Vehicles = *o.Vehicles
		}
		if o.PlaybackSpeed != nil {
			cfg.PlaybackSpeed = *o.PlaybackSpeed
		}
		if o.TickMs != nil && *o.TickMs > 0 {
			cfg.TickInterval = time.Duration(*o.TickMs) * time.Millisecond
		}
	}

	if err := s.deps.Runtime.EnableDemoMode(cfg); err != nil {
		return err
	}
	if s.deps.OnDemoStart != nil {
		s.deps.OnDemoStart(cfg)
	}
	return nil
}

// HandleDemoStop stops the movement simulation.
func (s *Service) HandleDemoStop() {
	s.deps.Runtime.DisableDemoMode()
	if s.deps.OnDemoStop != nil {
		s.deps.OnDemoStop()
	}
}

// HandleMetric forwards a host-pushed telemetry point to InfluxDB.
// Args: bucket measurement [tag::k::v ...] [field::type::k::v ...]
func (s *Service) HandleMetric(args []string) error {
	if s.deps.Metrics == nil {
		s.log.Debug("metric dropped, no telemetry sink configured")
		return nil
	}
	bucket, point, err := influx.ProcessMetricData(args, util.FixEscapeQuotes, util.TrimQuotes)
	if err != nil {
		return fmt.Errorf("%s: %w", CmdMetric, err)
	}
	return s.deps.Metrics.WritePoint(context.Background(), bucket, point)
}

// Status is the health snapshot returned to the host.
type Status struct {
	State       string   `json:"state"`
	Mode        string   `json:"mode"`
	DemoActive  bool     `json:"demoActive"`
	HasPlayback bool     `json:"hasPlayback"`
	Pending     []string `json:"pending,omitempty"`
	Version     string   `json:"version,omitempty"`
}

// HandleStatus reports the runtime's current condition as JSON.
func (s *Service) HandleStatus() (string, error) {
	st := Status{
		State:       s.deps.Runtime.State().String(),
		Mode:        string(s.deps.Runtime.Mode()),
		DemoActive:  s.deps.Runtime.DemoActive(),
		HasPlayback: s.deps.Runtime.HasPlaybackData(),
		Pending:     s.deps.Runtime.PendingKeys(),
		Version:     s.deps.Version,
	}
	out, err := json.Marshal(st)
	if err != nil {
		return "", fmt.Errorf("%s: encoding status: %w", CmdStatus, err)
	}
	return string(out), nil
}
