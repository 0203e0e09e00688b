// Package monitor samples the map runtime's condition on a fixed cadence.
// Each sample lands in a status file next to the daemon (for quick operator
// inspection) and, when telemetry is configured, as an InfluxDB point.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	"github.com/fleetlens/maprt/internal/influx"
	"github.com/fleetlens/maprt/internal/layer"
	"github.com/fleetlens/maprt/internal/runtime"
)

const defaultInterval = time.Second

// Dependencies holds all dependencies for the monitor service.
type Dependencies struct {
	Runtime  *runtime.Runtime
	Registry *layer.Registry
	Metrics  *influx.Manager
	Logger   *slog.Logger
	// StatusDir is where status.json is written. Empty disables the file.
	StatusDir string
	Interval  time.Duration
}

// Snapshot is one observation of the runtime.
type Snapshot struct {
	Time          time.Time      `json:"time"`
	State         string         `json:"state"`
	Mode          string         `json:"mode"`
	DemoActive    bool           `json:"demoActive"`
	SimTick       uint64         `json:"simTick,omitempty"`
	HasPlayback   bool           `json:"hasPlayback"`
	PendingLayers []string       `json:"pendingLayers,omitempty"`
	FeatureCounts map[string]int `json:"featureCounts"`
}

// Service manages status monitoring.
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
}

// NewService creates a new monitor service.
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = defaultInterval
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running.
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Snapshot observes the runtime right now.
func (s *Service) Snapshot() Snapshot {
	snap := Snapshot{
		Time:          time.Now(),
		State:         s.deps.Runtime.State().String(),
		Mode:          string(s.deps.Runtime.Mode()),
		DemoActive:    s.deps.Runtime.DemoActive(),
		HasPlayback:   s.deps.Runtime.HasPlaybackData(),
		PendingLayers: s.deps.Runtime.PendingKeys(),
		FeatureCounts: s.deps.Registry.FeatureCounts(),
	}
	if se, ok := s.deps.Runtime.Sim(); ok {
		snap.SimTick = se.Tick()
	}
	return snap
}

// Start starts the status monitor goroutine.
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	logger := s.deps.Logger.With("component", "monitor")

	var statusPath string
	if s.deps.StatusDir != "" {
		statusPath = filepath.Join(s.deps.StatusDir, "status.json")
	}

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger.Debug("status monitor started", "interval", s.deps.Interval)
		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				snap := s.Snapshot()

				if statusPath != "" {
					if err := s.writeStatusFile(statusPath, snap); err != nil {
						logger.Error("writing status file", "error", err)
					}
				}
				if s.deps.Metrics != nil {
					if err := s.writePoint(snap); err != nil {
						logger.Error("writing status point", "error", err)
					}
				}
			}
		}
	}()

	return nil
}

func (s *Service) writeStatusFile(path string, snap Snapshot) error {
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return os.WriteFile(path, b, 0644)
}

func (s *Service) writePoint(snap Snapshot) error {
	total := 0
	for _, n := range snap.FeatureCounts {
		total += n
	}
	point := influxdb2.NewPointWithMeasurement("runtime_status").
		AddTag("state", snap.State).
		AddTag("mode", snap.Mode).
		AddField("features", total).
		AddField("pending_layers", len(snap.PendingLayers)).
		AddField("demo_active", snap.DemoActive).
		AddField("sim_tick", int64(snap.SimTick)).
		SetTime(snap.Time)
	return s.deps.Metrics.WritePoint(context.Background(), influx.BucketRuntime, point)
}

// Stop stops the status monitor.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		close(s.stopChan)
	}
}
