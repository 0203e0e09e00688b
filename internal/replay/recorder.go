// internal/replay/recorder.go
package replay

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/fleetlens/maprt/internal/model/core"
	"github.com/fleetlens/maprt/internal/queue"
	"github.com/fleetlens/maprt/internal/sim"
)

const (
	// maxQueued bounds the staging queues. If the flush loop falls behind,
	// the oldest entries are dropped rather than growing without limit.
	maxQueued = 50_000

	defaultFlushInterval = 5 * time.Second

	// snapshotEvery thins tick snapshots: one full fleet snapshot per N
	// ticks is enough to reconstruct playback, events fill in the rest.
	snapshotEvery = 5
)

// Recorder stages simulation output and flushes it to the replay database in
// batches. All sink methods are cheap and lock-free on the hot path; the
// database only sees the flush loop.
type Recorder struct {
	db     *Manager
	log    zerolog.Logger
	events *queue.Queue[RecordedEvent]
	snaps  *queue.Queue[TickSnapshot]

	mu      sync.Mutex
	session *Session

	flushInterval time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
}

// NewRecorder wires a recorder over a connected database manager.
func NewRecorder(db *Manager, log zerolog.Logger) *Recorder {
	return &Recorder{
		db:            db,
		log:           log,
		events:        queue.New[RecordedEvent](),
		snaps:         queue.New[TickSnapshot](),
		flushInterval: defaultFlushInterval,
		stopCh:        make(chan struct{}),
	}
}

// Begin opens a new session row for a simulation run. A session already in
// progress is ended first.
func (r *Recorder) Begin(cfg sim.Config) error {
	if !r.db.IsValid {
		return fmt.Errorf("replay database not available")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session != nil {
		r.endLocked()
	}

	s := &Session{
		StartedAt:      time.Now(),
		Seed:           cfg.Seed,
		Vehicles:       cfg.Vehicles,
		PlaybackSpeed:  cfg.PlaybackSpeed,
		TickIntervalMs: cfg.TickInterval.Milliseconds(),
	}
	if err := r.db.DB.Create(s).Error; err != nil {
		return fmt.Errorf("creating replay session: %w", err)
	}
	r.session = s
	r.log.Info().Uint("session", s.ID).Int64("seed", s.Seed).Msg("Replay session started")
	return nil
}

// End closes the current session. Safe without an open session.
func (r *Recorder) End() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endLocked()
	return nil
}

func (r *Recorder) endLocked() {
	if r.session == nil {
		return
	}
	now := time.Now()
	r.session.EndedAt = &now
	if err := r.db.DB.Save(r.session).Error; err != nil {
		r.log.Error().Err(err).Msg("Failed to close replay session")
	}
	r.log.Info().Uint("session", r.session.ID).Msg("Replay session ended")
	r.session = nil
}

// EventSink adapts the recorder to the simulation's event feed.
func (r *Recorder) EventSink() sim.EventSink {
	return func(ev core.SimEvent) {
		r.mu.Lock()
		s := r.session
		r.mu.Unlock()
		if s == nil {
			return
		}

		var payload datatypes.JSON
		if len(ev.Payload) > 0 {
			if b, err := json.Marshal(ev.Payload); err == nil {
				payload = datatypes.JSON(b)
			}
		}
		if dropped := r.events.PushBounded(maxQueued, RecordedEvent{
			SessionID: s.ID,
			EntityID:  ev.EntityID,
			Type:      string(ev.Type),
			SimTime:   ev.Timestamp,
			Payload:   payload,
		}); dropped > 0 {
			r.log.Warn().Int("dropped", dropped).Msg("Replay event queue overflow")
		}
	}
}

// TickSink adapts the recorder to the simulation's snapshot feed.
func (r *Recorder) TickSink() sim.TickSink {
	return func(tick uint64, simTime time.Time, entities []core.Entity) {
		if tick%snapshotEvery != 0 {
			return
		}
		r.mu.Lock()
		s := r.session
		r.mu.Unlock()
		if s == nil {
			return
		}

		b, err := json.Marshal(entities)
		if err != nil {
			r.log.Error().Err(err).Msg("Failed to encode tick snapshot")
			return
		}
		if dropped := r.snaps.PushBounded(maxQueued, TickSnapshot{
			SessionID: s.ID,
			Tick:      tick,
			SimTime:   simTime,
			Entities:  datatypes.JSON(b),
		}); dropped > 0 {
			r.log.Warn().Int("dropped", dropped).Msg("Replay snapshot queue overflow")
		}
	}
}

// SetFlushInterval overrides the flush cadence. Call before Start.
func (r *Recorder) SetFlushInterval(d time.Duration) {
	if d > 0 {
		r.flushInterval = d
	}
}

// Start launches the flush loop.
func (r *Recorder) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-r.stopCh:
				r.Flush()
				return
			case <-ticker.C:
				r.Flush()
			}
		}
	}()
}

// Stop ends the flush loop after a final flush. Idempotent.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}

// Flush writes everything staged so far.
func (r *Recorder) Flush() {
	if !r.db.IsValid {
		return
	}

	if events := r.events.Drain(); len(events) > 0 {
		if err := r.db.DB.Create(&events).Error; err != nil {
			r.log.Error().Err(err).Int("count", len(events)).Msg("Failed to flush replay events")
		}
	}
	if snaps := r.snaps.Drain(); len(snaps) > 0 {
		if err := r.db.DB.Create(&snaps).Error; err != nil {
			r.log.Error().Err(err).Int("count", len(snaps)).Msg("Failed to flush tick snapshots")
		}
	}
}

// Sessions lists recorded sessions, newest first.
func (r *Recorder) Sessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []Session
	err := r.db.DB.Order("id desc").Limit(limit).Find(&out).Error
	return out, err
}

// PlaybackWindow derives the playback range covered by a recorded session
// from its snapshots.
func (r *Recorder) PlaybackWindow(sessionID uint) (core.Playback, error) {
	var first, last TickSnapshot
	err := r.db.DB.Where("session_id = ?", sessionID).Order("tick asc").First(&first).Error
	if err != nil {
		return core.Playback{}, fmt.Errorf("session %d has no snapshots: %w", sessionID, err)
	}
	if err := r.db.DB.Where("session_id = ?", sessionID).Order("tick desc").First(&last).Error; err != nil {
		return core.Playback{}, err
	}
	return core.Playback{StartTime: first.SimTime, EndTime: last.SimTime}, nil
}

// EventsFor returns a session's recorded events in simulation order.
func (r *Recorder) EventsFor(sessionID uint) ([]RecordedEvent, error) {
	var out []RecordedEvent
	err := r.db.DB.Where("session_id = ?", sessionID).Order("id asc").Find(&out).Error
	return out, err
}

// SessionArchive is the on-disk export shape of one recorded session.
type SessionArchive struct {
	Session   Session         `json:"session"`
	Events    []RecordedEvent `json:"events"`
	Snapshots []TickSnapshot  `json:"snapshots"`
}

// Export writes a session with its events and snapshots to a gzipped JSON
// file in dir and returns the file path.
func (r *Recorder) Export(sessionID uint, dir string) (string, error) {
	var s Session
	if err := r.db.DB.First(&s, sessionID).Error; err != nil {
		return "", fmt.Errorf("loading session %d: %w", sessionID, err)
	}

	events, err := r.EventsFor(sessionID)
	if err != nil {
		return "", fmt.Errorf("loading events for session %d: %w", sessionID, err)
	}
	var snaps []TickSnapshot
	if err := r.db.DB.Where("session_id = ?", sessionID).Order("tick asc").Find(&snaps).Error; err != nil {
		return "", fmt.Errorf("loading snapshots for session %d: %w", sessionID, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("session_%d_%s.json.gz", s.ID, s.StartedAt.Format("20060102_150405")))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating export file: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	enc := json.NewEncoder(gz)
	if err := enc.Encode(SessionArchive{Session: s, Events: events, Snapshots: snaps}); err != nil {
		gz.Close()
		return "", fmt.Errorf("encoding session archive: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("finalizing session archive: %w", err)
	}

	r.log.Info().Uint("session", s.ID).Str("path", path).Msg("Session exported")
	return path, nil
}
