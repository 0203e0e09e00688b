// internal/model/core/events.go
package core

import "time"

// SimEventType discriminates entries in the simulation event log.
type SimEventType string

const (
	EventDelay      SimEventType = "delay"
	EventBreakdown  SimEventType = "breakdown"
	EventArrival    SimEventType = "arrival"
	EventCompletion SimEventType = "completion"
	EventZoneEnter  SimEventType = "zoneEnter"
	EventZoneExit   SimEventType = "zoneExit"
)

// SimEvent is one entry in the append-only simulation event log.
// The simulation engine is the single writer; consumers read snapshots.
type SimEvent struct {
	Type      SimEventType   `json:"type"`
	EntityID  string         `json:"entityId"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}
