// internal/replay/models.go
package replay

import (
	"time"

	"gorm.io/datatypes"
)

// Session is one recorded simulation run.
type Session struct {
	ID             uint       `gorm:"primarykey" json:"id"`
	StartedAt      time.Time  `json:"startedAt"`
	EndedAt        *time.Time `json:"endedAt,omitempty"`
	Seed           int64      `json:"seed"`
	Vehicles       int        `json:"vehicles"`
	PlaybackSpeed  float64    `json:"playbackSpeed"`
	TickIntervalMs int64      `json:"tickIntervalMs"`
}

// RecordedEvent is one simulation event persisted for forensic replay.
type RecordedEvent struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	SessionID uint           `gorm:"index" json:"sessionId"`
	EntityID  string         `gorm:"index" json:"entityId"`
	Type      string         `json:"type"`
	SimTime   time.Time      `json:"simTime"`
	Payload   datatypes.JSON `json:"payload,omitempty"`
}

// TickSnapshot captures the whole fleet at one simulated tick. Entities holds
// the JSON-encoded entity batch exactly as it was pushed to the map.
type TickSnapshot struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	SessionID uint           `gorm:"index" json:"sessionId"`
	Tick      uint64         `gorm:"index" json:"tick"`
	SimTime   time.Time      `json:"simTime"`
	Entities  datatypes.JSON `json:"entities"`
}

// Models lists everything the schema migration covers.
var Models = []any{
	&Session{},
	&RecordedEvent{},
	&TickSnapshot{},
}
