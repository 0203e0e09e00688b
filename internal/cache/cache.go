package cache

import (
	"sync"

	"github.com/fleetlens/maprt/internal/model/core"
)

// DefaultTrailLength bounds how many recent positions are kept per entity.
const DefaultTrailLength = 30

// EntityCache keeps the last-known state and a bounded position trail for
// every entity seen this session. The trail layer renders from it and state
// deltas (heading changes, status transitions) are computed against it.
// Latency matters here: it sits on the per-tick update path.
type EntityCache struct {
	mu          sync.Mutex
	entities    map[string]core.Entity
	trails      map[string][]core.LatLng
	trailLength int
}

// New creates an empty cache. trailLength <= 0 uses the default.
func New(trailLength int) *EntityCache {
	if trailLength <= 0 {
		trailLength = DefaultTrailLength
	}
	return &EntityCache{
		entities:    make(map[string]core.Entity),
		trails:      make(map[string][]core.LatLng),
		trailLength: trailLength,
	}
}

// Record stores an entity snapshot and appends its position to the trail.
// Consecutive identical positions are collapsed.
func (c *EntityCache) Record(e core.Entity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entities[e.ID] = e

	trail := c.trails[e.ID]
	pos := e.Location.LatLng
	if n := len(trail); n > 0 && trail[n-1] == pos {
		return
	}
	trail = append(trail, pos)
	if len(trail) > c.trailLength {
		trail = trail[len(trail)-c.trailLength:]
	}
	c.trails[e.ID] = trail
}

// RecordBatch records every entity in a batch.
func (c *EntityCache) RecordBatch(entities []core.Entity) {
	for _, e := range entities {
		c.Record(e)
	}
}

// Get returns the last-known state of an entity.
func (c *EntityCache) Get(id string) (core.Entity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entities[id]
	return e, ok
}

// Trail returns a copy of an entity's recent positions, oldest first.
func (c *EntityCache) Trail(id string) []core.LatLng {
	c.mu.Lock()
	defer c.mu.Unlock()
	trail, ok := c.trails[id]
	if !ok {
		return nil
	}
	return append([]core.LatLng(nil), trail...)
}

// Trails returns a copy of every trail with at least two points.
func (c *EntityCache) Trails() map[string][]core.LatLng {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string][]core.LatLng, len(c.trails))
	for id, trail := range c.trails {
		if len(trail) < 2 {
			continue
		}
		out[id] = append([]core.LatLng(nil), trail...)
	}
	return out
}

// Len returns the number of tracked entities.
func (c *EntityCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entities)
}

// Reset drops all cached state. Called when a session ends.
func (c *EntityCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entities = make(map[string]core.Entity)
	c.trails = make(map[string][]core.LatLng)
}
