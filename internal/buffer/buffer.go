// Package buffer decouples "data arrived" from "layer exists". It keeps the
// most recent unconsumed payload per layer: stale intermediate updates are
// overwritten, not queued. This is a deliberate lossy design for a live map;
// consumers needing every intermediate state must not sit behind it.
package buffer

import "sync"

// Pending maps layer ids to their latest buffered payload.
type Pending struct {
	mu sync.Mutex
	m  map[string]any
}

// New creates an empty buffer.
func New() *Pending {
	return &Pending{m: make(map[string]any)}
}

// Put stores a payload for a layer, overwriting any previous value for that
// key. Last write wins; the buffer never grows beyond one entry per layer.
func (p *Pending) Put(layerID string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[layerID] = data
}

// Take removes and returns the buffered payload for a layer.
func (p *Pending) Take(layerID string) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, ok := p.m[layerID]
	if ok {
		delete(p.m, layerID)
	}
	return data, ok
}

// Drain removes and returns all buffered entries. Each entry leaves the
// buffer exactly once; flush order across layers is unspecified.
func (p *Pending) Drain() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.m
	p.m = make(map[string]any)
	return out
}

// Keys returns the layer ids currently buffered.
func (p *Pending) Keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.m))
	for k := range p.m {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of buffered layers.
func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}
