// internal/runtime/state.go
package runtime

// State is the single lifecycle authority over the rendering engine. Exactly
// one value exists per runtime; every external command is gated on it.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateLoadingLayers
	StateLayersMounted
	StateReady
	StateDetached
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateInitializing:
		return "INITIALIZING"
	case StateLoadingLayers:
		return "LOADING_LAYERS"
	case StateLayersMounted:
		return "LAYERS_MOUNTED"
	case StateReady:
		return "READY"
	case StateDetached:
		return "DETACHED"
	case StateDegraded:
		return "DEGRADED"
	default:
		return "UNKNOWN"
	}
}

// transitions is the authoritative table. Anything not listed is rejected,
// logged, and treated as a no-op by the caller.
var transitions = map[State][]State{
	StateUninitialized: {StateInitializing},
	StateInitializing:  {StateLoadingLayers, StateDetached},
	StateLoadingLayers: {StateLayersMounted, StateDetached},
	StateLayersMounted: {StateReady, StateDetached},
	StateReady:         {StateDegraded, StateDetached},
	StateDegraded:      {StateDetached},
	StateDetached:      {StateInitializing},
}

func canTransition(from, to State) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}
