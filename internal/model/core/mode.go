// internal/model/core/mode.go
package core

// Mode names a visual configuration applied across layers. Switching modes
// only touches paint and layout properties, never layer structure.
type Mode string

const (
	ModeLive     Mode = "live"
	ModePlanning Mode = "planning"
	ModeReplay   Mode = "replay"
	ModeMinimal  Mode = "minimal"
)

// KnownMode reports whether m is one of the defined modes.
func KnownMode(m Mode) bool {
	switch m {
	case ModeLive, ModePlanning, ModeReplay, ModeMinimal:
		return true
	}
	return false
}
