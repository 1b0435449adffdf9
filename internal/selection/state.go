package selection

import (
	"github.com/porthole/porthole/internal/window"
)

// Phase is the controller's current mode
type Phase int

const (
	// PhaseIdle means neither picking nor capturing
	PhaseIdle Phase = iota
	// PhaseSelecting means the pointer tap is installed and hover is tracked
	PhaseSelecting
	// PhaseCapturing means a confirmed window is being mirrored
	PhaseCapturing
)

// String returns the string representation of the phase
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSelecting:
		return "selecting"
	case PhaseCapturing:
		return "capturing"
	default:
		return "unknown"
	}
}

// MarshalText lets phases appear by name in JSON
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// State is a copy of the controller's state
type State struct {
	Phase        Phase         `json:"phase"`
	Hovered      window.Handle `json:"hovered,omitempty"`
	Target       window.Handle `json:"target,omitempty"`
	TapInstalled bool          `json:"tap_installed"`
	SessionID    string        `json:"session_id,omitempty"`
}

// Capturing reports whether a capture session is running. A session can
// outlive the phase when selection is re-entered.
func (s State) Capturing() bool {
	return s.Target != 0
}
