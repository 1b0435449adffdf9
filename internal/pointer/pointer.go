// Package pointer intercepts system-wide pointer events while a window is
// being picked. The platform tap only ever sees an integer Token; the
// Registry turns it back into the owning Interceptor.
package pointer

import (
	"errors"

	"github.com/porthole/porthole/internal/window"
)

// ErrTapUnavailable is returned when the platform refuses to install the
// pointer tap, for example because another client holds a pointer grab.
var ErrTapUnavailable = errors.New("pointer tap unavailable")

// EventKind classifies an intercepted pointer event
type EventKind int

const (
	Moved EventKind = iota
	PrimaryDown
	PrimaryUp
)

func (k EventKind) String() string {
	switch k {
	case Moved:
		return "moved"
	case PrimaryDown:
		return "primary-down"
	case PrimaryUp:
		return "primary-up"
	default:
		return "unknown"
	}
}

// Mask selects the event kinds a tap reports
type Mask uint8

const (
	MaskMoved Mask = 1 << iota
	MaskPrimaryDown
	MaskPrimaryUp

	MaskAll = MaskMoved | MaskPrimaryDown | MaskPrimaryUp
)

// Has reports whether kind is selected
func (m Mask) Has(kind EventKind) bool {
	return m&(1<<uint(kind)) != 0
}

// Verdict tells the platform what to do with an event
type Verdict int

const (
	PassThrough Verdict = iota
	Suppress
)

func (v Verdict) String() string {
	if v == Suppress {
		return "suppress"
	}
	return "pass-through"
}

// Token identifies a registered interceptor across the platform boundary
type Token uint64

// TapHandle identifies an installed platform tap
type TapHandle uint32

// DeliverFunc is called by the platform for each event matching the tap's
// mask. under is the topmost window under the pointer, or 0.
type DeliverFunc func(token Token, kind EventKind, under window.Handle) Verdict

// Platform is the global low-level pointer tap
type Platform interface {
	Install(mask Mask, token Token, deliver DeliverFunc) (TapHandle, error)
	SetEnabled(tap TapHandle, enabled bool)
	Uninstall(tap TapHandle)
}

// Listener receives classified selection signals
type Listener interface {
	// Hover reports the window under the pointer after a move
	Hover(h window.Handle)

	// Confirm reports the window under the pointer at primary-button release
	Confirm(h window.Handle)
}
