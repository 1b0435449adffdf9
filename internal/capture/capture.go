package capture

import (
	"errors"
	"image"
	"time"

	"github.com/porthole/porthole/internal/runloop"
	"github.com/porthole/porthole/internal/window"
)

// ErrNoFrame is returned when a capturer could not produce a bitmap for a
// window. Callers treat it as "data not ready".
var ErrNoFrame = errors.New("no frame available")

// Options controls how a window is captured
type Options struct {
	// ExcludeFrame captures the client area only, without window manager
	// decorations.
	ExcludeFrame bool

	// NativeResolution keeps the bitmap at the window's pixel size. When
	// false the bitmap is halved, which matches the logical size on a 2x
	// display.
	NativeResolution bool
}

// DefaultOptions are the options used by the preview scheduler
func DefaultOptions() Options {
	return Options{ExcludeFrame: true, NativeResolution: true}
}

// Snapshot is one captured bitmap and the pixel size it was captured at
type Snapshot struct {
	Image  *image.RGBA
	Width  int
	Height int
}

func newSnapshot(img *image.RGBA) *Snapshot {
	b := img.Bounds()
	return &Snapshot{Image: img, Width: b.Dx(), Height: b.Dy()}
}

// Capturer defines the interface for window capture backends
type Capturer interface {
	// Capture returns the current contents of the window h
	Capture(h window.Handle, opts Options) (*Snapshot, error)

	// Name returns a human-readable name for this capturer
	Name() string
}

// Preview is the floating surface that displays captured frames
type Preview interface {
	Show()
	Hide()
	SetContents(img *image.RGBA)

	// SetAspectRatio constrains later user resizes to width:height
	SetAspectRatio(width, height int)
}

// FrameSink receives every frame delivered to the preview
type FrameSink interface {
	WriteFrame(frame *image.RGBA) error
}

// Timer is a running periodic task. Cancel is its cancellation token.
type Timer interface {
	Cancel()
}

// TimerSource starts periodic tasks whose callbacks run on the scheduling
// context that owns the scheduler
type TimerSource interface {
	Every(period time.Duration, fn func()) Timer
}

type loopTimers struct {
	loop *runloop.Loop
}

// LoopTimers schedules periodic tasks on a run loop
func LoopTimers(l *runloop.Loop) TimerSource {
	return loopTimers{loop: l}
}

func (t loopTimers) Every(period time.Duration, fn func()) Timer {
	return t.loop.Every(period, fn)
}
