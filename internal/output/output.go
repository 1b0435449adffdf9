package output

import (
	"image"
)

// Output is a secondary consumer of preview frames, fed by the capture
// scheduler after the preview window has been updated.
type Output interface {
	// Start initializes the output mechanism
	Start() error

	// Stop cleanly shuts down the output
	Stop() error

	// WriteFrame hands over a frame. It must not block the caller; the
	// frame is not modified afterwards and may be retained.
	WriteFrame(frame *image.RGBA) error

	// Name returns a human-readable name for this output type
	Name() string

	// IsRunning returns true if the output is currently active
	IsRunning() bool
}

// Config holds common configuration for all output types
type Config struct {
	FPS     int
	Quality int // JPEG quality, 1-100
}
