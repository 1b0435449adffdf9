package capture

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
	"github.com/porthole/porthole/internal/window"
	"golang.org/x/image/draw"
)

// BoundsSource resolves a window to its on-screen rectangle
type BoundsSource interface {
	Bounds(h window.Handle) (window.Bounds, error)
}

// ScreenCapturer copies the screen region a window occupies. It sees
// whatever is on top of that region, so it is only a fallback for servers
// without Composite.
type ScreenCapturer struct {
	bounds BoundsSource
	grab   func(image.Rectangle) (*image.RGBA, error)
}

// NewScreenCapturer creates a region capturer
func NewScreenCapturer(bounds BoundsSource) *ScreenCapturer {
	return &ScreenCapturer{bounds: bounds, grab: screenshot.CaptureRect}
}

// Name returns the capturer name
func (c *ScreenCapturer) Name() string {
	return "screen region"
}

// Capture grabs the screen area under the window
func (c *ScreenCapturer) Capture(h window.Handle, opts Options) (*Snapshot, error) {
	b, err := c.bounds.Bounds(h)
	if err != nil {
		return nil, err
	}
	if b.Empty() {
		return nil, ErrNoFrame
	}

	img, err := c.grab(image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height))
	if err != nil {
		return nil, fmt.Errorf("screen capture failed: %w", err)
	}
	return scaleForOptions(img, opts), nil
}

// scaleForOptions halves img unless native resolution was requested
func scaleForOptions(img *image.RGBA, opts Options) *Snapshot {
	if opts.NativeResolution {
		return newSnapshot(img)
	}
	b := img.Bounds()
	w, h := max(b.Dx()/2, 1), max(b.Dy()/2, 1)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return newSnapshot(dst)
}
