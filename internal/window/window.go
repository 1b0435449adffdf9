package window

import (
	"errors"
	"fmt"
)

// ErrWindowGone is returned when a handle no longer names a live window
var ErrWindowGone = errors.New("window no longer exists")

// Handle identifies an on-screen window as assigned by the window server.
// It is stable for the lifetime of the window and invalid once it closes.
type Handle uint32

func (h Handle) String() string {
	return fmt.Sprintf("%#x", uint32(h))
}

// Bounds is a rectangle in global screen coordinates. Bounds are a snapshot
// taken at query time and must be re-queried before reuse.
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty reports whether the rectangle has no area
func (b Bounds) Empty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// Intersects reports whether b and o share at least one pixel
func (b Bounds) Intersects(o Bounds) bool {
	if b.Empty() || o.Empty() {
		return false
	}
	return b.X < o.X+o.Width && o.X < b.X+b.Width &&
		b.Y < o.Y+o.Height && o.Y < b.Y+b.Height
}

// Contains reports whether the point (x, y) lies inside b
func (b Bounds) Contains(x, y int) bool {
	return x >= b.X && x < b.X+b.Width && y >= b.Y && y < b.Y+b.Height
}

func (b Bounds) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", b.X, b.Y, b.Width, b.Height)
}

// Info describes one listed window
type Info struct {
	Handle Handle `json:"id"`
	Owner  string `json:"owner"`
	Title  string `json:"title,omitempty"`
	Bounds Bounds `json:"bounds"`
}

// Service is the platform window enumeration and geometry service
type Service interface {
	// List returns windows front-to-back. With onScreenOnly set, windows that
	// are unmapped, hidden, on another desktop or outside the screen are
	// omitted.
	List(onScreenOnly bool) ([]Info, error)

	// Bounds returns the current rectangle of h, or ErrWindowGone.
	Bounds(h Handle) (Bounds, error)
}
