package window

import (
	"github.com/porthole/porthole/internal/logger"
)

// Directory answers window listing and bounds queries for the selection
// core. It never returns errors: a failed platform query reads as "no
// windows" or "window gone".
type Directory struct {
	svc Service
}

// NewDirectory creates a directory backed by svc
func NewDirectory(svc Service) *Directory {
	return &Directory{svc: svc}
}

// ListVisibleWindows returns on-screen windows, front-to-back. On error the
// result is empty.
func (d *Directory) ListVisibleWindows() []Info {
	windows, err := d.svc.List(true)
	if err != nil {
		log := logger.WithComponent("window")
		log.Warn().Err(err).Msg("Failed to list windows")
		return []Info{}
	}
	if windows == nil {
		return []Info{}
	}
	return windows
}

// BoundsOf returns the current bounds of h. ok is false when the window is
// gone or the query failed; callers treat both the same way.
func (d *Directory) BoundsOf(h Handle) (Bounds, bool) {
	b, err := d.svc.Bounds(h)
	if err != nil {
		log := logger.WithComponent("window")
		log.Debug().Err(err).Stringer("handle", h).Msg("Bounds lookup failed")
		return Bounds{}, false
	}
	if b.Empty() {
		return Bounds{}, false
	}
	return b, true
}

// WindowAt returns the frontmost listed window containing (x, y)
func (d *Directory) WindowAt(x, y int) (Info, bool) {
	for _, w := range d.ListVisibleWindows() {
		if w.Bounds.Contains(x, y) {
			return w, true
		}
	}
	return Info{}, false
}
