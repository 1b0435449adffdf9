package capture

import (
	"errors"
	"fmt"

	"github.com/porthole/porthole/internal/logger"
	"github.com/porthole/porthole/internal/window"
)

// Router tries each capturer in order and returns the first frame
type Router struct {
	capturers []Capturer
}

// NewRouter creates a router over the given capturers, most preferred first
func NewRouter(capturers ...Capturer) *Router {
	return &Router{capturers: capturers}
}

// Name lists the routed capturers
func (r *Router) Name() string {
	name := "router"
	for i, c := range r.capturers {
		if i == 0 {
			name += ": "
		} else {
			name += ", "
		}
		name += c.Name()
	}
	return name
}

// Capture returns the first successful snapshot. A gone window stops the
// search since no other backend can do better.
func (r *Router) Capture(h window.Handle, opts Options) (*Snapshot, error) {
	log := logger.WithComponent("capture-router")

	if len(r.capturers) == 0 {
		return nil, fmt.Errorf("no capture backends available")
	}

	var errs []error
	for _, c := range r.capturers {
		snap, err := c.Capture(h, opts)
		if err == nil && snap != nil {
			return snap, nil
		}
		if err == nil {
			err = ErrNoFrame
		}
		log.Debug().
			Err(err).
			Str("capturer", c.Name()).
			Stringer("handle", h).
			Msg("Capturer failed")
		if errors.Is(err, window.ErrWindowGone) {
			return nil, err
		}
		errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
	}
	return nil, errors.Join(errs...)
}
