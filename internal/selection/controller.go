// Package selection implements the pick-a-window state machine. The
// controller owns the selection state and is the only thing that moves the
// hover overlay or starts and stops capture sessions.
package selection

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/porthole/porthole/internal/logger"
	"github.com/porthole/porthole/internal/window"
)

// ErrNoInterceptor is returned by BeginSelection before SetInterceptor
var ErrNoInterceptor = errors.New("no pointer interceptor configured")

// ErrNoHover is the reason a confirm is ignored when nothing is hovered
var ErrNoHover = errors.New("no window hovered")

// Directory looks up the current bounds of a window
type Directory interface {
	BoundsOf(h window.Handle) (window.Bounds, bool)
}

// Overlay frames the hovered window
type Overlay interface {
	Show(target window.Handle, b window.Bounds)
	Hide()
	Handle() window.Handle
}

// Scheduler runs capture sessions
type Scheduler interface {
	BeginCapture(h window.Handle)
	Stop()
}

// Interceptor is the installed-or-not pointer tap
type Interceptor interface {
	Install() error
	Teardown()
	Installed() bool
}

// Controller is the selection state machine. All methods except
// Subscribe and Unsubscribe must be called on the run loop.
type Controller struct {
	directory   Directory
	overlay     Overlay
	scheduler   Scheduler
	interceptor Interceptor

	phase       Phase
	hovered     window.Handle
	overlayAt   window.Handle
	target      window.Handle
	sessionID   string
	ownSurfaces map[window.Handle]struct{}

	subMu       sync.Mutex
	subscribers []chan State
	last        State
}

// NewController creates an idle controller. The interceptor is attached
// separately because it needs the controller as its listener.
func NewController(directory Directory, overlay Overlay, scheduler Scheduler) *Controller {
	return &Controller{
		directory:   directory,
		overlay:     overlay,
		scheduler:   scheduler,
		ownSurfaces: make(map[window.Handle]struct{}),
	}
}

// SetInterceptor attaches the pointer tap used while selecting
func (c *Controller) SetInterceptor(i Interceptor) {
	c.interceptor = i
}

// IgnoreSurface marks h as one of our own windows. Hovers over it are
// dropped so the preview can never be picked.
func (c *Controller) IgnoreSurface(h window.Handle) {
	if h != 0 {
		c.ownSurfaces[h] = struct{}{}
	}
}

// BeginSelection installs the pointer tap and starts hover tracking. On
// failure the phase is left unchanged. A running capture keeps running
// until a new confirm replaces it.
func (c *Controller) BeginSelection() error {
	log := logger.WithComponent("selection")

	if c.phase == PhaseSelecting {
		return nil
	}
	if c.interceptor == nil {
		return ErrNoInterceptor
	}
	if err := c.interceptor.Install(); err != nil {
		log.Error().Err(err).Msg("Selection mode not started")
		return fmt.Errorf("begin selection: %w", err)
	}

	c.phase = PhaseSelecting
	c.hovered = 0
	c.overlayAt = 0

	log.Info().Bool("capturing", c.target != 0).Msg("Selection mode started")
	c.changed()
	return nil
}

// EndSelection leaves selection mode. It removes the tap, hides the
// overlay and forgets the hovered window. A running capture is not
// stopped; use StopCapture for that.
func (c *Controller) EndSelection() {
	if c.interceptor != nil {
		c.interceptor.Teardown()
	}
	c.overlay.Hide()
	c.hovered = 0
	c.overlayAt = 0

	if c.phase != PhaseIdle {
		logger.WithComponent("selection").Info().
			Stringer("from", c.phase).
			Msg("Selection mode ended")
	}
	c.phase = PhaseIdle
	c.changed()
}

// Hover handles a pointer move over h
func (c *Controller) Hover(h window.Handle) {
	if c.phase != PhaseSelecting || h == 0 || c.isOwnSurface(h) {
		return
	}
	if h == c.hovered || h == c.overlayAt {
		return
	}

	b, ok := c.directory.BoundsOf(h)
	if !ok {
		// Keep the previous frame; the window may already be gone
		logger.WithComponent("selection").Debug().
			Stringer("window", h).
			Msg("Hovered window has no bounds")
		return
	}

	c.overlay.Show(h, b)
	c.overlayAt = h
	c.hovered = h

	logger.WithComponent("selection").Debug().
		Stringer("window", h).
		Stringer("bounds", b).
		Msg("Hover")
	c.changed()
}

// Confirm handles a primary-button release. The hovered window is the
// one picked; under is only logged because a release is usually reported
// against whatever the pointer was over, the overlay included.
func (c *Controller) Confirm(under window.Handle) {
	if c.phase != PhaseSelecting {
		return
	}
	log := logger.WithComponent("selection")

	if c.hovered == 0 {
		log.Debug().Err(ErrNoHover).Stringer("under", under).Msg("Release ignored")
		return
	}

	h := c.hovered
	if _, ok := c.directory.BoundsOf(h); !ok {
		log.Warn().Stringer("window", h).Msg("Hovered window went away, pick again")
		c.overlay.Hide()
		c.hovered = 0
		c.overlayAt = 0
		c.changed()
		return
	}

	log.Info().Stringer("window", h).Msg("Window selected")
	c.startCapture(h)
}

// CaptureWindow starts capturing h directly, skipping the pick
func (c *Controller) CaptureWindow(h window.Handle) error {
	if _, ok := c.directory.BoundsOf(h); !ok {
		return fmt.Errorf("capture %s: %w", h, window.ErrWindowGone)
	}
	c.startCapture(h)
	return nil
}

// StopCapture ends the capture session and hides the preview. From
// Capturing the phase returns to Idle; while re-selecting it stays
// Selecting.
func (c *Controller) StopCapture() {
	c.scheduler.Stop()
	if c.target != 0 {
		logger.WithComponent("selection").Info().
			Stringer("window", c.target).
			Str("session", c.sessionID).
			Msg("Capture stopped")
	}
	c.target = 0
	c.sessionID = ""
	if c.phase == PhaseCapturing {
		c.phase = PhaseIdle
	}
	c.changed()
}

// Snapshot returns a copy of the current state
func (c *Controller) Snapshot() State {
	installed := false
	if c.interceptor != nil {
		installed = c.interceptor.Installed()
	}
	return State{
		Phase:        c.phase,
		Hovered:      c.hovered,
		Target:       c.target,
		TapInstalled: installed,
		SessionID:    c.sessionID,
	}
}

// Subscribe returns a channel that receives the state after every change.
// Slow subscribers miss intermediate states.
func (c *Controller) Subscribe() chan State {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	ch := make(chan State, 10)
	c.subscribers = append(c.subscribers, ch)
	return ch
}

// Unsubscribe removes and closes ch
func (c *Controller) Unsubscribe(ch chan State) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	for i, sub := range c.subscribers {
		if sub == ch {
			c.subscribers = append(c.subscribers[:i], c.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

func (c *Controller) startCapture(h window.Handle) {
	if c.interceptor != nil {
		c.interceptor.Teardown()
	}
	c.overlay.Hide()
	c.hovered = 0
	c.overlayAt = 0

	c.scheduler.BeginCapture(h)
	c.phase = PhaseCapturing
	c.target = h
	c.sessionID = uuid.NewString()

	logger.WithComponent("selection").Info().
		Stringer("window", h).
		Str("session", c.sessionID).
		Msg("Capturing")
	c.changed()
}

func (c *Controller) isOwnSurface(h window.Handle) bool {
	if _, ok := c.ownSurfaces[h]; ok {
		return true
	}
	return h == c.overlay.Handle()
}

// changed notifies subscribers if the observable state moved
func (c *Controller) changed() {
	state := c.Snapshot()

	c.subMu.Lock()
	defer c.subMu.Unlock()

	if state == c.last {
		return
	}
	c.last = state
	for _, ch := range c.subscribers {
		select {
		case ch <- state:
		default:
		}
	}
}
