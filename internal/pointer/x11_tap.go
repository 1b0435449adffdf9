package pointer

import (
	"fmt"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/xcursor"
	"github.com/porthole/porthole/internal/logger"
	"github.com/porthole/porthole/internal/window"
	"github.com/porthole/porthole/internal/x11"
)

const primaryButton xproto.Button = 1

// X11Tap intercepts the pointer with an active grab on the root window.
// While grabbed, every pointer event is reported to us and none reaches
// other clients, so a verdict can only be honoured one way: a suppressed
// press stays suppressed, and moves and releases cannot be replayed.
type X11Tap struct {
	conn   *x11.Connection
	cursor xproto.Cursor

	next    TapHandle
	active  TapHandle
	mask    Mask
	token   Token
	deliver DeliverFunc
	grabbed bool

	lastChild  xproto.Window
	lastClient xproto.Window
}

// NewX11Tap creates a tap on an existing connection
func NewX11Tap(conn *x11.Connection) *X11Tap {
	return &X11Tap{conn: conn}
}

// Install grabs the pointer and starts delivering events for token. Only
// one tap can be active at a time since pointer grabs are exclusive.
func (t *X11Tap) Install(mask Mask, token Token, deliver DeliverFunc) (TapHandle, error) {
	if t.active != 0 {
		return 0, fmt.Errorf("a pointer tap is already installed")
	}

	if t.cursor == 0 {
		cursor, err := xcursor.CreateCursor(t.conn.XUtil, xcursor.Crosshair)
		if err != nil {
			logger.WithComponent("x11-tap").Debug().Err(err).Msg("Crosshair cursor unavailable")
		} else {
			t.cursor = cursor
		}
	}

	t.mask = mask
	t.token = token
	t.deliver = deliver
	if err := t.grab(); err != nil {
		t.deliver = nil
		return 0, err
	}

	t.next++
	t.active = t.next
	t.conn.Listen(t.conn.Root, t.handleEvent)
	return t.active, nil
}

// SetEnabled releases or re-takes the pointer grab
func (t *X11Tap) SetEnabled(tap TapHandle, enabled bool) {
	if tap == 0 || tap != t.active {
		return
	}
	if enabled {
		if err := t.grab(); err != nil {
			logger.WithComponent("x11-tap").Warn().Err(err).Msg("Failed to re-enable pointer tap")
		}
		return
	}
	t.ungrab()
}

// Uninstall releases the grab. Unknown or stale handles are ignored.
func (t *X11Tap) Uninstall(tap TapHandle) {
	if tap == 0 || tap != t.active {
		return
	}
	t.ungrab()
	t.conn.Listen(t.conn.Root, nil)
	t.active = 0
	t.deliver = nil
	t.token = 0
	t.lastChild, t.lastClient = 0, 0
}

func (t *X11Tap) eventMask() uint16 {
	var m uint16
	if t.mask.Has(Moved) {
		m |= xproto.EventMaskPointerMotion
	}
	if t.mask.Has(PrimaryDown) {
		m |= xproto.EventMaskButtonPress
	}
	if t.mask.Has(PrimaryUp) {
		m |= xproto.EventMaskButtonRelease
	}
	return m
}

func (t *X11Tap) grab() error {
	if t.grabbed {
		return nil
	}
	xc := t.conn.Conn()

	grab := func() (*xproto.GrabPointerReply, error) {
		return xproto.GrabPointer(
			xc,
			false, // owner_events: report everything relative to root
			t.conn.Root,
			t.eventMask(),
			xproto.GrabModeAsync,
			xproto.GrabModeAsync,
			xproto.WindowNone,
			t.cursor,
			xproto.TimeCurrentTime,
		).Reply()
	}

	reply, err := grab()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTapUnavailable, err)
	}

	// A grab we still hold from an earlier session reports AlreadyGrabbed
	if reply.Status == xproto.GrabStatusAlreadyGrabbed {
		xproto.UngrabPointer(xc, xproto.TimeCurrentTime)
		reply, err = grab()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrTapUnavailable, err)
		}
	}

	if reply.Status != xproto.GrabStatusSuccess {
		return fmt.Errorf("%w: pointer grab failed with status %d", ErrTapUnavailable, reply.Status)
	}

	t.grabbed = true
	logger.WithComponent("x11-tap").Debug().Msg("Pointer grabbed")
	return nil
}

func (t *X11Tap) ungrab() {
	if !t.grabbed {
		return
	}
	xproto.UngrabPointer(t.conn.Conn(), xproto.TimeCurrentTime)
	t.grabbed = false
	logger.WithComponent("x11-tap").Debug().Msg("Pointer released")
}

func (t *X11Tap) handleEvent(ev xgb.Event) {
	if t.deliver == nil || !t.grabbed {
		return
	}

	var (
		kind  EventKind
		child xproto.Window
	)
	switch e := ev.(type) {
	case xproto.MotionNotifyEvent:
		kind, child = Moved, e.Child
	case xproto.ButtonPressEvent:
		if e.Detail != primaryButton {
			return
		}
		kind, child = PrimaryDown, e.Child
	case xproto.ButtonReleaseEvent:
		if e.Detail != primaryButton {
			return
		}
		kind, child = PrimaryUp, e.Child
	default:
		return
	}
	if !t.mask.Has(kind) {
		return
	}

	verdict := t.deliver(t.token, kind, window.Handle(t.clientOf(child)))
	logger.WithComponent("x11-tap").Trace().
		Stringer("kind", kind).
		Stringer("verdict", verdict).
		Msg("Pointer event")
}

// clientOf maps the top-level child of root to its client window, caching
// the last answer since consecutive moves usually stay over one window
func (t *X11Tap) clientOf(child xproto.Window) xproto.Window {
	if child == 0 {
		return 0
	}
	if child == t.lastChild {
		return t.lastClient
	}
	client := t.conn.ClientWindow(child)
	t.lastChild, t.lastClient = child, client
	return client
}
