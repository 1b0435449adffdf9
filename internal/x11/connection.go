package x11

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/porthole/porthole/internal/logger"
)

// EventHandler receives X events addressed to a window it registered for
type EventHandler func(ev xgb.Event)

// Connection manages the X11 connection, cached atoms and the event pump
type Connection struct {
	XUtil  *xgbutil.XUtil
	Root   xproto.Window
	Screen *xproto.ScreenInfo

	atomMu sync.Mutex
	atoms  map[string]xproto.Atom

	handlerMu sync.RWMutex
	handlers  map[xproto.Window]EventHandler

	closeOnce sync.Once
}

// NewConnection establishes a connection to the X11 server named by $DISPLAY
func NewConnection() (*Connection, error) {
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	return &Connection{
		XUtil:    xu,
		Root:     xu.RootWin(),
		Screen:   xu.Screen(),
		atoms:    make(map[string]xproto.Atom),
		handlers: make(map[xproto.Window]EventHandler),
	}, nil
}

// Conn returns the raw xgb connection
func (c *Connection) Conn() *xgb.Conn {
	return c.XUtil.Conn()
}

// Close cleanly disconnects from the X11 server. Safe to call twice.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.XUtil.Conn().Close()
	})
}

// Atom interns name, caching the result
func (c *Connection) Atom(name string) (xproto.Atom, error) {
	c.atomMu.Lock()
	defer c.atomMu.Unlock()

	if atom, ok := c.atoms[name]; ok {
		return atom, nil
	}
	reply, err := xproto.InternAtom(c.Conn(), false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	c.atoms[name] = reply.Atom
	return reply.Atom, nil
}

// Listen registers fn for events whose target window is win. A later call
// for the same window replaces the handler; a nil fn removes it.
func (c *Connection) Listen(win xproto.Window, fn EventHandler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()

	if fn == nil {
		delete(c.handlers, win)
		return
	}
	c.handlers[win] = fn
}

// Pump reads events until the connection closes. Each event is handed to
// post, which is expected to schedule the dispatch on the run loop.
func (c *Connection) Pump(post func(func()) bool) {
	log := logger.WithComponent("x11")

	for {
		ev, err := c.Conn().WaitForEvent()
		if ev == nil && err == nil {
			log.Debug().Msg("X11 connection closed, event pump exiting")
			return
		}
		if err != nil {
			// Errors from unchecked requests, typically BadWindow for a
			// window that disappeared between two requests.
			log.Debug().Str("error", err.Error()).Msg("X11 error")
			continue
		}
		if !post(func() { c.Dispatch(ev) }) {
			return
		}
	}
}

// Dispatch delivers ev to the handler registered for its window
func (c *Connection) Dispatch(ev xgb.Event) {
	win, ok := EventWindow(ev)
	if !ok {
		return
	}

	c.handlerMu.RLock()
	fn := c.handlers[win]
	c.handlerMu.RUnlock()

	if fn != nil {
		fn(ev)
	}
}

// EventWindow returns the window an event is reported relative to
func EventWindow(ev xgb.Event) (xproto.Window, bool) {
	switch e := ev.(type) {
	case xproto.MotionNotifyEvent:
		return e.Event, true
	case xproto.ButtonPressEvent:
		return e.Event, true
	case xproto.ButtonReleaseEvent:
		return e.Event, true
	case xproto.ExposeEvent:
		return e.Window, true
	case xproto.ConfigureNotifyEvent:
		return e.Window, true
	case xproto.DestroyNotifyEvent:
		return e.Window, true
	case xproto.ClientMessageEvent:
		return e.Window, true
	}
	return 0, false
}
