package window

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/porthole/porthole/internal/logger"
	"github.com/porthole/porthole/internal/x11"
)

const allDesktops = 0xFFFFFFFF

// X11Service implements Service using EWMH _NET_CLIENT_LIST_STACKING with
// a QueryTree fallback
type X11Service struct {
	conn *x11.Connection

	mu      sync.RWMutex
	ignored map[Handle]bool
}

// NewX11Service creates a window service on an existing connection
func NewX11Service(conn *x11.Connection) *X11Service {
	return &X11Service{
		conn:    conn,
		ignored: make(map[Handle]bool),
	}
}

// Ignore hides h from listings. Used for our own overlay and preview.
func (s *X11Service) Ignore(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ignored[h] = true
}

func (s *X11Service) isIgnored(h Handle) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ignored[h]
}

// List returns client windows front-to-back
func (s *X11Service) List(onScreenOnly bool) ([]Info, error) {
	log := logger.WithComponent("x11-window")

	stacking, err := s.stackingOrder()
	if err != nil {
		return nil, err
	}

	current, desktopErr := ewmh.CurrentDesktopGet(s.conn.XUtil)
	screen := s.conn.RootRect()

	windows := make([]Info, 0, len(stacking))
	skipped := 0
	for _, win := range stacking {
		h := Handle(win)
		if s.isIgnored(h) {
			continue
		}

		if onScreenOnly {
			if !s.conn.IsViewable(win) || !s.isNormal(win) || s.isHidden(win) {
				skipped++
				continue
			}
			if desktopErr == nil && !s.onDesktop(win, current) {
				skipped++
				continue
			}
		}

		rect, err := s.conn.RootGeometry(win)
		if err != nil {
			skipped++
			continue
		}
		info := Info{
			Handle: h,
			Owner:  s.owner(win),
			Title:  s.title(win),
			Bounds: Bounds{X: rect.X, Y: rect.Y, Width: rect.Width, Height: rect.Height},
		}
		if onScreenOnly && !info.Bounds.Intersects(Bounds{Width: screen.Width, Height: screen.Height}) {
			skipped++
			continue
		}
		windows = append(windows, info)
	}

	log.Debug().
		Int("found", len(windows)).
		Int("skipped", skipped).
		Msg("Listed windows")
	return windows, nil
}

// Bounds returns the root-relative rectangle of h
func (s *X11Service) Bounds(h Handle) (Bounds, error) {
	rect, err := s.conn.RootGeometry(xproto.Window(h))
	if err != nil {
		return Bounds{}, fmt.Errorf("%w: %v", ErrWindowGone, err)
	}
	return Bounds{X: rect.X, Y: rect.Y, Width: rect.Width, Height: rect.Height}, nil
}

// stackingOrder returns windows topmost first
func (s *X11Service) stackingOrder() ([]xproto.Window, error) {
	log := logger.WithComponent("x11-window")

	clients, err := ewmh.ClientListStackingGet(s.conn.XUtil)
	if err == nil && len(clients) > 0 {
		return reversed(clients), nil
	}
	if err != nil {
		log.Debug().Err(err).Msg("EWMH stacking list failed, falling back to QueryTree")
	}

	tree, err := xproto.QueryTree(s.conn.Conn(), s.conn.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to query root window tree: %w", err)
	}
	clients = make([]xproto.Window, 0, len(tree.Children))
	for _, child := range tree.Children {
		clients = append(clients, s.conn.ClientWindow(child))
	}
	return reversed(clients), nil
}

func reversed(in []xproto.Window) []xproto.Window {
	out := make([]xproto.Window, len(in))
	for i, w := range in {
		out[len(in)-1-i] = w
	}
	return out
}

// isNormal rejects desktop, dock, splash and notification surfaces
func (s *X11Service) isNormal(win xproto.Window) bool {
	types, err := ewmh.WmWindowTypeGet(s.conn.XUtil, win)
	if err != nil {
		return true
	}
	for _, t := range types {
		switch t {
		case "_NET_WM_WINDOW_TYPE_NORMAL":
			return true
		case "_NET_WM_WINDOW_TYPE_DESKTOP",
			"_NET_WM_WINDOW_TYPE_DOCK",
			"_NET_WM_WINDOW_TYPE_SPLASH",
			"_NET_WM_WINDOW_TYPE_NOTIFICATION":
			return false
		}
	}
	// Dialogs, utilities and unknown types are pickable too
	return true
}

func (s *X11Service) isHidden(win xproto.Window) bool {
	states, err := ewmh.WmStateGet(s.conn.XUtil, win)
	if err != nil {
		return false
	}
	for _, state := range states {
		if state == "_NET_WM_STATE_HIDDEN" {
			return true
		}
	}
	return false
}

func (s *X11Service) onDesktop(win xproto.Window, current uint) bool {
	desktop, err := ewmh.WmDesktopGet(s.conn.XUtil, win)
	if err != nil {
		return true
	}
	return desktop == allDesktops || desktop == current
}

// owner returns the WM_CLASS class, falling back to the instance name
func (s *X11Service) owner(win xproto.Window) string {
	class, err := icccm.WmClassGet(s.conn.XUtil, win)
	if err != nil || class == nil {
		return ""
	}
	if class.Class != "" {
		return class.Class
	}
	return class.Instance
}

func (s *X11Service) title(win xproto.Window) string {
	if name, err := ewmh.WmNameGet(s.conn.XUtil, win); err == nil && name != "" {
		return name
	}
	if name, err := icccm.WmNameGet(s.conn.XUtil, win); err == nil {
		return name
	}
	return ""
}
