package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
)

// Rect is a window rectangle in root coordinates
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// RootGeometry returns the root-relative rectangle of win
func (c *Connection) RootGeometry(win xproto.Window) (Rect, error) {
	geom, err := xproto.GetGeometry(c.Conn(), xproto.Drawable(win)).Reply()
	if err != nil {
		return Rect{}, fmt.Errorf("get geometry of %#x: %w", uint32(win), err)
	}

	translate, err := xproto.TranslateCoordinates(c.Conn(), win, c.Root, 0, 0).Reply()
	if err != nil {
		return Rect{}, fmt.Errorf("translate coordinates of %#x: %w", uint32(win), err)
	}

	return Rect{
		X:      int(translate.DstX),
		Y:      int(translate.DstY),
		Width:  int(geom.Width),
		Height: int(geom.Height),
	}, nil
}

// RootRect returns the size of the root window
func (c *Connection) RootRect() Rect {
	return Rect{
		Width:  int(c.Screen.WidthInPixels),
		Height: int(c.Screen.HeightInPixels),
	}
}

// IsViewable reports whether win is mapped and all its ancestors are mapped
func (c *Connection) IsViewable(win xproto.Window) bool {
	attrs, err := xproto.GetWindowAttributes(c.Conn(), win).Reply()
	if err != nil {
		return false
	}
	return attrs.MapState == xproto.MapStateViewable
}

// hasWMState reports whether win carries WM_STATE, which ICCCM window
// managers set on client windows only.
func (c *Connection) hasWMState(win xproto.Window) bool {
	atom, err := c.Atom("WM_STATE")
	if err != nil {
		return false
	}
	reply, err := xproto.GetProperty(c.Conn(), false, win, atom, xproto.GetPropertyTypeAny, 0, 0).Reply()
	if err != nil {
		return false
	}
	return reply.Type != xproto.AtomNone
}

// ClientWindow resolves a top-level (usually a window manager frame) to the
// application window it contains: the first descendant carrying WM_STATE in
// breadth-first order. win itself is returned when nothing better is found.
func (c *Connection) ClientWindow(win xproto.Window) xproto.Window {
	if win == 0 || win == c.Root {
		return win
	}
	if c.hasWMState(win) {
		return win
	}

	queue := []xproto.Window{win}
	for depth := 0; depth < 4 && len(queue) > 0; depth++ {
		var next []xproto.Window
		for _, parent := range queue {
			tree, err := xproto.QueryTree(c.Conn(), parent).Reply()
			if err != nil {
				continue
			}
			for _, child := range tree.Children {
				if c.hasWMState(child) {
					return child
				}
				next = append(next, child)
			}
		}
		queue = next
	}
	return win
}

// TopLevel walks up from win to the ancestor whose parent is the root
// window. That ancestor is the sibling used for stacking requests.
func (c *Connection) TopLevel(win xproto.Window) (xproto.Window, error) {
	current := win
	for i := 0; i < 16; i++ {
		tree, err := xproto.QueryTree(c.Conn(), current).Reply()
		if err != nil {
			return 0, fmt.Errorf("query tree of %#x: %w", uint32(current), err)
		}
		if tree.Parent == c.Root || tree.Parent == 0 {
			return current, nil
		}
		current = tree.Parent
	}
	return 0, fmt.Errorf("window %#x nested too deeply", uint32(win))
}

// CapturableChild recursively searches for a viewable InputOutput
// descendant larger than 10x10. Used when WM_STATE is not available.
func (c *Connection) CapturableChild(parent xproto.Window) (xproto.Window, error) {
	tree, err := xproto.QueryTree(c.Conn(), parent).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to query tree: %w", err)
	}

	for _, child := range tree.Children {
		attrs, err := xproto.GetWindowAttributes(c.Conn(), child).Reply()
		if err != nil {
			continue
		}
		geom, err := xproto.GetGeometry(c.Conn(), xproto.Drawable(child)).Reply()
		if err != nil {
			continue
		}
		if attrs.Class == xproto.WindowClassInputOutput && attrs.MapState == xproto.MapStateViewable {
			if geom.Width > 10 && geom.Height > 10 {
				return child, nil
			}
		}
		if grandchild, err := c.CapturableChild(child); err == nil {
			return grandchild, nil
		}
	}

	return 0, fmt.Errorf("no capturable child found")
}
