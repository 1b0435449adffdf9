package surface

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/shape"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/porthole/porthole/internal/logger"
	"github.com/porthole/porthole/internal/window"
	"github.com/porthole/porthole/internal/x11"
)

// BorderThickness of the hover frame in pixels
const BorderThickness = 3

const labelMargin = 6

// OverlayConfig controls the hover highlight's appearance
type OverlayConfig struct {
	Color     uint32 // 0xRRGGBB
	Opacity   float64
	ShowLabel bool
}

// X11Overlay is a translucent, input-transparent, override-redirect window
// that frames the hovered window. It is created on first use and only
// unmapped when hidden.
type X11Overlay struct {
	conn *x11.Connection
	cfg  OverlayConfig

	win     xproto.Window
	gc      xproto.Gcontext
	depth   byte
	argb    bool
	created bool
	mapped  bool

	target window.Handle
	bounds window.Bounds
	label  string
}

// NewX11Overlay creates the overlay object. The X window is created lazily.
func NewX11Overlay(conn *x11.Connection, cfg OverlayConfig) *X11Overlay {
	if cfg.Opacity < 0 || cfg.Opacity > 1 {
		cfg.Opacity = 0.3
	}
	return &X11Overlay{conn: conn, cfg: cfg}
}

// Handle returns the overlay's own window, or 0 before first use
func (o *X11Overlay) Handle() window.Handle {
	return window.Handle(o.win)
}

// Show frames bounds and stacks the overlay directly above target
func (o *X11Overlay) Show(target window.Handle, b window.Bounds) {
	log := logger.WithComponent("overlay")

	if err := o.ensure(); err != nil {
		log.Error().Err(err).Msg("Failed to create hover overlay")
		return
	}

	o.target = target
	o.bounds = b
	o.label = ""
	if o.cfg.ShowLabel {
		o.label = o.describe(target, b)
	}

	xc := o.conn.Conn()
	geometry := []uint32{
		uint32(int32(b.X)),
		uint32(int32(b.Y)),
		uint32(max(b.Width, 1)),
		uint32(max(b.Height, 1)),
	}
	geomMask := uint16(xproto.ConfigWindowX | xproto.ConfigWindowY | xproto.ConfigWindowWidth | xproto.ConfigWindowHeight)
	xproto.ConfigureWindow(xc, o.win, geomMask, geometry)

	if !o.mapped {
		xproto.MapWindow(xc, o.win)
		o.mapped = true
	}
	o.stackAbove(target)
	o.draw()

	log.Debug().
		Stringer("target", target).
		Stringer("bounds", b).
		Msg("Overlay shown")
}

// Hide unmaps the overlay without destroying it
func (o *X11Overlay) Hide() {
	if !o.mapped {
		return
	}
	xproto.UnmapWindow(o.conn.Conn(), o.win)
	o.mapped = false
	o.target = 0
}

// Visible reports whether the overlay is mapped
func (o *X11Overlay) Visible() bool {
	return o.mapped
}

// Destroy releases the X resources
func (o *X11Overlay) Destroy() {
	if !o.created {
		return
	}
	o.conn.Listen(o.win, nil)
	xproto.FreeGC(o.conn.Conn(), o.gc)
	xproto.DestroyWindow(o.conn.Conn(), o.win)
	o.created = false
	o.mapped = false
	o.win = 0
}

func (o *X11Overlay) ensure() error {
	if o.created {
		return nil
	}
	log := logger.WithComponent("overlay")
	xc := o.conn.Conn()
	screen := o.conn.Screen

	wid, err := xproto.NewWindowId(xc)
	if err != nil {
		return err
	}

	if visual, ok := o.conn.ARGBVisual(); ok {
		cmap, err := xproto.NewColormapId(xc)
		if err != nil {
			return err
		}
		if err := xproto.CreateColormapChecked(xc, xproto.ColormapAllocNone, cmap, o.conn.Root, visual).Check(); err != nil {
			return fmt.Errorf("failed to create colormap: %w", err)
		}
		// Value list order follows the bit positions of the mask.
		err = xproto.CreateWindowChecked(
			xc, 32, wid, o.conn.Root,
			0, 0, 1, 1, 0,
			xproto.WindowClassInputOutput,
			visual,
			xproto.CwBackPixel|xproto.CwBorderPixel|xproto.CwOverrideRedirect|xproto.CwEventMask|xproto.CwColormap,
			[]uint32{o.fillPixel(true), 0, 1, xproto.EventMaskExposure, uint32(cmap)},
		).Check()
		if err != nil {
			return fmt.Errorf("failed to create ARGB overlay window: %w", err)
		}
		o.depth = 32
		o.argb = true
	} else {
		err = xproto.CreateWindowChecked(
			xc, screen.RootDepth, wid, o.conn.Root,
			0, 0, 1, 1, 0,
			xproto.WindowClassInputOutput,
			screen.RootVisual,
			xproto.CwBackPixel|xproto.CwOverrideRedirect|xproto.CwEventMask,
			[]uint32{o.fillPixel(false), 1, xproto.EventMaskExposure},
		).Check()
		if err != nil {
			return fmt.Errorf("failed to create overlay window: %w", err)
		}
		o.depth = screen.RootDepth
		// Without an ARGB visual only a compositor can make us translucent
		if err := ewmh.WmWindowOpacitySet(o.conn.XUtil, wid, o.cfg.Opacity); err != nil {
			log.Debug().Err(err).Msg("Failed to set window opacity")
		}
	}
	o.win = wid

	// An empty input region lets clicks and hit-testing fall through
	if err := shape.Init(xc); err != nil {
		log.Warn().Err(err).Msg("SHAPE extension not available - overlay will not be click-through")
	} else {
		shape.Rectangles(xc, shape.SoSet, shape.SkInput, xproto.ClipOrderingUnsorted, wid, 0, 0, nil)
	}

	icccm.WmClassSet(o.conn.XUtil, wid, &icccm.WmClass{Instance: "porthole-overlay", Class: "Porthole"})

	gc, err := xproto.NewGcontextId(xc)
	if err != nil {
		return err
	}
	err = xproto.CreateGCChecked(
		xc, gc, xproto.Drawable(wid),
		xproto.GcForeground|xproto.GcLineWidth|xproto.GcGraphicsExposures,
		[]uint32{o.borderPixel(), BorderThickness, 0},
	).Check()
	if err != nil {
		return fmt.Errorf("failed to create GC: %w", err)
	}
	o.gc = gc

	o.conn.Listen(wid, o.handleEvent)
	o.created = true

	log.Debug().
		Uint32("window_id", uint32(wid)).
		Bool("argb", o.argb).
		Msg("Hover overlay created")
	return nil
}

// stackAbove places the overlay directly above the target's top-level
// frame, falling back to the top of the stack
func (o *X11Overlay) stackAbove(target window.Handle) {
	xc := o.conn.Conn()
	if top, err := o.conn.TopLevel(xproto.Window(target)); err == nil && top != o.win {
		err := xproto.ConfigureWindowChecked(
			xc, o.win,
			xproto.ConfigWindowSibling|xproto.ConfigWindowStackMode,
			[]uint32{uint32(top), xproto.StackModeAbove},
		).Check()
		if err == nil {
			return
		}
	}
	xproto.ConfigureWindow(xc, o.win, xproto.ConfigWindowStackMode, []uint32{xproto.StackModeAbove})
}

func (o *X11Overlay) handleEvent(ev xgb.Event) {
	if e, ok := ev.(xproto.ExposeEvent); ok && e.Count == 0 {
		o.draw()
	}
}

func (o *X11Overlay) draw() {
	if !o.mapped {
		return
	}
	xc := o.conn.Conn()
	b := o.bounds

	xproto.ClearArea(xc, false, o.win, 0, 0, 0, 0)
	if b.Width > 2*BorderThickness && b.Height > 2*BorderThickness {
		half := BorderThickness / 2
		xproto.PolyRectangle(xc, xproto.Drawable(o.win), o.gc, []xproto.Rectangle{{
			X:      int16(half),
			Y:      int16(half),
			Width:  uint16(b.Width - BorderThickness),
			Height: uint16(b.Height - BorderThickness),
		}})
	}

	if o.label == "" {
		return
	}
	img := o.labelImage()
	if img == nil || img.Bounds().Dx()+2*labelMargin > b.Width || img.Bounds().Dy()+2*labelMargin > b.Height {
		return
	}
	if err := o.conn.PutRGBA(xproto.Drawable(o.win), o.gc, o.depth, img, labelMargin, labelMargin); err != nil {
		logger.WithComponent("overlay").Debug().Err(err).Msg("Failed to draw label")
	}
}

// labelImage renders the label over the overlay's own fill, so it looks
// the same with or without an alpha channel
func (o *X11Overlay) labelImage() *image.RGBA {
	label := RenderLabel(Label{
		Text:       o.label,
		TextColor:  color.RGBA{R: 0xf5, G: 0xf7, B: 0xfa, A: 0xff},
		Background: color.RGBA{R: 0x1f, G: 0x29, B: 0x33, A: 0xff},
		Opacity:    0.85,
	})
	if label == nil {
		return nil
	}
	img := image.NewRGBA(label.Bounds())
	draw.Draw(img, img.Bounds(), &image.Uniform{o.fillColor()}, image.Point{}, draw.Src)
	BlendImage(img, label, 0, 0, 1)
	return img
}

// describe builds "owner  WxH" for the label
func (o *X11Overlay) describe(target window.Handle, b window.Bounds) string {
	owner := ""
	if class, err := icccm.WmClassGet(o.conn.XUtil, xproto.Window(target)); err == nil && class != nil {
		owner = class.Class
		if owner == "" {
			owner = class.Instance
		}
	}
	if owner == "" {
		owner = target.String()
	}
	return fmt.Sprintf("%s  %dx%d", owner, b.Width, b.Height)
}

func (o *X11Overlay) rgb() (r, g, b uint8) {
	c := o.cfg.Color
	return uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// fillColor is the translucent fill as a premultiplied color, or the plain
// color when the window has no alpha channel
func (o *X11Overlay) fillColor() color.RGBA {
	r, g, b := o.rgb()
	if !o.argb {
		return color.RGBA{R: r, G: g, B: b, A: 0xff}
	}
	return premultiply(r, g, b, o.cfg.Opacity)
}

func (o *X11Overlay) fillPixel(argb bool) uint32 {
	r, g, b := o.rgb()
	if !argb {
		return uint32(r)<<16 | uint32(g)<<8 | uint32(b)
	}
	c := premultiply(r, g, b, o.cfg.Opacity)
	return uint32(c.A)<<24 | uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

func (o *X11Overlay) borderPixel() uint32 {
	return 0xff000000 | o.cfg.Color&0xffffff
}

func premultiply(r, g, b uint8, opacity float64) color.RGBA {
	a := opacity * 255
	return color.RGBA{
		R: uint8(float64(r) * opacity),
		G: uint8(float64(g) * opacity),
		B: uint8(float64(b) * opacity),
		A: uint8(a),
	}
}
