package surface

import (
	"fmt"
	"image"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/porthole/porthole/internal/logger"
	"github.com/porthole/porthole/internal/window"
	"github.com/porthole/porthole/internal/x11"
	"golang.org/x/image/draw"
)

// PreviewConfig controls the floating preview window
type PreviewConfig struct {
	Title       string
	Width       int
	Height      int
	AlwaysOnTop bool
	AllDesktops bool
	Movable     bool
}

// X11Preview is the floating window that shows captured frames. The frame
// is scaled to the window's current size; the aspect ratio hint keeps user
// resizes proportional.
type X11Preview struct {
	conn *x11.Connection
	cfg  PreviewConfig

	win    xproto.Window
	gc     xproto.Gcontext
	mapped bool

	width  int
	height int

	frame   *image.RGBA
	scaled  *image.RGBA
	aspectW int
	aspectH int

	onClose func()
}

// NewX11Preview creates the preview window unmapped
func NewX11Preview(conn *x11.Connection, cfg PreviewConfig) (*X11Preview, error) {
	log := logger.WithComponent("preview")
	xc := conn.Conn()
	screen := conn.Screen

	if cfg.Width <= 0 {
		cfg.Width = 480
	}
	if cfg.Height <= 0 {
		cfg.Height = 300
	}
	if cfg.Title == "" {
		cfg.Title = "Porthole"
	}

	wid, err := xproto.NewWindowId(xc)
	if err != nil {
		return nil, fmt.Errorf("failed to create window ID: %w", err)
	}

	// Start near the top-right corner of the screen
	x := int(screen.WidthInPixels) - cfg.Width - 24
	if x < 0 {
		x = 0
	}
	err = xproto.CreateWindowChecked(
		xc,
		screen.RootDepth,
		wid,
		conn.Root,
		int16(x), 48,
		uint16(cfg.Width), uint16(cfg.Height),
		0,
		xproto.WindowClassInputOutput,
		screen.RootVisual,
		xproto.CwBackPixel|xproto.CwEventMask,
		[]uint32{
			0x000000,
			xproto.EventMaskExposure | xproto.EventMaskStructureNotify | xproto.EventMaskButtonPress,
		},
	).Check()
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	p := &X11Preview{
		conn:   conn,
		cfg:    cfg,
		win:    wid,
		width:  cfg.Width,
		height: cfg.Height,
	}

	if err := ewmh.WmNameSet(conn.XUtil, wid, cfg.Title); err != nil {
		log.Warn().Err(err).Msg("Failed to set window title")
	}
	if err := icccm.WmClassSet(conn.XUtil, wid, &icccm.WmClass{Instance: "porthole", Class: "Porthole"}); err != nil {
		log.Warn().Err(err).Msg("Failed to set window class")
	}
	if err := icccm.WmProtocolsSet(conn.XUtil, wid, []string{"WM_DELETE_WINDOW"}); err != nil {
		log.Warn().Err(err).Msg("Failed to set WM_PROTOCOLS")
	}
	ewmh.WmWindowTypeSet(conn.XUtil, wid, []string{"_NET_WM_WINDOW_TYPE_UTILITY"})

	// Read by the window manager when the window is mapped
	var states []string
	if cfg.AlwaysOnTop {
		states = append(states, "_NET_WM_STATE_ABOVE")
	}
	if cfg.AllDesktops {
		states = append(states, "_NET_WM_STATE_STICKY")
	}
	if len(states) > 0 {
		if err := ewmh.WmStateSet(conn.XUtil, wid, states); err != nil {
			log.Warn().Err(err).Msg("Failed to set window state")
		}
	}
	if cfg.AllDesktops {
		ewmh.WmDesktopSet(conn.XUtil, wid, 0xFFFFFFFF)
	}

	gc, err := xproto.NewGcontextId(xc)
	if err != nil {
		return nil, fmt.Errorf("failed to create graphics context: %w", err)
	}
	if err := xproto.CreateGCChecked(xc, gc, xproto.Drawable(wid), xproto.GcGraphicsExposures, []uint32{0}).Check(); err != nil {
		return nil, fmt.Errorf("failed to create GC: %w", err)
	}
	p.gc = gc

	conn.Listen(wid, p.handleEvent)

	log.Debug().
		Uint32("window_id", uint32(wid)).
		Int("width", cfg.Width).
		Int("height", cfg.Height).
		Msg("Preview window created")
	return p, nil
}

// Handle returns the preview's window
func (p *X11Preview) Handle() window.Handle {
	return window.Handle(p.win)
}

// OnClose registers fn to run when the user closes the preview window
func (p *X11Preview) OnClose(fn func()) {
	p.onClose = fn
}

// Show maps the window
func (p *X11Preview) Show() {
	if p.mapped {
		return
	}
	xproto.MapWindow(p.conn.Conn(), p.win)
	p.mapped = true
	logger.WithComponent("preview").Debug().Msg("Preview shown")
}

// Hide unmaps the window and drops the last frame
func (p *X11Preview) Hide() {
	if !p.mapped {
		return
	}
	xproto.UnmapWindow(p.conn.Conn(), p.win)
	p.mapped = false
	p.frame = nil
	p.aspectW, p.aspectH = 0, 0
	logger.WithComponent("preview").Debug().Msg("Preview hidden")
}

// SetContents replaces the displayed frame. The previous frame is released.
func (p *X11Preview) SetContents(img *image.RGBA) {
	p.frame = img
	p.redraw()
}

// SetAspectRatio constrains the window to width:height and resizes it to
// match, keeping its current width
func (p *X11Preview) SetAspectRatio(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	g := gcd(width, height)
	num, den := width/g, height/g
	if num == p.aspectW && den == p.aspectH {
		return
	}
	p.aspectW, p.aspectH = num, den

	hints := &icccm.NormalHints{
		Flags:        icccm.SizeHintPAspect | icccm.SizeHintPMinSize,
		MinWidth:     64,
		MinHeight:    64,
		MinAspectNum: uint(num),
		MinAspectDen: uint(den),
		MaxAspectNum: uint(num),
		MaxAspectDen: uint(den),
	}
	if err := icccm.WmNormalHintsSet(p.conn.XUtil, p.win, hints); err != nil {
		logger.WithComponent("preview").Warn().Err(err).Msg("Failed to set aspect hints")
	}

	w := p.width
	h := max(w*den/num, 1)
	if h != p.height {
		xproto.ConfigureWindow(p.conn.Conn(), p.win,
			xproto.ConfigWindowWidth|xproto.ConfigWindowHeight,
			[]uint32{uint32(w), uint32(h)})
	}

	logger.WithComponent("preview").Debug().
		Int("num", num).
		Int("den", den).
		Msg("Preview aspect ratio set")
}

// Destroy releases the window
func (p *X11Preview) Destroy() {
	if p.win == 0 {
		return
	}
	p.conn.Listen(p.win, nil)
	xproto.FreeGC(p.conn.Conn(), p.gc)
	xproto.DestroyWindow(p.conn.Conn(), p.win)
	p.win = 0
	p.mapped = false
}

func (p *X11Preview) handleEvent(ev xgb.Event) {
	switch e := ev.(type) {
	case xproto.ExposeEvent:
		if e.Count == 0 {
			p.redraw()
		}
	case xproto.ConfigureNotifyEvent:
		if int(e.Width) != p.width || int(e.Height) != p.height {
			p.width, p.height = int(e.Width), int(e.Height)
			p.scaled = nil
			p.redraw()
		}
	case xproto.ButtonPressEvent:
		if e.Detail == 1 && p.cfg.Movable {
			p.beginDrag(e)
		}
	case xproto.ClientMessageEvent:
		p.handleClientMessage(e)
	}
}

// beginDrag hands the move to the window manager so the background acts
// as a drag handle
func (p *X11Preview) beginDrag(e xproto.ButtonPressEvent) {
	xproto.UngrabPointer(p.conn.Conn(), xproto.TimeCurrentTime)
	err := ewmh.WmMoveresizeExtra(p.conn.XUtil, p.win, ewmh.Move, int(e.RootX), int(e.RootY), 1, 1)
	if err != nil {
		logger.WithComponent("preview").Debug().Err(err).Msg("Window manager refused move")
	}
}

func (p *X11Preview) handleClientMessage(e xproto.ClientMessageEvent) {
	protocols, err := p.conn.Atom("WM_PROTOCOLS")
	if err != nil || e.Type != protocols || len(e.Data.Data32) == 0 {
		return
	}
	deleteWindow, err := p.conn.Atom("WM_DELETE_WINDOW")
	if err != nil || xproto.Atom(e.Data.Data32[0]) != deleteWindow {
		return
	}
	logger.WithComponent("preview").Info().Msg("Preview closed by user")
	if p.onClose != nil {
		p.onClose()
	}
}

// redraw scales the current frame to the window and sends it
func (p *X11Preview) redraw() {
	if !p.mapped || p.frame == nil || p.width <= 0 || p.height <= 0 {
		return
	}
	log := logger.WithComponent("preview")

	dst := p.scaleFrame()
	if err := p.conn.PutRGBA(xproto.Drawable(p.win), p.gc, p.conn.Screen.RootDepth, dst, 0, 0); err != nil {
		log.Debug().Err(err).Msg("Failed to draw preview frame")
	}
}

// scaleFrame fits the frame into the window, letterboxing if the window
// manager ignored the aspect hint
func (p *X11Preview) scaleFrame() *image.RGBA {
	if p.scaled == nil || p.scaled.Bounds().Dx() != p.width || p.scaled.Bounds().Dy() != p.height {
		p.scaled = image.NewRGBA(image.Rect(0, 0, p.width, p.height))
	}
	dst := p.scaled
	for i := range dst.Pix {
		dst.Pix[i] = 0
	}

	target := FitRect(p.frame.Bounds().Dx(), p.frame.Bounds().Dy(), p.width, p.height)
	draw.ApproxBiLinear.Scale(dst, target, p.frame, p.frame.Bounds(), draw.Src, nil)
	return dst
}

// FitRect returns the largest rectangle with the source proportions that
// fits centred in a dstW x dstH area
func FitRect(srcW, srcH, dstW, dstH int) image.Rectangle {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return image.Rectangle{}
	}
	w := dstW
	h := srcH * dstW / srcW
	if h > dstH {
		h = dstH
		w = srcW * dstH / srcH
	}
	x := (dstW - w) / 2
	y := (dstH - h) / 2
	return image.Rect(x, y, x+w, y+h)
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
