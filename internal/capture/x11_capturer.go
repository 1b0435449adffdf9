package capture

import (
	"fmt"
	"image"

	"github.com/BurntSushi/xgb/composite"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/porthole/porthole/internal/logger"
	"github.com/porthole/porthole/internal/window"
	"github.com/porthole/porthole/internal/x11"
)

// X11Capturer captures windows through the Composite extension, falling
// back to reading the window drawable directly
type X11Capturer struct {
	conn             *x11.Connection
	compositeEnabled bool
}

// NewX11Capturer creates a capturer on an existing connection
func NewX11Capturer(conn *x11.Connection) *X11Capturer {
	log := logger.WithComponent("x11-capturer")

	c := &X11Capturer{conn: conn}
	if err := composite.Init(conn.Conn()); err != nil {
		log.Warn().
			Err(err).
			Msg("Composite extension not available - obscured windows will capture incorrectly")
	} else {
		c.compositeEnabled = true
		log.Info().Msg("Composite extension initialized")
	}
	return c
}

// Name returns the capturer name
func (c *X11Capturer) Name() string {
	return "X11"
}

// CompositeEnabled reports whether off-screen window contents are available
func (c *X11Capturer) CompositeEnabled() bool {
	return c.compositeEnabled
}

// Capture grabs the window's pixels at their native size
func (c *X11Capturer) Capture(h window.Handle, opts Options) (*Snapshot, error) {
	log := logger.WithComponent("x11-capturer")

	win, err := c.resolve(xproto.Window(h), opts.ExcludeFrame)
	if err != nil {
		return nil, err
	}

	geom, err := xproto.GetGeometry(c.conn.Conn(), xproto.Drawable(win)).Reply()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", window.ErrWindowGone, err)
	}
	if geom.Width == 0 || geom.Height == 0 {
		return nil, ErrNoFrame
	}

	img, err := c.captureDrawable(win, int(geom.Width), int(geom.Height))
	if err != nil {
		return nil, err
	}

	log.Debug().
		Uint32("window_id", uint32(win)).
		Uint16("width", geom.Width).
		Uint16("height", geom.Height).
		Msg("Captured window")

	return scaleForOptions(img, opts), nil
}

// resolve picks the drawable to read: the client window itself when the
// frame is excluded, otherwise its top-level frame
func (c *X11Capturer) resolve(win xproto.Window, excludeFrame bool) (xproto.Window, error) {
	attrs, err := xproto.GetWindowAttributes(c.conn.Conn(), win).Reply()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", window.ErrWindowGone, err)
	}

	if !excludeFrame {
		if top, err := c.conn.TopLevel(win); err == nil {
			return top, nil
		}
		return win, nil
	}

	if attrs.Class == xproto.WindowClassInputOutput && attrs.MapState == xproto.MapStateViewable {
		return win, nil
	}

	// Frames reparented around the handle, or input-only wrappers
	if client := c.conn.ClientWindow(win); client != win {
		return client, nil
	}
	child, err := c.conn.CapturableChild(win)
	if err != nil {
		return 0, fmt.Errorf("no capturable window found: %w", err)
	}
	return child, nil
}

// captureDrawable reads a window's content using its Composite pixmap when
// possible
func (c *X11Capturer) captureDrawable(win xproto.Window, width, height int) (*image.RGBA, error) {
	log := logger.WithComponent("x11-capturer")
	xc := c.conn.Conn()
	drawable := xproto.Drawable(win)

	if c.compositeEnabled {
		if err := composite.RedirectWindowChecked(xc, win, composite.RedirectAutomatic).Check(); err != nil {
			log.Debug().
				Err(err).
				Uint32("window_id", uint32(win)).
				Msg("Composite redirect failed, reading window directly")
		} else {
			defer composite.UnredirectWindow(xc, win, composite.RedirectAutomatic)

			if pixmap, err := xproto.NewPixmapId(xc); err == nil {
				if err := composite.NameWindowPixmapChecked(xc, win, pixmap).Check(); err == nil {
					drawable = xproto.Drawable(pixmap)
					defer xproto.FreePixmap(xc, pixmap)
				}
			}
		}
	}

	reply, err := xproto.GetImage(
		xc,
		xproto.ImageFormatZPixmap,
		drawable,
		0, 0,
		uint16(width), uint16(height),
		0xffffffff,
	).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}

	return convertImageData(reply.Data, width, height, int(reply.Depth))
}

// convertImageData converts 24/32-bit BGRX ZPixmap data to RGBA
func convertImageData(data []byte, width, height, depth int) (*image.RGBA, error) {
	if depth != 24 && depth != 32 {
		return nil, fmt.Errorf("unsupported window depth %d", depth)
	}
	if len(data) < width*height*4 {
		return nil, fmt.Errorf("short image data: got %d bytes for %dx%d", len(data), width, height)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		o := i * 4
		img.Pix[o+0] = data[o+2]
		img.Pix[o+1] = data[o+1]
		img.Pix[o+2] = data[o+0]
		img.Pix[o+3] = 0xff
	}
	return img, nil
}
