package x11

import (
	"fmt"
	"image"

	"github.com/BurntSushi/xgb/xproto"
)

// putImageHeader is the fixed size of a PutImage request in bytes
const putImageHeader = 24

// ARGBVisual returns a 32-bit TrueColor visual, used for translucent windows
func (c *Connection) ARGBVisual() (xproto.Visualid, bool) {
	for _, depth := range c.Screen.AllowedDepths {
		if depth.Depth != 32 {
			continue
		}
		for _, visual := range depth.Visuals {
			if visual.Class == xproto.VisualClassTrueColor {
				return visual.VisualId, true
			}
		}
	}
	return 0, false
}

// PixmapFormat returns bits per pixel and scanline pad for depth
func (c *Connection) PixmapFormat(depth byte) (bitsPerPixel, scanlinePad int, err error) {
	setup := xproto.Setup(c.Conn())
	for _, format := range setup.PixmapFormats {
		if format.Depth == depth {
			return int(format.BitsPerPixel), int(format.ScanlinePad), nil
		}
	}
	return 0, 0, fmt.Errorf("no format found for depth %d", depth)
}

// MaxRequestBytes returns the largest request the server accepts
func (c *Connection) MaxRequestBytes() int {
	setup := xproto.Setup(c.Conn())
	return int(setup.MaximumRequestLength) * 4
}

// EncodeZPixmap converts img to the server's ZPixmap layout for depth.
// Scanlines are padded to scanlinePad bits. Depth 32 keeps alpha, which is
// expected to be premultiplied as it is in image.RGBA.
func EncodeZPixmap(img *image.RGBA, depth byte, bitsPerPixel, scanlinePad int) ([]byte, int, error) {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()

	bytesPerPixel := bitsPerPixel / 8
	if bytesPerPixel != 3 && bytesPerPixel != 4 {
		return nil, 0, fmt.Errorf("unsupported bytes per pixel: %d", bytesPerPixel)
	}
	padBytes := scanlinePad / 8
	if padBytes == 0 {
		padBytes = 1
	}
	unpadded := width * bytesPerPixel
	stride := ((unpadded + padBytes - 1) / padBytes) * padBytes

	data := make([]byte, stride*height)
	for y := 0; y < height; y++ {
		src := img.Pix[y*img.Stride:]
		dst := data[y*stride:]
		for x := 0; x < width; x++ {
			s := x * 4
			d := x * bytesPerPixel
			dst[d] = src[s+2]
			dst[d+1] = src[s+1]
			dst[d+2] = src[s]
			if bytesPerPixel == 4 && depth == 32 {
				dst[d+3] = src[s+3]
			}
		}
	}
	return data, stride, nil
}

// PutRGBA draws img at (dstX, dstY) in drawable. The image is sent in
// horizontal strips small enough for the server's request size limit.
func (c *Connection) PutRGBA(drawable xproto.Drawable, gc xproto.Gcontext, depth byte, img *image.RGBA, dstX, dstY int) error {
	bpp, pad, err := c.PixmapFormat(depth)
	if err != nil {
		return err
	}
	data, stride, err := EncodeZPixmap(img, depth, bpp, pad)
	if err != nil {
		return err
	}

	width := img.Bounds().Dx()
	height := img.Bounds().Dy()
	if width == 0 || height == 0 {
		return nil
	}

	rowsPerStrip := StripRows(c.MaxRequestBytes(), stride)
	if rowsPerStrip == 0 {
		return fmt.Errorf("image row of %d bytes exceeds request limit", stride)
	}

	for row := 0; row < height; row += rowsPerStrip {
		rows := min(rowsPerStrip, height-row)
		xproto.PutImage(
			c.Conn(),
			xproto.ImageFormatZPixmap,
			drawable,
			gc,
			uint16(width),
			uint16(rows),
			int16(dstX), int16(dstY+row),
			0, // left pad
			depth,
			data[row*stride:(row+rows)*stride],
		)
	}
	return nil
}

// StripRows returns how many scanlines of stride bytes fit in one PutImage
// request of at most maxRequest bytes
func StripRows(maxRequest, stride int) int {
	if stride <= 0 {
		return 0
	}
	return (maxRequest - putImageHeader) / stride
}
