package surface

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	labelFontSize = 13 // basicfont.Face7x13
	labelPadding  = 5
	labelMaxChars = 60
)

// Label is a text badge drawn in the corner of the hover overlay
type Label struct {
	Text       string
	TextColor  color.RGBA
	Background color.RGBA
	Opacity    float64
}

// RenderLabel draws the label into a new image sized to fit its text
func RenderLabel(l Label) *image.RGBA {
	text := l.Text
	if len(text) > labelMaxChars {
		text = text[:labelMaxChars-1] + "~"
	}
	if text == "" {
		return nil
	}

	face := basicfont.Face7x13
	textWidth := font.MeasureString(face, text).Ceil()

	width := textWidth + labelPadding*2
	height := labelFontSize + labelPadding*2
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	bg := image.NewRGBA(img.Bounds())
	draw.Draw(bg, bg.Bounds(), &image.Uniform{l.Background}, image.Point{}, draw.Src)
	BlendImage(img, bg, 0, 0, l.Opacity)

	textImg := image.NewRGBA(image.Rect(0, 0, textWidth, labelFontSize))
	d := &font.Drawer{
		Dst:  textImg,
		Src:  image.NewUniform(l.TextColor),
		Face: face,
		Dot:  fixed.Point26_6{X: 0, Y: fixed.I(labelFontSize - face.Descent)},
	}
	d.DrawString(text)
	BlendImage(img, textImg, labelPadding, labelPadding, 1.0)

	return img
}

// BlendImage composites src onto dst at (x, y) with the given opacity.
// Both images hold premultiplied alpha.
func BlendImage(dst *image.RGBA, src *image.RGBA, x, y int, opacity float64) {
	if opacity <= 0 {
		return
	}
	if opacity > 1 {
		opacity = 1
	}

	sb := src.Bounds()
	db := dst.Bounds()
	for sy := sb.Min.Y; sy < sb.Max.Y; sy++ {
		dy := y + (sy - sb.Min.Y)
		if dy < db.Min.Y || dy >= db.Max.Y {
			continue
		}
		for sx := sb.Min.X; sx < sb.Max.X; sx++ {
			dx := x + (sx - sb.Min.X)
			if dx < db.Min.X || dx >= db.Max.X {
				continue
			}

			s := src.RGBAAt(sx, sy)
			if s.A == 0 {
				continue
			}
			d := dst.RGBAAt(dx, dy)

			sa := float64(s.A) * opacity / 255
			inv := 1 - sa
			dst.SetRGBA(dx, dy, color.RGBA{
				R: uint8(float64(s.R)*opacity + float64(d.R)*inv),
				G: uint8(float64(s.G)*opacity + float64(d.G)*inv),
				B: uint8(float64(s.B)*opacity + float64(d.B)*inv),
				A: uint8(float64(s.A)*opacity + float64(d.A)*inv),
			})
		}
	}
}
