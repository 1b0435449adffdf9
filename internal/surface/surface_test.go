package surface

import (
	"image"
	"image/color"
	"strings"
	"testing"
)

func TestRenderLabelSizesToText(t *testing.T) {
	img := RenderLabel(Label{
		Text:       "Firefox  800x600",
		TextColor:  color.RGBA{R: 255, G: 255, B: 255, A: 255},
		Background: color.RGBA{A: 255},
		Opacity:    1,
	})
	if img == nil {
		t.Fatal("expected an image")
	}
	// basicfont is 7 pixels per glyph
	wantW := 16*7 + 2*labelPadding
	wantH := labelFontSize + 2*labelPadding
	if img.Bounds().Dx() != wantW || img.Bounds().Dy() != wantH {
		t.Fatalf("size = %v, want %dx%d", img.Bounds().Size(), wantW, wantH)
	}

	lit := false
	for i := 0; i < len(img.Pix); i += 4 {
		if img.Pix[i] > 128 {
			lit = true
			break
		}
	}
	if !lit {
		t.Fatal("no text pixels drawn")
	}
}

func TestRenderLabelTruncatesAndSkipsEmpty(t *testing.T) {
	if img := RenderLabel(Label{}); img != nil {
		t.Fatal("empty label should render nothing")
	}

	img := RenderLabel(Label{Text: strings.Repeat("x", 200), Opacity: 1})
	if got, want := img.Bounds().Dx(), labelMaxChars*7+2*labelPadding; got != want {
		t.Fatalf("width = %d, want %d", got, want)
	}
}

func TestBlendImage(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 2, 1))
	dst.SetRGBA(0, 0, color.RGBA{R: 200, A: 255})
	dst.SetRGBA(1, 0, color.RGBA{R: 200, A: 255})

	src := image.NewRGBA(image.Rect(0, 0, 1, 1))
	src.SetRGBA(0, 0, color.RGBA{B: 255, A: 255})

	BlendImage(dst, src, 1, 0, 0.5)

	if got := dst.RGBAAt(0, 0); got.R != 200 || got.B != 0 {
		t.Fatalf("untouched pixel changed: %v", got)
	}
	got := dst.RGBAAt(1, 0)
	if got.R != 100 || got.B != 127 || got.A != 255 {
		t.Fatalf("blended = %v, want R100 B127 A255", got)
	}

	// Out of bounds is clipped, zero opacity is a no-op
	BlendImage(dst, src, 5, 5, 1)
	BlendImage(dst, src, 0, 0, 0)
	if got := dst.RGBAAt(0, 0); got.R != 200 {
		t.Fatalf("pixel changed: %v", got)
	}
}

func TestPremultiply(t *testing.T) {
	c := premultiply(0x33, 0x99, 0xff, 0.2)
	if c.A != 51 || c.B != 51 || c.R != 10 || c.G != 30 {
		t.Fatalf("premultiply = %v", c)
	}
}

func TestOverlayPixels(t *testing.T) {
	o := NewX11Overlay(nil, OverlayConfig{Color: 0x3399ff, Opacity: 0.2})
	if got := o.borderPixel(); got != 0xff3399ff {
		t.Fatalf("borderPixel = %#x", got)
	}
	if got := o.fillPixel(false); got != 0x3399ff {
		t.Fatalf("opaque fill = %#x", got)
	}
	if got := o.fillPixel(true); got != 0x330a1e33 {
		t.Fatalf("argb fill = %#x", got)
	}

	bad := NewX11Overlay(nil, OverlayConfig{Opacity: 4})
	if bad.cfg.Opacity != 0.3 {
		t.Fatalf("opacity = %v, want fallback 0.3", bad.cfg.Opacity)
	}
}

func TestFitRect(t *testing.T) {
	tests := []struct {
		name                   string
		srcW, srcH, dstW, dstH int
		want                   image.Rectangle
	}{
		{"exact", 400, 300, 800, 600, image.Rect(0, 0, 800, 600)},
		{"wide source", 800, 200, 400, 400, image.Rect(0, 150, 400, 250)},
		{"tall source", 200, 800, 400, 400, image.Rect(150, 0, 250, 400)},
		{"empty", 0, 10, 10, 10, image.Rectangle{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FitRect(tt.srcW, tt.srcH, tt.dstW, tt.dstH); got != tt.want {
				t.Errorf("FitRect = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGCD(t *testing.T) {
	if got := gcd(400, 300); got != 100 {
		t.Fatalf("gcd(400, 300) = %d", got)
	}
	if got := gcd(1920, 1080); got != 120 {
		t.Fatalf("gcd(1920, 1080) = %d", got)
	}
}
