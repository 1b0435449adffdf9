package x11

import (
	"image"
	"image/color"
	"testing"
)

func TestEncodeZPixmapDepth24(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.SetRGBA(0, 0, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	img.SetRGBA(2, 1, color.RGBA{R: 1, G: 2, B: 3, A: 255})

	data, stride, err := EncodeZPixmap(img, 24, 32, 32)
	if err != nil {
		t.Fatal(err)
	}
	if stride != 12 {
		t.Fatalf("stride = %d, want 12", stride)
	}
	if len(data) != 24 {
		t.Fatalf("len = %d, want 24", len(data))
	}
	if data[0] != 30 || data[1] != 20 || data[2] != 10 || data[3] != 0 {
		t.Fatalf("first pixel = %v, want BGRX 30 20 10 0", data[:4])
	}
	last := data[stride+8 : stride+12]
	if last[0] != 3 || last[1] != 2 || last[2] != 1 {
		t.Fatalf("last pixel = %v", last)
	}
}

func TestEncodeZPixmapKeepsAlphaAtDepth32(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 40, G: 50, B: 60, A: 128})

	data, _, err := EncodeZPixmap(img, 32, 32, 32)
	if err != nil {
		t.Fatal(err)
	}
	if data[3] != 128 {
		t.Fatalf("alpha = %d, want 128", data[3])
	}
}

func TestEncodeZPixmapPadsRows(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 1))
	_, stride, err := EncodeZPixmap(img, 24, 24, 32)
	if err != nil {
		t.Fatal(err)
	}
	// 3 pixels * 3 bytes = 9, padded to 12
	if stride != 12 {
		t.Fatalf("stride = %d, want 12", stride)
	}

	if _, _, err := EncodeZPixmap(img, 16, 16, 32); err == nil {
		t.Fatal("expected error for 16 bpp")
	}
}

func TestStripRows(t *testing.T) {
	tests := []struct {
		max, stride, want int
	}{
		{262140, 1920 * 4, 34},
		{262140, 400 * 4, 163},
		{1000, 2000, 0},
		{1000, 0, 0},
	}
	for _, tt := range tests {
		if got := StripRows(tt.max, tt.stride); got != tt.want {
			t.Errorf("StripRows(%d, %d) = %d, want %d", tt.max, tt.stride, got, tt.want)
		}
	}
}
