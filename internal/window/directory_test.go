package window

import (
	"errors"
	"testing"
)

type fakeService struct {
	windows []Info
	listErr error
}

func (f *fakeService) List(onScreenOnly bool) ([]Info, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.windows, nil
}

func (f *fakeService) Bounds(h Handle) (Bounds, error) {
	for _, w := range f.windows {
		if w.Handle == h {
			return w.Bounds, nil
		}
	}
	return Bounds{}, ErrWindowGone
}

func TestListVisibleWindowsFailsSoft(t *testing.T) {
	d := NewDirectory(&fakeService{listErr: errors.New("boom")})

	got := d.ListVisibleWindows()
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestListVisibleWindowsKeepsOrder(t *testing.T) {
	svc := &fakeService{windows: []Info{
		{Handle: 2, Owner: "B", Bounds: Bounds{100, 100, 400, 300}},
		{Handle: 1, Owner: "A", Bounds: Bounds{0, 0, 800, 600}},
	}}
	d := NewDirectory(svc)

	got := d.ListVisibleWindows()
	if len(got) != 2 || got[0].Handle != 2 || got[1].Handle != 1 {
		t.Fatalf("unexpected listing: %+v", got)
	}
}

func TestBoundsOf(t *testing.T) {
	svc := &fakeService{windows: []Info{
		{Handle: 7, Bounds: Bounds{10, 20, 30, 40}},
		{Handle: 8, Bounds: Bounds{0, 0, 0, 0}},
	}}
	d := NewDirectory(svc)

	tests := []struct {
		name   string
		handle Handle
		want   Bounds
		wantOK bool
	}{
		{"live window", 7, Bounds{10, 20, 30, 40}, true},
		{"gone window", 9, Bounds{}, false},
		{"zero sized window", 8, Bounds{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := d.BoundsOf(tt.handle)
			if ok != tt.wantOK || got != tt.want {
				t.Fatalf("BoundsOf(%v) = %v, %v; want %v, %v", tt.handle, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestWindowAtPrefersFrontmost(t *testing.T) {
	svc := &fakeService{windows: []Info{
		{Handle: 2, Bounds: Bounds{100, 100, 400, 300}},
		{Handle: 1, Bounds: Bounds{0, 0, 800, 600}},
	}}
	d := NewDirectory(svc)

	if w, ok := d.WindowAt(150, 150); !ok || w.Handle != 2 {
		t.Fatalf("WindowAt inside B = %v, %v", w, ok)
	}
	if w, ok := d.WindowAt(50, 50); !ok || w.Handle != 1 {
		t.Fatalf("WindowAt inside A only = %v, %v", w, ok)
	}
	if _, ok := d.WindowAt(900, 900); ok {
		t.Fatalf("WindowAt outside every window should miss")
	}
}

func TestBoundsIntersects(t *testing.T) {
	screen := Bounds{0, 0, 1920, 1080}
	tests := []struct {
		b    Bounds
		want bool
	}{
		{Bounds{100, 100, 400, 300}, true},
		{Bounds{-500, -500, 400, 300}, false},
		{Bounds{1900, 1000, 100, 100}, true},
		{Bounds{1920, 0, 100, 100}, false},
		{Bounds{10, 10, 0, 10}, false},
	}
	for _, tt := range tests {
		if got := tt.b.Intersects(screen); got != tt.want {
			t.Errorf("%v.Intersects(screen) = %v, want %v", tt.b, got, tt.want)
		}
	}
}
