package capture

import (
	"errors"
	"image"
	"testing"
	"time"

	"github.com/porthole/porthole/internal/window"
)

type fakeTimer struct {
	period    time.Duration
	fn        func()
	cancelled bool
}

func (t *fakeTimer) Cancel() { t.cancelled = true }

type fakeTimers struct {
	started []*fakeTimer
}

func (f *fakeTimers) Every(period time.Duration, fn func()) Timer {
	t := &fakeTimer{period: period, fn: fn}
	f.started = append(f.started, t)
	return t
}

func (f *fakeTimers) live() []*fakeTimer {
	var out []*fakeTimer
	for _, t := range f.started {
		if !t.cancelled {
			out = append(out, t)
		}
	}
	return out
}

type fakeCapturer struct {
	sizes map[window.Handle]image.Point
	calls []window.Handle
	fail  bool
}

func (c *fakeCapturer) Name() string { return "fake" }

func (c *fakeCapturer) Capture(h window.Handle, opts Options) (*Snapshot, error) {
	c.calls = append(c.calls, h)
	if c.fail {
		return nil, ErrNoFrame
	}
	size, ok := c.sizes[h]
	if !ok {
		return nil, window.ErrWindowGone
	}
	return newSnapshot(image.NewRGBA(image.Rect(0, 0, size.X, size.Y))), nil
}

type fakePreview struct {
	visible  bool
	contents *image.RGBA
	aspectW  int
	aspectH  int
	updates  int
}

func (p *fakePreview) Show()                       { p.visible = true }
func (p *fakePreview) Hide()                       { p.visible = false }
func (p *fakePreview) SetContents(img *image.RGBA) { p.contents = img; p.updates++ }
func (p *fakePreview) SetAspectRatio(w, h int)     { p.aspectW, p.aspectH = w, h }

type recordingSink struct {
	frames int
}

func (s *recordingSink) WriteFrame(*image.RGBA) error {
	s.frames++
	return nil
}

func newTestScheduler(sizes map[window.Handle]image.Point) (*Scheduler, *fakeCapturer, *fakePreview, *fakeTimers) {
	capt := &fakeCapturer{sizes: sizes}
	preview := &fakePreview{}
	timers := &fakeTimers{}
	return NewScheduler(capt, preview, timers, 30, DefaultOptions()), capt, preview, timers
}

func TestBeginCaptureStartsTimerAndShowsPreview(t *testing.T) {
	s, _, preview, timers := newTestScheduler(map[window.Handle]image.Point{1: {400, 300}})

	s.BeginCapture(1)

	if !preview.visible {
		t.Fatal("preview should be visible")
	}
	if len(timers.live()) != 1 {
		t.Fatalf("live timers = %d, want 1", len(timers.live()))
	}
	if got := timers.started[0].period; got != time.Second/30 {
		t.Fatalf("period = %v, want 1/30 s", got)
	}
	if h, ok := s.Target(); !ok || h != 1 {
		t.Fatalf("Target() = %v, %v", h, ok)
	}
}

func TestTickUpdatesContentsAndAspect(t *testing.T) {
	s, _, preview, timers := newTestScheduler(map[window.Handle]image.Point{2: {400, 300}})
	sink := &recordingSink{}
	s.AddSink(sink)

	s.BeginCapture(2)
	timers.started[0].fn()

	if preview.contents == nil || preview.contents.Bounds().Dx() != 400 {
		t.Fatalf("preview contents not replaced")
	}
	if preview.aspectW != 400 || preview.aspectH != 300 {
		t.Fatalf("aspect = %d:%d, want 400:300", preview.aspectW, preview.aspectH)
	}
	if ratio := float64(preview.aspectH) / float64(preview.aspectW); ratio != 0.75 {
		t.Fatalf("aspect ratio = %v, want 0.75", ratio)
	}
	if sink.frames != 1 {
		t.Fatalf("sink frames = %d, want 1", sink.frames)
	}
	stats := s.Stats()
	if stats.Frames != 1 || stats.LastWidth != 400 || stats.LastHeight != 300 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestFailedTickKeepsPreviousFrame(t *testing.T) {
	s, capt, preview, timers := newTestScheduler(map[window.Handle]image.Point{3: {200, 100}})

	s.BeginCapture(3)
	timers.started[0].fn()
	first := preview.contents

	capt.fail = true
	timers.started[0].fn()

	if preview.contents != first || preview.updates != 1 {
		t.Fatalf("failed tick must not touch the preview")
	}
	if s.Stats().Skipped != 1 {
		t.Fatalf("skipped = %d, want 1", s.Stats().Skipped)
	}
}

func TestRetargetLeavesOneTimer(t *testing.T) {
	s, capt, _, timers := newTestScheduler(map[window.Handle]image.Point{
		1: {100, 100},
		2: {200, 100},
	})

	s.BeginCapture(1)
	s.BeginCapture(2)

	live := timers.live()
	if len(live) != 1 {
		t.Fatalf("live timers = %d, want 1", len(live))
	}
	if !timers.started[0].cancelled {
		t.Fatal("first timer should be cancelled")
	}

	// A tick of the superseded timer that was already queued is ignored.
	timers.started[0].fn()
	live[0].fn()
	live[0].fn()

	for _, h := range capt.calls {
		if h != 2 {
			t.Fatalf("tick referenced old target %v after re-targeting", h)
		}
	}
	if len(capt.calls) != 2 {
		t.Fatalf("capture calls = %d, want 2", len(capt.calls))
	}
}

func TestStopCancelsAndHides(t *testing.T) {
	s, capt, preview, timers := newTestScheduler(map[window.Handle]image.Point{1: {100, 100}})

	s.BeginCapture(1)
	s.Stop()

	if preview.visible {
		t.Fatal("preview should be hidden")
	}
	if len(timers.live()) != 0 {
		t.Fatal("timer should be cancelled")
	}
	if _, ok := s.Target(); ok {
		t.Fatal("no target expected after Stop")
	}

	timers.started[0].fn()
	if len(capt.calls) != 0 {
		t.Fatal("queued tick ran after Stop")
	}

	s.Stop()
}

type errCapturer struct {
	name string
	err  error
	snap *Snapshot
	hits int
}

func (c *errCapturer) Name() string { return c.name }

func (c *errCapturer) Capture(window.Handle, Options) (*Snapshot, error) {
	c.hits++
	return c.snap, c.err
}

func TestRouterFallsBack(t *testing.T) {
	first := &errCapturer{name: "first", err: errors.New("bad match")}
	second := &errCapturer{name: "second", snap: newSnapshot(image.NewRGBA(image.Rect(0, 0, 4, 3)))}

	snap, err := NewRouter(first, second).Capture(1, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if snap.Width != 4 || snap.Height != 3 {
		t.Fatalf("snapshot = %dx%d", snap.Width, snap.Height)
	}
	if first.hits != 1 || second.hits != 1 {
		t.Fatalf("hits = %d, %d", first.hits, second.hits)
	}
}

func TestRouterStopsOnGoneWindow(t *testing.T) {
	first := &errCapturer{name: "first", err: window.ErrWindowGone}
	second := &errCapturer{name: "second"}

	_, err := NewRouter(first, second).Capture(1, DefaultOptions())
	if !errors.Is(err, window.ErrWindowGone) {
		t.Fatalf("err = %v, want ErrWindowGone", err)
	}
	if second.hits != 0 {
		t.Fatal("router should not try other capturers for a gone window")
	}
}

type staticBounds map[window.Handle]window.Bounds

func (s staticBounds) Bounds(h window.Handle) (window.Bounds, error) {
	b, ok := s[h]
	if !ok {
		return window.Bounds{}, window.ErrWindowGone
	}
	return b, nil
}

func TestScreenCapturerGrabsWindowRegion(t *testing.T) {
	var asked image.Rectangle
	c := NewScreenCapturer(staticBounds{5: {X: 100, Y: 100, Width: 400, Height: 300}})
	c.grab = func(r image.Rectangle) (*image.RGBA, error) {
		asked = r
		return image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy())), nil
	}

	snap, err := c.Capture(5, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if asked != image.Rect(100, 100, 500, 400) {
		t.Fatalf("grabbed %v", asked)
	}
	if snap.Width != 400 || snap.Height != 300 {
		t.Fatalf("snapshot = %dx%d", snap.Width, snap.Height)
	}

	half, err := c.Capture(5, Options{ExcludeFrame: true})
	if err != nil {
		t.Fatal(err)
	}
	if half.Width != 200 || half.Height != 150 {
		t.Fatalf("scaled snapshot = %dx%d, want 200x150", half.Width, half.Height)
	}

	if _, err := c.Capture(6, DefaultOptions()); !errors.Is(err, window.ErrWindowGone) {
		t.Fatalf("err = %v, want ErrWindowGone", err)
	}
}

func TestConvertImageData(t *testing.T) {
	// One BGRX pixel: blue=1 green=2 red=3
	img, err := convertImageData([]byte{1, 2, 3, 0}, 1, 1, 24)
	if err != nil {
		t.Fatal(err)
	}
	if got := img.Pix[:4]; got[0] != 3 || got[1] != 2 || got[2] != 1 || got[3] != 0xff {
		t.Fatalf("pixel = %v", got)
	}

	if _, err := convertImageData([]byte{1, 2}, 1, 1, 24); err == nil {
		t.Fatal("expected error for short data")
	}
	if _, err := convertImageData(make([]byte, 4), 1, 1, 16); err == nil {
		t.Fatal("expected error for 16-bit depth")
	}
}
