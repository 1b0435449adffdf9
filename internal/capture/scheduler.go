package capture

import (
	"time"

	"github.com/porthole/porthole/internal/logger"
	"github.com/porthole/porthole/internal/window"
)

// DefaultFPS is the preview refresh rate
const DefaultFPS = 30

// Stats describes the current capture session
type Stats struct {
	Active     bool          `json:"active"`
	Target     window.Handle `json:"target,omitempty"`
	Period     time.Duration `json:"period_ns"`
	Frames     uint64        `json:"frames"`
	Skipped    uint64        `json:"skipped"`
	LastWidth  int           `json:"last_width"`
	LastHeight int           `json:"last_height"`
	LastFrame  time.Time     `json:"last_frame"`
	AvgCapture time.Duration `json:"avg_capture_ns"`
}

// Scheduler polls one target window at a fixed period and pushes each frame
// to the preview. All methods, and the ticks themselves, run on the
// scheduling context behind the TimerSource, so no locking is needed.
type Scheduler struct {
	capturer Capturer
	preview  Preview
	timers   TimerSource
	period   time.Duration
	opts     Options
	sinks    []FrameSink
	now      func() time.Time

	timer      Timer
	target     window.Handle
	active     bool
	generation uint64

	frames       uint64
	skipped      uint64
	captureNanos int64
	lastWidth    int
	lastHeight   int
	lastFrame    time.Time
}

// NewScheduler creates an idle scheduler. fps <= 0 selects DefaultFPS.
func NewScheduler(capturer Capturer, preview Preview, timers TimerSource, fps int, opts Options) *Scheduler {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &Scheduler{
		capturer: capturer,
		preview:  preview,
		timers:   timers,
		period:   time.Second / time.Duration(fps),
		opts:     opts,
		now:      time.Now,
	}
}

// AddSink registers an additional receiver of preview frames
func (s *Scheduler) AddSink(sink FrameSink) {
	s.sinks = append(s.sinks, sink)
}

// Period returns the tick interval
func (s *Scheduler) Period() time.Duration {
	return s.period
}

// BeginCapture cancels any running timer, shows the preview and starts
// polling h. Calling it again re-targets without overlapping ticks.
func (s *Scheduler) BeginCapture(h window.Handle) {
	log := logger.WithComponent("scheduler")

	s.cancelTimer()

	s.generation++
	gen := s.generation
	s.target = h
	s.active = true
	s.resetStats()

	s.preview.Show()
	s.timer = s.timers.Every(s.period, func() { s.tick(gen, h) })

	log.Info().
		Stringer("target", h).
		Dur("period", s.period).
		Msg("Capture started")
}

// Stop cancels polling and hides the preview. No-op when idle.
func (s *Scheduler) Stop() {
	if !s.active {
		return
	}
	log := logger.WithComponent("scheduler")

	s.cancelTimer()
	s.generation++
	s.active = false
	target := s.target
	s.target = 0
	s.preview.Hide()

	log.Info().
		Stringer("target", target).
		Uint64("frames", s.frames).
		Uint64("skipped", s.skipped).
		Msg("Capture stopped")
}

// Target returns the window currently being polled
func (s *Scheduler) Target() (window.Handle, bool) {
	return s.target, s.active
}

// Active reports whether a capture session is running
func (s *Scheduler) Active() bool {
	return s.active
}

// Stats returns counters for the current session
func (s *Scheduler) Stats() Stats {
	var avg time.Duration
	if s.frames > 0 {
		avg = time.Duration(s.captureNanos / int64(s.frames))
	}
	return Stats{
		Active:     s.active,
		Target:     s.target,
		Period:     s.period,
		Frames:     s.frames,
		Skipped:    s.skipped,
		LastWidth:  s.lastWidth,
		LastHeight: s.lastHeight,
		LastFrame:  s.lastFrame,
		AvgCapture: avg,
	}
}

func (s *Scheduler) cancelTimer() {
	if s.timer != nil {
		s.timer.Cancel()
		s.timer = nil
	}
}

func (s *Scheduler) resetStats() {
	s.frames = 0
	s.skipped = 0
	s.captureNanos = 0
	s.lastWidth = 0
	s.lastHeight = 0
	s.lastFrame = time.Time{}
}

// tick captures one frame. A tick from a superseded session is discarded.
func (s *Scheduler) tick(gen uint64, h window.Handle) {
	if gen != s.generation || !s.active {
		return
	}
	log := logger.WithComponent("scheduler")

	start := s.now()
	snap, err := s.capturer.Capture(h, s.opts)
	if err != nil || snap == nil || snap.Image == nil {
		s.skipped++
		if err != nil {
			log.Debug().Err(err).Stringer("target", h).Msg("Frame skipped")
		}
		return
	}
	elapsed := s.now().Sub(start)

	s.preview.SetContents(snap.Image)
	s.preview.SetAspectRatio(snap.Width, snap.Height)

	s.frames++
	s.captureNanos += elapsed.Nanoseconds()
	s.lastWidth = snap.Width
	s.lastHeight = snap.Height
	s.lastFrame = s.now()

	if elapsed > s.period {
		log.Debug().
			Dur("capture", elapsed).
			Dur("budget", s.period).
			Msg("Capture exceeded tick budget")
	}

	for _, sink := range s.sinks {
		if err := sink.WriteFrame(snap.Image); err != nil {
			log.Debug().Err(err).Msg("Frame sink rejected frame")
		}
	}
}
