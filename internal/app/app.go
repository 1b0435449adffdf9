// Package app wires the X11 platform bindings, the selection controller
// and the optional HTTP surface into one process.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/porthole/porthole/internal/api"
	"github.com/porthole/porthole/internal/capture"
	"github.com/porthole/porthole/internal/config"
	"github.com/porthole/porthole/internal/logger"
	"github.com/porthole/porthole/internal/output"
	"github.com/porthole/porthole/internal/pointer"
	"github.com/porthole/porthole/internal/runloop"
	"github.com/porthole/porthole/internal/selection"
	"github.com/porthole/porthole/internal/surface"
	"github.com/porthole/porthole/internal/window"
	"github.com/porthole/porthole/internal/x11"
)

const shutdownTimeout = 3 * time.Second

// Options adjust a run beyond the configuration file
type Options struct {
	// Target skips the pick and captures this window right away
	Target window.Handle

	// Listen enables the HTTP API on this address, overriding server.*
	Listen string
}

// App owns every long-lived component
type App struct {
	cfg  *config.Config
	opts Options

	loop      *runloop.Loop
	conn      *x11.Connection
	directory *window.Directory
	overlay   *surface.X11Overlay
	preview   *surface.X11Preview
	scheduler *capture.Scheduler
	ctrl      *selection.Controller
	life      *Lifecycle

	stream *output.MJPEGOutput
	server *api.Server
	addr   string
}

// New connects to the X server and builds the component graph. Nothing
// runs until Run is called.
func New(cfg *config.Config, opts Options) (*App, error) {
	log := logger.WithComponent("app")

	conn, err := x11.NewConnection()
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:  cfg,
		opts: opts,
		loop: runloop.New(),
		conn: conn,
	}
	if err := a.build(); err != nil {
		conn.Close()
		return nil, err
	}

	log.Debug().
		Int("fps", cfg.Capture.FPS).
		Bool("api", a.server != nil).
		Msg("Application assembled")
	return a, nil
}

func (a *App) build() error {
	log := logger.WithComponent("app")
	cfg := a.cfg

	service := window.NewX11Service(a.conn)
	a.directory = window.NewDirectory(service)

	color, err := config.ParseColor(cfg.Overlay.Color)
	if err != nil {
		return err
	}
	a.overlay = surface.NewX11Overlay(a.conn, surface.OverlayConfig{
		Color:     color,
		Opacity:   cfg.Overlay.Opacity,
		ShowLabel: cfg.Overlay.ShowLabel,
	})

	a.preview, err = surface.NewX11Preview(a.conn, surface.PreviewConfig{
		Title:       "Porthole",
		Width:       cfg.Preview.Width,
		Height:      cfg.Preview.Height,
		AlwaysOnTop: cfg.Preview.AlwaysOnTop,
		AllDesktops: cfg.Preview.AllDesktops,
		Movable:     cfg.Preview.Movable,
	})
	if err != nil {
		return fmt.Errorf("failed to create preview window: %w", err)
	}
	service.Ignore(a.preview.Handle())

	composite := capture.NewX11Capturer(a.conn)
	if !composite.CompositeEnabled() {
		log.Warn().Msg("Composite extension unavailable, covered windows will not capture correctly")
	}
	capturer := capture.NewRouter(composite, capture.NewScreenCapturer(service))

	a.scheduler = capture.NewScheduler(
		capturer,
		a.preview,
		capture.LoopTimers(a.loop),
		cfg.Capture.FPS,
		capture.Options{
			ExcludeFrame:     cfg.Capture.ExcludeFrame,
			NativeResolution: cfg.Capture.NativeResolution,
		},
	)

	a.ctrl = selection.NewController(a.directory, a.overlay, a.scheduler)
	a.ctrl.IgnoreSurface(a.preview.Handle())
	a.ctrl.SetInterceptor(pointer.NewInterceptor(pointer.NewX11Tap(a.conn), pointer.NewRegistry(), a.ctrl))
	a.preview.OnClose(a.ctrl.StopCapture)

	a.life = NewLifecycle(a.ctrl, a.opts.Target)

	a.addr = a.opts.Listen
	if a.addr == "" && cfg.Server.Enabled {
		a.addr = fmt.Sprintf(":%d", cfg.Server.Port)
	}
	if a.addr != "" {
		a.stream = output.NewMJPEGOutput(output.Config{
			FPS:     cfg.Capture.FPS,
			Quality: cfg.Stream.Quality,
		})
		a.scheduler.AddSink(a.stream)
		a.server = api.NewServer(a.loop, a.ctrl, a.directory, a.scheduler, a.stream)
	}
	return nil
}

// Run launches, serves signals and shuts down when ctx is cancelled or
// SIGINT/SIGTERM arrives. SIGUSR1 re-enters selection, SIGUSR2 leaves it.
func (a *App) Run(ctx context.Context) error {
	log := logger.WithComponent("app")

	// The loop outlives ctx so the terminate hook can still run on it
	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		a.loop.Run(loopCtx)
	}()
	go a.conn.Pump(a.loop.Post)

	serverCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()
	if a.server != nil {
		if err := a.stream.Start(); err != nil {
			log.Warn().Err(err).Msg("Failed to start MJPEG output")
		}
		go func() {
			if err := a.server.Start(serverCtx, a.addr); err != nil {
				log.Error().Err(err).Msg("API server stopped")
			}
		}()
	}

	var launchErr error
	if err := a.loop.Call(ctx, func() { launchErr = a.life.OnLaunch() }); err != nil {
		launchErr = err
	}
	if launchErr != nil {
		if a.opts.Target != 0 {
			a.shutdown(stopServer, stopLoop, loopDone)
			return launchErr
		}
		// A missing pointer tap is not fatal; SIGUSR1 or the API can retry
		log.Error().Err(launchErr).Msg("Could not start selection")
	} else if a.opts.Target == 0 {
		log.Info().Msg("Move the pointer over a window and click to mirror it")
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigs)

	running := true
	for running {
		select {
		case <-ctx.Done():
			running = false
		case sig := <-sigs:
			switch actionFor(sig) {
			case actionTerminate:
				log.Info().Str("signal", sig.String()).Msg("Shutting down")
				running = false
			case actionReselect:
				a.loop.Post(func() {
					if err := a.life.OnReselect(); err != nil {
						log.Error().Err(err).Msg("Could not re-enter selection")
					}
				})
			case actionBackground:
				a.loop.Post(a.life.OnBackground)
			}
		}
	}

	a.shutdown(stopServer, stopLoop, loopDone)
	return nil
}

func (a *App) shutdown(stopServer, stopLoop context.CancelFunc, loopDone <-chan struct{}) {
	log := logger.WithComponent("app")

	callCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.loop.Call(callCtx, a.life.OnTerminate); err != nil {
		log.Warn().Err(err).Msg("Terminate hook did not run")
	}

	stopServer()
	if a.stream != nil {
		a.stream.Stop()
	}

	stopLoop()
	<-loopDone

	a.overlay.Destroy()
	a.preview.Destroy()
	a.conn.Close()
	log.Info().Msg("Stopped")
}
