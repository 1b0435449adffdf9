package commands

import (
	"context"
	"fmt"

	"github.com/porthole/porthole/internal/app"
	"github.com/porthole/porthole/internal/config"
	"github.com/porthole/porthole/internal/logger"
	"github.com/porthole/porthole/internal/window"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Pick a window and mirror it",
	Long: `Start selection mode: the window under the pointer is framed, and the
next click picks it. The picked window is then mirrored into the preview
window until Porthole exits.

Signals:
  SIGUSR1  pick another window (the current one keeps mirroring meanwhile)
  SIGUSR2  leave selection mode
  SIGINT   exit`,
	Example: `  # Pick a window
  porthole run

  # Mirror at 15 FPS without the owner label
  porthole run --fps 15 --no-overlay-label

  # Also serve the control API and MJPEG stream
  porthole run --listen localhost:8080`,
	RunE: runRun,
}

var (
	runListen  string
	runNoLabel bool
)

func init() {
	rootCmd.AddCommand(runCmd)
	addRunFlags(runCmd)
}

// addRunFlags registers the flags shared by run and capture
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Int("fps", 0, "preview refresh rate (default from config, 30)")
	cmd.Flags().StringVar(&runListen, "listen", "", "serve the HTTP API and MJPEG stream on this address")
	cmd.Flags().BoolVar(&runNoLabel, "no-overlay-label", false, "do not label the hovered window")
}

func runRun(cmd *cobra.Command, args []string) error {
	return runApp(cmd, 0)
}

func runApp(cmd *cobra.Command, target window.Handle) error {
	v.BindPFlag("capture.fps", cmd.Flags().Lookup("fps"))

	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runNoLabel {
		cfg.Overlay.ShowLabel = false
	}
	logRunConfig(cfg)

	a, err := app.New(cfg, app.Options{
		Target: target,
		Listen: runListen,
	})
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	return a.Run(context.Background())
}

func logRunConfig(cfg *config.Config) {
	log := logger.WithComponent("cli")
	ev := log.Info().
		Int("fps", cfg.Capture.FPS).
		Bool("exclude_frame", cfg.Capture.ExcludeFrame).
		Bool("native_resolution", cfg.Capture.NativeResolution)
	if runListen != "" {
		ev = ev.Str("listen", runListen)
	} else if cfg.Server.Enabled {
		ev = ev.Int("port", cfg.Server.Port)
	}
	ev.Msg("Porthole starting")
}
