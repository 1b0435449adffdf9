package commands

import (
	"fmt"
	"strconv"

	"github.com/porthole/porthole/internal/window"
	"github.com/spf13/cobra"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Mirror a window by ID without picking",
	Long: `Mirror the given window straight away, skipping selection mode.
Window IDs are shown by 'porthole list' and accept decimal or 0x-prefixed hex.`,
	Example: `  porthole capture --window 0x3a00007`,
	RunE:    runCapture,
}

var captureWindow string

func init() {
	rootCmd.AddCommand(captureCmd)
	addRunFlags(captureCmd)
	captureCmd.Flags().StringVarP(&captureWindow, "window", "w", "", "window ID to mirror")
	captureCmd.MarkFlagRequired("window")
}

func runCapture(cmd *cobra.Command, args []string) error {
	h, err := parseHandle(captureWindow)
	if err != nil {
		return err
	}
	return runApp(cmd, h)
}

// parseHandle accepts decimal and 0x-prefixed hexadecimal window IDs
func parseHandle(s string) (window.Handle, error) {
	id, err := strconv.ParseUint(s, 0, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid window ID: %q", s)
	}
	return window.Handle(id), nil
}
