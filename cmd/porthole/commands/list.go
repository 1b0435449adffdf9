package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/porthole/porthole/internal/window"
	"github.com/porthole/porthole/internal/x11"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List pickable windows",
	Long: `List the on-screen windows Porthole can mirror, front to back.

This command connects to the X11 server and prints each window's ID,
owner, geometry and title.`,
	Example: `  # List windows in table format (default)
  porthole list

  # List windows in JSON format
  porthole list --format json`,
	RunE: runList,
}

var listFormat string

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "output format (table or json)")
}

func runList(cmd *cobra.Command, args []string) error {
	if _, _, err := loadConfig(); err != nil {
		return err
	}

	conn, err := x11.NewConnection()
	if err != nil {
		return fmt.Errorf("failed to connect to X11: %w", err)
	}
	defer conn.Close()

	windows := window.NewDirectory(window.NewX11Service(conn)).ListVisibleWindows()
	return printWindows(os.Stdout, windows, listFormat)
}

func printWindows(out io.Writer, windows []window.Info, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(windows)
	case "table":
		return printWindowsTable(out, windows)
	default:
		return fmt.Errorf("unsupported format: %s (use 'table' or 'json')", format)
	}
}

func printWindowsTable(out io.Writer, windows []window.Info) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "ID\tOWNER\tGEOMETRY\tTITLE")
	fmt.Fprintln(w, "--\t-----\t--------\t-----")

	for _, win := range windows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", win.Handle, win.Owner, win.Bounds, win.Title)
	}
	return nil
}
