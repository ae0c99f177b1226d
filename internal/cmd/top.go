package cmd

import (
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/wardentools/warden/logging"
	"github.com/wardentools/warden/tui"
	"github.com/wardentools/warden/tui/top"
)

// newTopCmd creates the warden top command.
func newTopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "top",
		Short: "Live view of sessions, locks and fuses",
		Long: `Open a live table of supervised sessions with lock and fuse context.

Against a running daemon the view updates in real time from the event
stream; without one it polls direct discovery every few seconds.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient(cmd)
			if err != nil {
				return err
			}

			tui.Init()

			// Stray log lines would corrupt the alt screen.
			logging.SetGlobalOutput(io.Discard)
			defer logging.SetGlobalOutput(os.Stderr)

			p := tea.NewProgram(top.New(client), tea.WithAltScreen())
			if _, err := p.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
				return err
			}
			return nil
		},
	}
}
