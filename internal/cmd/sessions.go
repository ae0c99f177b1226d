package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wardentools/warden/pkg/models"
	"github.com/wardentools/warden/tui/components/table"
	"github.com/wardentools/warden/tui/theme"
)

// newSessionsCmd creates the warden sessions command.
func newSessionsCmd() *cobra.Command {
	var adapterFilter string
	var groupFilter string
	var all bool

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List supervised agent sessions",
		Long: `List agent sessions known to warden, newest first.

Stopped sessions are hidden unless --all is given. Works without a running
daemon by discovering sessions directly.

Examples:
  # All live sessions
  warden sessions

  # Only claude sessions, including stopped ones
  warden sessions --adapter claude --all

  # Sessions launched into the "refactor" group
  warden sessions --group refactor`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := commandContext()
			defer cancel()

			sessions, err := client.Sessions(ctx)
			if err != nil {
				return err
			}

			filtered := make([]models.SessionRecord, 0, len(sessions))
			for _, s := range sessions {
				if adapterFilter != "" && s.Adapter != adapterFilter {
					continue
				}
				if groupFilter != "" && s.Group != groupFilter {
					continue
				}
				if !all && s.Status.IsTerminal() {
					continue
				}
				filtered = append(filtered, s)
			}

			if jsonWanted(cmd) {
				return printJSON(filtered)
			}

			if len(filtered) == 0 {
				fmt.Println("No sessions found.")
				fmt.Println("Run 'warden launch' to start one, or 'warden sessions --all' to include stopped sessions.")
				return nil
			}

			rows := make([][]string, 0, len(filtered))
			for i := range filtered {
				s := &filtered[i]
				rows = append(rows, []string{
					shortSessionID(s.ID),
					s.Adapter,
					theme.StatusBadge(string(s.Status)),
					shortenPath(s.Directory),
					formatAge(s.StartedAt),
					s.Group,
				})
			}

			fmt.Println(table.SimpleTable(
				[]string{"SESSION", "ADAPTER", "STATUS", "DIRECTORY", "AGE", "GROUP"},
				rows,
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&adapterFilter, "adapter", "", "Only sessions of this adapter")
	cmd.Flags().StringVar(&groupFilter, "group", "", "Only sessions in this group")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include stopped sessions")

	return cmd
}

// shortSessionID trims placeholder ids down to a readable width.
func shortSessionID(id string) string {
	if models.IsPlaceholderID(id) && len(id) > 18 {
		return id[:18] + "…"
	}
	if len(id) > 24 {
		return id[:24] + "…"
	}
	return id
}

// formatAge renders the time since t compactly ("45s", "12m", "3h", "2d").
func formatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

// shortenPath replaces the home directory prefix with a tilde (~).
func shortenPath(path string) string {
	if path == "" {
		return "-"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return filepath.Join("~", strings.TrimPrefix(path, home))
	}
	return path
}
