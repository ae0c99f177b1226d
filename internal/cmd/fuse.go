package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wardentools/warden/pkg/models"
	"github.com/wardentools/warden/tui/components/table"
)

// newFuseCmd creates the warden fuse command with subcommands.
func newFuseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fuse",
		Short: "Manage cleanup fuses",
		Long: `Fuses are per-directory countdown timers. When one expires, warden runs
the configured actions (shell command, webhook, bus event) with the
directory as context. The daemon arms one automatically when a directory's
agent activity stops; these commands manage them by hand.`,
	}

	cmd.AddCommand(newFuseSetCmd())
	cmd.AddCommand(newFuseExtendCmd())
	cmd.AddCommand(newFuseCancelCmd())
	cmd.AddCommand(newFuseListCmd())

	return cmd
}

func newFuseSetCmd() *cobra.Command {
	var ttl string
	var label string
	var run string
	var webhook string
	var eventName string

	cmd := &cobra.Command{
		Use:   "set <directory>",
		Short: "Arm (or replace) a fuse for a directory",
		Long: `Arm a fuse for a directory. An existing fuse for the same directory is
replaced. Without --ttl the configured default applies.

Examples:
  # Clean a scratch worktree half an hour after work stops
  warden fuse set ~/src/api-wt1 --ttl 30m --run "git worktree remove ."

  # Notify a webhook two hours from now
  warden fuse set ~/src/api --ttl 2h --webhook https://hooks.internal/warden`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := absDirectory(args[0])
			if err != nil {
				return err
			}

			req := models.FuseSetRequest{
				Directory: dir,
				TTL:       ttl,
				Label:     label,
			}
			if run != "" || webhook != "" || eventName != "" {
				req.OnExpire = &models.FuseActions{
					Run:     run,
					Webhook: webhook,
					Event:   eventName,
				}
			}

			client, err := requireDaemon()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := commandContext()
			defer cancel()

			timer, err := client.SetFuse(ctx, req)
			if err != nil {
				return err
			}

			if jsonWanted(cmd) {
				return printJSON(timer)
			}

			fmt.Printf("Fuse armed for %s, fires in %s\n",
				shortenPath(timer.Directory), formatRemaining(timer.Remaining(time.Now())))
			return nil
		},
	}

	cmd.Flags().StringVar(&ttl, "ttl", "", "Time until the fuse fires (e.g. 30m, 2h; default from config)")
	cmd.Flags().StringVar(&label, "label", "", "Label shown in listings")
	cmd.Flags().StringVar(&run, "run", "", "Shell command to run on expiry")
	cmd.Flags().StringVar(&webhook, "webhook", "", "URL to POST on expiry")
	cmd.Flags().StringVar(&eventName, "event", "", "Event name published on the daemon bus on expiry")

	return cmd
}

func newFuseExtendCmd() *cobra.Command {
	var ttl string

	cmd := &cobra.Command{
		Use:   "extend <directory>",
		Short: "Re-arm an existing fuse",
		Long: `Push a fuse's expiry further out. Without --ttl the fuse's previous TTL
is applied again from now.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := absDirectory(args[0])
			if err != nil {
				return err
			}

			client, err := requireDaemon()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := commandContext()
			defer cancel()

			timer, err := client.ExtendFuse(ctx, models.FuseExtendRequest{Directory: dir, TTL: ttl})
			if err != nil {
				return err
			}

			if jsonWanted(cmd) {
				return printJSON(timer)
			}

			fmt.Printf("Fuse extended for %s, fires in %s\n",
				shortenPath(timer.Directory), formatRemaining(timer.Remaining(time.Now())))
			return nil
		},
	}

	cmd.Flags().StringVar(&ttl, "ttl", "", "New TTL (default: the fuse's previous TTL)")

	return cmd
}

func newFuseCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <directory>",
		Short: "Disarm and remove a fuse",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := absDirectory(args[0])
			if err != nil {
				return err
			}

			client, err := requireDaemon()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := commandContext()
			defer cancel()

			if err := client.CancelFuse(ctx, dir); err != nil {
				return err
			}

			if jsonWanted(cmd) {
				return printJSON(map[string]interface{}{"canceled": true, "directory": dir})
			}

			fmt.Printf("Fuse canceled for %s\n", shortenPath(dir))
			return nil
		},
	}
}

func newFuseListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List armed fuses",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := commandContext()
			defer cancel()

			fuses, err := client.Fuses(ctx)
			if err != nil {
				return err
			}

			if jsonWanted(cmd) {
				return printJSON(fuses)
			}

			if len(fuses) == 0 {
				fmt.Println("No fuses armed.")
				return nil
			}

			now := time.Now()
			rows := make([][]string, 0, len(fuses))
			for i := range fuses {
				f := &fuses[i]
				rows = append(rows, []string{
					shortenPath(f.Directory),
					f.Label,
					formatRemaining(f.Remaining(now)),
					describeActions(f.OnExpire),
				})
			}

			fmt.Println(table.SimpleTable(
				[]string{"DIRECTORY", "LABEL", "FIRES IN", "ACTIONS"},
				rows,
			))
			return nil
		},
	}
}

// formatRemaining renders a time-to-fire, flagging overdue fuses.
func formatRemaining(d time.Duration) string {
	if d <= 0 {
		return "overdue"
	}
	return d.Round(time.Second).String()
}

// describeActions summarizes a fuse's expiry actions for table output.
func describeActions(a *models.FuseActions) string {
	if a == nil {
		return "-"
	}
	var parts []string
	if a.Run != "" {
		parts = append(parts, "run")
	}
	if a.Webhook != "" {
		parts = append(parts, "webhook")
	}
	if a.Event != "" {
		parts = append(parts, "event:"+a.Event)
	}
	if len(parts) == 0 {
		return "-"
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += "," + p
	}
	return out
}
