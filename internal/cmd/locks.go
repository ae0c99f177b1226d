package cmd

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wardentools/warden/pkg/models"
	"github.com/wardentools/warden/tui/components/table"
	"github.com/wardentools/warden/tui/theme"
)

// newLockCmd creates the warden lock command.
func newLockCmd() *cobra.Command {
	var reason string
	var by string

	cmd := &cobra.Command{
		Use:   "lock <directory>",
		Short: "Place a manual lock on a directory",
		Long: `Place a manual lock on a directory.

While a manual lock is held, warden refuses to launch agents into the
directory. Auto-locks from running sessions are unaffected.

Examples:
  # Block agent launches during a deploy
  warden lock ~/src/api --reason "deploying 2.4"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := absDirectory(args[0])
			if err != nil {
				return err
			}

			if by == "" {
				if u, err := user.Current(); err == nil {
					by = u.Username
				}
			}

			client, err := requireDaemon()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := commandContext()
			defer cancel()

			lock, err := client.ManualLock(ctx, models.ManualLockRequest{
				Directory: dir,
				By:        by,
				Reason:    reason,
			})
			if err != nil {
				return err
			}

			if jsonWanted(cmd) {
				return printJSON(lock)
			}

			fmt.Printf("Locked %s\n", shortenPath(lock.Directory))
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Why the directory is locked")
	cmd.Flags().StringVar(&by, "by", "", "Lock owner (default: current user)")

	return cmd
}

// newUnlockCmd creates the warden unlock command.
func newUnlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock <directory>",
		Short: "Release a manual lock",
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

			if err := client.ManualUnlock(ctx, dir); err != nil {
				return err
			}

			if jsonWanted(cmd) {
				return printJSON(map[string]interface{}{"unlocked": true, "directory": dir})
			}

			fmt.Printf("Unlocked %s\n", shortenPath(dir))
			return nil
		},
	}
}

// newLocksCmd creates the warden locks command.
func newLocksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "locks",
		Short: "List directory locks",
		Long: `List all directory locks: auto-locks held by running sessions and
manual locks placed by operators.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := commandContext()
			defer cancel()

			locks, err := client.Locks(ctx)
			if err != nil {
				return err
			}

			if jsonWanted(cmd) {
				return printJSON(locks)
			}

			if len(locks) == 0 {
				fmt.Println("No locks held.")
				return nil
			}

			t := theme.DefaultTheme
			rows := make([][]string, 0, len(locks))
			for _, l := range locks {
				owner := l.SessionID
				if l.Type == models.LockManual {
					owner = l.By
				}
				kind := string(l.Type)
				if l.Type == models.LockManual {
					kind = t.Warning.Render(theme.IconLock + " " + kind)
				}
				rows = append(rows, []string{
					shortenPath(l.Directory),
					kind,
					owner,
					l.Reason,
					formatAge(l.CreatedAt),
				})
			}

			fmt.Println(table.SimpleTable(
				[]string{"DIRECTORY", "TYPE", "OWNER", "REASON", "AGE"},
				rows,
			))
			return nil
		},
	}
}

// absDirectory expands a directory argument to an absolute path. Tilde
// expansion is the shell's job; a bare ~ passed through quoting still works.
func absDirectory(arg string) (string, error) {
	if len(arg) > 0 && arg[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			if arg == "~" {
				arg = home
			} else if len(arg) > 1 && arg[1] == '/' {
				arg = filepath.Join(home, arg[2:])
			}
		}
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", fmt.Errorf("invalid directory %q: %w", arg, err)
	}
	return abs, nil
}
