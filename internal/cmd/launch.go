package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wardentools/warden/pkg/models"
)

// newLaunchCmd creates the warden launch command.
func newLaunchCmd() *cobra.Command {
	var req models.LaunchRequest

	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Launch an agent session",
		Long: `Launch a new agent session through the daemon.

The daemon spawns the agent, records the session under a placeholder id and
acquires an auto-lock on the working directory. The placeholder resolves to
the agent's own session id once discovery sees it. Launching into a manually
locked directory is refused.

Examples:
  # Launch claude in the current directory
  warden launch --adapter claude --prompt "fix the failing tests"

  # Launch into a specific directory and group, inside tmux
  warden launch --adapter codex --dir ~/src/api --group nightly --tmux`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Directory == "" {
				cwd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("failed to get current directory: %w", err)
				}
				req.Directory = cwd
			}

			client, err := requireDaemon()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := commandContext()
			defer cancel()

			rec, err := client.Launch(ctx, req)
			if err != nil {
				return err
			}

			if jsonWanted(cmd) {
				return printJSON(rec)
			}

			fmt.Printf("Launched %s session %s\n", rec.Adapter, rec.ID)
			fmt.Printf("  Directory: %s\n", shortenPath(rec.Directory))
			if rec.PID > 0 {
				fmt.Printf("  PID:       %d\n", rec.PID)
			}
			if rec.TmuxTarget != "" {
				fmt.Printf("  Tmux:      %s\n", rec.TmuxTarget)
			}
			if rec.IsPlaceholder() {
				fmt.Println("The id is provisional until the agent reports its own session id.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Adapter, "adapter", "", "Adapter to launch with (required)")
	cmd.Flags().StringVar(&req.Directory, "dir", "", "Working directory (default: current directory)")
	cmd.Flags().StringVar(&req.Prompt, "prompt", "", "Initial prompt for the agent")
	cmd.Flags().StringVar(&req.Model, "model", "", "Model override")
	cmd.Flags().StringVar(&req.Spec, "spec", "", "Spec file or task reference passed to the agent")
	cmd.Flags().StringVar(&req.Group, "group", "", "Session group tag")
	cmd.Flags().StringArrayVar(&req.Args, "arg", nil, "Extra argument passed to the agent (repeatable)")
	cmd.Flags().BoolVar(&req.Tmux, "tmux", false, "Launch inside a tmux session")
	_ = cmd.MarkFlagRequired("adapter")

	return cmd
}
