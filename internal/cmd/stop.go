package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wardentools/warden/pkg/models"
)

// newStopCmd creates the warden stop command.
func newStopCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "stop <session-id>",
		Short: "Stop an agent session",
		Long: `Stop a supervised agent session.

The daemon terminates the process gracefully (TERM, then KILL after a grace
period), releases the session's auto-lock and arms an idle fuse for its
directory. With --force the process is killed outright.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := requireDaemon()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := commandContext()
			defer cancel()

			rec, err := client.Stop(ctx, models.StopRequest{SessionID: args[0], Force: force})
			if err != nil {
				return err
			}

			if jsonWanted(cmd) {
				return printJSON(rec)
			}

			fmt.Printf("Stopped session %s\n", rec.ID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Kill immediately instead of graceful termination")

	return cmd
}

// newResumeCmd creates the warden resume command.
func newResumeCmd() *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "resume <session-id>",
		Short: "Resume a stopped session",
		Long: `Resume a previously stopped agent session.

The adapter restarts the agent with its original session context. The record
returns to running, the directory auto-lock is re-acquired and any idle fuse
armed for the directory is disarmed.

Examples:
  warden resume 01HT3K... --message "continue with the migration"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := requireDaemon()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := commandContext()
			defer cancel()

			rec, err := client.Resume(ctx, models.ResumeRequest{SessionID: args[0], Message: message})
			if err != nil {
				return err
			}

			if jsonWanted(cmd) {
				return printJSON(rec)
			}

			fmt.Printf("Resumed session %s\n", rec.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "Follow-up message for the agent")

	return cmd
}

// newPeekCmd creates the warden peek command.
func newPeekCmd() *cobra.Command {
	var lines int

	cmd := &cobra.Command{
		Use:   "peek <session-id>",
		Short: "Show the tail of a session's transcript",
		Long: `Print the last lines of a session's transcript without attaching to it.

Works without a running daemon since transcripts live on disk.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := commandContext()
			defer cancel()

			out, err := client.Peek(ctx, args[0], lines)
			if err != nil {
				return err
			}

			if jsonWanted(cmd) {
				return printJSON(models.PeekResponse{SessionID: args[0], Lines: out})
			}

			for _, line := range out {
				fmt.Println(line)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "Number of transcript lines to show")

	return cmd
}

// newResolveCmd creates the warden resolve command.
func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <session-id>",
		Short: "Resolve a placeholder session id now",
		Long: `Ask the daemon to resolve one placeholder session id immediately, ahead
of the periodic resolution sweep. Prints the agent's real id on success.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := requireDaemon()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := commandContext()
			defer cancel()

			res, err := client.Resolve(ctx, args[0])
			if err != nil {
				return err
			}

			if jsonWanted(cmd) {
				return printJSON(res)
			}

			if !res.Resolved {
				fmt.Printf("Session %s is not resolved yet. The agent may not have written its session id.\n", args[0])
				return nil
			}
			fmt.Printf("Resolved %s -> %s\n", res.OldID, res.NewID)
			return nil
		},
	}
}
