// Package cmd assembles the warden command tree. Subcommands talk to the
// daemon through pkg/daemon's client, falling back to in-process reads when
// wardend is not running.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wardentools/warden/cli"
	"github.com/wardentools/warden/config"
	"github.com/wardentools/warden/pkg/daemon"
	"github.com/wardentools/warden/pkg/profiling"
	"github.com/wardentools/warden/version"
)

// NewRootCmd builds the warden root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	rootCmd := cli.NewRootCommand(
		"warden",
		"Supervisor for AI coding-agent sessions",
	)
	rootCmd.Long = `Warden supervises locally-running AI coding-agent CLI processes: it tracks
which sessions exist and are alive, prevents two agents from working in the
same directory at once, and schedules cleanup actions after a directory's
agent activity goes idle.

Most commands talk to the warden daemon (wardend). Read commands fall back
to direct discovery when the daemon is not running.`

	info := version.Get()
	rootCmd.Version = info.Version
	cli.SetVersionTemplate(rootCmd, info)

	profiler := profiling.NewCobraProfiler()
	profiler.AddFlags(rootCmd)
	rootCmd.PersistentPreRunE = profiler.PreRun
	rootCmd.PersistentPostRun = profiler.PostRun

	rootCmd.AddCommand(newDaemonCmd())
	rootCmd.AddCommand(newSessionsCmd())
	rootCmd.AddCommand(newLaunchCmd())
	rootCmd.AddCommand(newStopCmd())
	rootCmd.AddCommand(newResumeCmd())
	rootCmd.AddCommand(newPeekCmd())
	rootCmd.AddCommand(newResolveCmd())
	rootCmd.AddCommand(newLockCmd())
	rootCmd.AddCommand(newUnlockCmd())
	rootCmd.AddCommand(newLocksCmd())
	rootCmd.AddCommand(newFuseCmd())
	rootCmd.AddCommand(newMetricsCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newTopCmd())
	rootCmd.AddCommand(newDocsCmd())
	rootCmd.AddCommand(cli.NewVersionCommand("warden", info))

	cli.StyleHelpTree(rootCmd)

	return rootCmd
}

// newClient builds a daemon client honoring the --config flag. The caller
// owns the returned client and must Close it.
func newClient(cmd *cobra.Command) (daemon.Client, *config.Config, error) {
	defer profiling.Start("client: build").Stop()

	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	client, err := daemon.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	if _, local := client.(*daemon.LocalClient); local {
		cli.GetLogger(cmd).Debug("Daemon not reachable, reading state directly")
	}
	return client, cfg, nil
}

// requireDaemon builds a client that refuses to fall back to local reads.
func requireDaemon() (daemon.Client, error) {
	return daemon.Connect()
}

// commandContext returns a bounded context for one client call.
func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// jsonWanted reports whether the persistent --json flag is set.
func jsonWanted(cmd *cobra.Command) bool {
	return cli.GetOptions(cmd).JSONOutput
}
