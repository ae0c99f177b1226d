package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wardentools/warden/cli"
	"github.com/wardentools/warden/internal/adapter"
	"github.com/wardentools/warden/internal/daemon/engine"
	"github.com/wardentools/warden/internal/daemon/pidfile"
	"github.com/wardentools/warden/internal/daemon/server"
	"github.com/wardentools/warden/internal/event"
	"github.com/wardentools/warden/internal/fuse"
	"github.com/wardentools/warden/internal/locks"
	"github.com/wardentools/warden/internal/state"
	"github.com/wardentools/warden/internal/tracker"
	"github.com/wardentools/warden/logging"
	wdaemon "github.com/wardentools/warden/pkg/daemon"
	"github.com/wardentools/warden/pkg/models"
	"github.com/wardentools/warden/pkg/paths"
	"github.com/wardentools/warden/pkg/profiling"
	"github.com/wardentools/warden/version"
)

// newDaemonCmd returns the warden daemon command with subcommands.
func newDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the warden daemon",
		Long:  "Session supervision daemon for warden. Runs discovery, locking and fuses.",
	}

	cmd.AddCommand(newDaemonRunCmd())
	cmd.AddCommand(newDaemonStatusCmd())
	cmd.AddCommand(newDaemonStopCmd())
	cmd.AddCommand(newDaemonLogsCmd())

	return cmd
}

func newDaemonRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		Long: `Run the warden daemon in foreground mode.

The daemon discovers agent sessions, maintains directory locks, arms idle
fuses and serves the client API on a unix socket. Send SIGTERM or press
ctrl-c for a graceful stop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLogger("wardend")

			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("failed to prepare state directories: %w", err)
			}

			// One daemon per user per host.
			pidPath := paths.PidFilePath()
			if err := pidfile.Acquire(pidPath); err != nil {
				return err
			}
			defer func() {
				if err := pidfile.Release(pidPath); err != nil {
					logger.Errorf("Failed to release pidfile: %v", err)
				}
			}()

			startup := profiling.Start("daemon: startup")

			st, err := state.Load(paths.StateDir())
			if err != nil {
				startup.Stop()
				return fmt.Errorf("failed to load state: %w", err)
			}

			reg, err := adapter.FromConfig(cfg)
			if err != nil {
				startup.Stop()
				return err
			}

			bus := event.NewBus()
			lm := locks.New(st, bus)
			fe := fuse.New(st, bus, cfg.Fuses.DefaultTTLOrDefault())
			tr := tracker.New(st, reg, bus, cfg.Daemon.AdapterTimeoutOrDefault())

			eng := engine.New(cfg, st, reg, tr, lm, fe, bus)
			eng.RegisterDefaults()

			// Overdue fuses fire before anything else happens; surviving
			// ones get their timers back.
			fired, armed := fe.Resume()
			if fired > 0 || armed > 0 {
				logger.WithFields(logrus.Fields{"fired": fired, "armed": armed}).Info("Resumed persisted fuses")
			}

			srv := server.New(eng, version.Get().Short())
			startup.Stop()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

			go func() {
				<-stop
				logger.Info("Received stop signal")
				cancel()

				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()

				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Errorf("Server shutdown error: %v", err)
				}
			}()

			engineDone := make(chan struct{})
			go func() {
				eng.Start(ctx)
				close(engineDone)
			}()

			if cfg.Daemon.WatchEnabled() {
				debounceMs := 0
				if cfg.Daemon != nil {
					debounceMs = cfg.Daemon.ConfigDebounceMs
				}
				watcher, err := wdaemon.NewConfigWatcher(debounceMs, func(file string) {
					bus.Publish(models.NewEvent(models.EventConfigReloaded).WithData("file", file))
					eng.RequestReconcile()
				})
				if err != nil {
					logger.WithError(err).Warn("Config watcher unavailable, continuing without live reload")
				} else {
					go watcher.Start(ctx)
					defer watcher.Close()
				}
			}

			logger.WithField("pid", os.Getpid()).Info("Starting daemon")
			if err := srv.ListenAndServe(paths.SocketPath()); err != nil {
				cancel()
				<-engineDone
				fe.Stop()
				_ = st.Close()
				return fmt.Errorf("server error: %w", err)
			}

			// Server closed after a stop signal. Drain the engine, halt fuse
			// timers and write the final state snapshot.
			<-engineDone
			fe.Stop()
			if err := st.Close(); err != nil {
				logger.WithError(err).Error("Failed to persist final state")
			}
			logger.Info("Daemon stopped")
			return nil
		},
	}
}

func newDaemonStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			pidPath := paths.PidFilePath()
			running, pid, err := pidfile.IsRunning(pidPath)
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}

			if !running {
				if jsonWanted(cmd) {
					return printJSON(map[string]interface{}{"running": false})
				}
				fmt.Println("Stopped")
				os.Exit(1) // Non-zero for stopped state (useful for scripts)
			}

			// The pidfile says running; ask the daemon itself for details.
			client, err := requireDaemon()
			if err != nil {
				if jsonWanted(cmd) {
					return printJSON(map[string]interface{}{"running": true, "pid": pid, "responding": false})
				}
				fmt.Printf("Running (PID: %d) but not responding on %s\n", pid, paths.SocketPath())
				return nil
			}
			defer client.Close()

			ctx, cancelCtx := commandContext()
			defer cancelCtx()

			health, err := client.Health(ctx)
			if err != nil {
				return err
			}

			if jsonWanted(cmd) {
				return printJSON(health)
			}

			fmt.Printf("Running (PID: %d)\n", health.PID)
			fmt.Printf("Version: %s\n", health.Version)
			fmt.Printf("Uptime:  %s\n", health.Uptime)
			fmt.Printf("Socket:  %s\n", paths.SocketPath())
			return nil
		},
	}
}

func newDaemonStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			pidPath := paths.PidFilePath()

			running, pid, err := pidfile.IsRunning(pidPath)
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}

			if !running {
				fmt.Println("Daemon is not running")
				return nil
			}

			process, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("failed to find process %d: %w", pid, err)
			}

			if err := process.Signal(syscall.SIGTERM); err != nil {
				return fmt.Errorf("failed to send stop signal: %w", err)
			}

			fmt.Printf("Sent SIGTERM to process %d\n", pid)
			return nil
		},
	}
}
