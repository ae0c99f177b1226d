package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wardentools/warden/tui/components/table"
)

// newMetricsCmd creates the warden metrics command.
func newMetricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Show daemon counters",
		Long: `Show the daemon's counters: sessions by state, locks by type, armed
fuses, reconcile rounds and per-adapter discovery errors.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := commandContext()
			defer cancel()

			m, err := client.Metrics(ctx)
			if err != nil {
				return err
			}

			if jsonWanted(cmd) {
				return printJSON(m)
			}

			items := [][]string{
				{"Sessions", fmt.Sprintf("%d total, %d running, %d pending, %d stopped",
					m.SessionsTotal, m.SessionsRunning, m.SessionsPending, m.SessionsStopped)},
				{"Locks", fmt.Sprintf("%d manual, %d auto", m.LocksManual, m.LocksAuto)},
				{"Fuses", fmt.Sprintf("%d armed", m.FusesActive)},
				{"Reconciles", fmt.Sprintf("%d", m.ReconcileRounds)},
			}
			for adapter, count := range m.AdapterErrors {
				items = append(items, []string{"Errors: " + adapter, fmt.Sprintf("%d", count)})
			}

			fmt.Println(table.StatusTable(items))
			return nil
		},
	}
}
