package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// settleCmd runs one settlement cycle and exits.
var settleCmd = &cobra.Command{
	Use:   "settle",
	Short: "Run one settlement cycle",
	Long: `Submits due pending reward records to the ledger and then runs a
reconciliation pass over everything still in flight.

A submission with an unknown outcome (timeout, unreachable gateway) leaves
the record pending; the reconciliation lookback adopts the transfer if it
actually landed. Resubmission is pushed out by an exponential backoff.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := buildDeps()
		if err != nil {
			return err
		}
		defer d.logger.Sync()

		d.logger.Info("Running settlement cycle")
		sum, err := d.worker.RunCycle(cmd.Context())
		if err != nil {
			return err
		}

		d.logger.Info("Settlement cycle complete",
			zap.Int("due", sum.Due),
			zap.Int("submitted", sum.Submitted),
			zap.Int("rejected", sum.Rejected),
			zap.Int("unknown", sum.Unknown),
			zap.Int("conflicts", sum.Conflicts),
		)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(settleCmd)
}
