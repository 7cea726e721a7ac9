package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// reconcileCmd runs one reconciliation pass and exits.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile reward records against the ledger",
	Long: `Cross-references non-terminal reward records with the ledger and repairs
divergence between the two systems of record.

Submitted records are confirmed (or abandoned after the grace period) by
transaction reference. Pending records are matched by business identity
(recipient, amount, source reference) within the lookback window, which
recovers transfers that landed on the ledger while the store update never
did. Ambiguous evidence is parked as anomalous for operator review, never
resolved by guessing.

Examples:
  # One pass with configured batch size
  reward-settler reconcile`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := buildDeps()
		if err != nil {
			return err
		}
		defer d.logger.Sync()

		d.logger.Info("Starting reconciliation")
		sum, err := d.engine.Run(cmd.Context())
		if err != nil {
			return err
		}

		d.logger.Info("Reconciliation report",
			zap.Int("scanned", sum.Scanned),
			zap.Int("completed", sum.Completed),
			zap.Int("recovered", sum.Recovered),
			zap.Int("failed", sum.Failed),
			zap.Int("anomalous", sum.Anomalous),
			zap.Int("conflicts", sum.Conflicts),
			zap.Int("awaiting_ledger", sum.AwaitingLedger),
			zap.Int("transient", sum.Transient),
		)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(reconcileCmd)
}
