package cmd

import (
	"fmt"

	"reward-settler/feature/reward/repair"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	repairRecordID  string
	repairRecipient string
	repairRef       string
	repairReopen    bool
)

// repairCmd attaches an operator-known transaction reference to a record, or
// reopens a failed record for resubmission.
var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Manually repair a reward record",
	Long: `Applies an operator-directed fix to a single reward record.

With --ref, attaches a transaction reference the operator found out-of-band
(ledger explorer, gateway logs) and completes the record. The record is
addressed either directly by --record-id or as the most recent pending
record for --recipient. A reference already held by another record is
refused.

With --reopen, a failed record is returned to pending so the settlement
worker submits it again.

Examples:
  # Attach a known ledger reference to a specific record
  reward-settler repair --record-id 6f1c... --ref tx_8a2b...

  # Attach to the recipient's most recent pending record
  reward-settler repair --recipient addr1q9... --ref tx_8a2b...

  # Resubmit a failed record
  reward-settler repair --record-id 6f1c... --reopen`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if repairReopen && repairRef != "" {
			return fmt.Errorf("--reopen and --ref are mutually exclusive")
		}
		if !repairReopen && repairRef == "" {
			return fmt.Errorf("either --ref or --reopen is required")
		}
		if repairReopen && repairRecordID == "" {
			return fmt.Errorf("--reopen requires --record-id")
		}
		if repairRecordID == "" && repairRecipient == "" {
			return fmt.Errorf("either --record-id or --recipient is required")
		}
		if repairRecordID != "" && repairRecipient != "" {
			return fmt.Errorf("--record-id and --recipient are mutually exclusive")
		}

		d, err := buildDeps()
		if err != nil {
			return err
		}
		defer d.logger.Sync()

		var res *repair.Result
		switch {
		case repairReopen:
			res, err = d.repairer.Reopen(cmd.Context(), repairRecordID)
		case repairRecordID != "":
			res, err = d.repairer.Attach(cmd.Context(), repairRecordID, repairRef)
		default:
			res, err = d.repairer.AttachLatestPending(cmd.Context(), repairRecipient, repairRef)
		}
		if err != nil {
			return err
		}

		d.logger.Info("Repair finished",
			zap.String("outcome", string(res.Outcome)),
			zap.String("record_id", res.RecordID),
		)
		if res.Outcome != repair.OutcomeFixed {
			// Non-fixed outcomes are still clean exits; the operator reads the
			// outcome and decides what to do next.
			fmt.Println(string(res.Outcome))
		}
		return nil
	},
}

func init() {
	repairCmd.Flags().StringVar(&repairRecordID, "record-id", "", "reward record ID to repair")
	repairCmd.Flags().StringVar(&repairRecipient, "recipient", "", "repair the recipient's most recent pending record")
	repairCmd.Flags().StringVar(&repairRef, "ref", "", "ledger transaction reference to attach")
	repairCmd.Flags().BoolVar(&repairReopen, "reopen", false, "return a failed record to pending")
	RootCmd.AddCommand(repairCmd)
}
