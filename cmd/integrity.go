package cmd

import (
	"errors"
	"fmt"

	"reward-settler/core/database"
	"reward-settler/core/ledger"
	"reward-settler/core/storage"
	"reward-settler/feature/reward/models"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// integrityCmd verifies that the pieces the settlement loop depends on are in
// working order: schema, ledger gateway, audit archive.
var integrityCmd = &cobra.Command{
	Use:   "integrity",
	Short: "Verify schema and dependency health",
	Long: `Checks the reward record schema against the model, probes the ledger
gateway, and verifies the audit archive bucket. Exits non-zero if any
check fails, so it can gate deployments.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := buildDeps()
		if err != nil {
			return err
		}
		logg := d.logger
		defer logg.Sync()

		failed := false

		// 1. Schema: every model column must exist on the live table.
		missing, err := database.VerifyColumns(d.db, models.RewardRecord{}.TableName(), models.ExpectedColumns())
		if err != nil {
			logg.Error("Schema check failed", zap.Error(err))
			failed = true
		} else if len(missing) > 0 {
			logg.Error("Schema is missing columns", zap.Strings("columns", missing))
			failed = true
		} else {
			logg.Info("Schema check passed",
				zap.String("table", models.RewardRecord{}.TableName()))
		}

		// 2. Ledger gateway: a lookup for a reference that cannot exist should
		// come back not-found, which proves the gateway is answering.
		_, err = d.ledger.GetByReference(cmd.Context(), "integrity-probe")
		switch {
		case err == nil, errors.Is(err, ledger.ErrNotFound):
			logg.Info("Ledger gateway reachable",
				zap.String("endpoint", d.cfg.Ledger.Endpoint))
		default:
			logg.Error("Ledger gateway check failed", zap.Error(err))
			failed = true
		}

		// 3. Audit archive bucket.
		client, err := storage.NewClient(d.cfg.Storage)
		if err != nil {
			logg.Error("Audit storage unreachable", zap.Error(err))
			failed = true
		} else {
			exists, err := client.BucketExists(cmd.Context(), d.cfg.Storage.Bucket)
			switch {
			case err != nil:
				logg.Error("Audit bucket check failed", zap.Error(err))
				failed = true
			case !exists:
				logg.Warn("Audit bucket does not exist yet; it is created on first export",
					zap.String("bucket", d.cfg.Storage.Bucket))
			default:
				logg.Info("Audit bucket check passed",
					zap.String("bucket", d.cfg.Storage.Bucket))
			}
		}

		if failed {
			return fmt.Errorf("integrity checks failed")
		}
		logg.Info("All integrity checks passed")
		return nil
	},
}

func init() {
	RootCmd.AddCommand(integrityCmd)
}
