package cmd

import (
	"fmt"
	"strings"

	"reward-settler/core/storage"
	"reward-settler/feature/reward"
	"reward-settler/feature/reward/models"

	"github.com/minio/minio-go/v7"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	exportStatuses []string
	exportList     bool
)

// exportCmd writes an audit snapshot of reward records to the archive bucket.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export an audit snapshot to the archive",
	Long: `Collects reward records by status and uploads a JSON report to the audit
archive bucket. With no --status flags it exports the operator-review set
(anomalous and failed).

Examples:
  reward-settler export
  reward-settler export --status anomalous --status completed
  reward-settler export --list`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := buildDeps()
		if err != nil {
			return err
		}
		defer d.logger.Sync()

		client, err := storage.NewClient(d.cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to initialize audit storage: %w", err)
		}

		if exportList {
			return listExports(cmd, client, d.cfg.Storage.Bucket)
		}

		var statuses []models.Status
		for _, raw := range exportStatuses {
			s := models.Status(strings.ToLower(strings.TrimSpace(raw)))
			if !s.Valid() {
				return fmt.Errorf("unknown status %q", raw)
			}
			statuses = append(statuses, s)
		}

		exporter := reward.NewExporter(client, d.cfg.Storage.Bucket, d.store, d.logger)
		object, err := exporter.Export(cmd.Context(), statuses)
		if err != nil {
			return err
		}
		d.logger.Info("Export complete", zap.String("object", object))
		return nil
	},
}

// listExports prints the audit snapshots already in the archive.
func listExports(cmd *cobra.Command, client storage.Client, bucket string) error {
	objects := client.ListObjects(cmd.Context(), bucket, minio.ListObjectsOptions{
		Prefix:    reward.ExportPrefix,
		Recursive: true,
	})

	count := 0
	for obj := range objects {
		if obj.Err != nil {
			return fmt.Errorf("failed to list exports: %w", obj.Err)
		}
		fmt.Printf("%s\t%d bytes\t%s\n", obj.Key, obj.Size, obj.LastModified.Format("2006-01-02 15:04:05"))
		count++
	}
	if count == 0 {
		fmt.Println("no exports found")
	}
	return nil
}

func init() {
	exportCmd.Flags().StringArrayVar(&exportStatuses, "status", nil, "status to include (repeatable)")
	exportCmd.Flags().BoolVar(&exportList, "list", false, "list existing exports instead of writing one")
	RootCmd.AddCommand(exportCmd)
}
