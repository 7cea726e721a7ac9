package reward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"reward-settler/core/storage"
	"reward-settler/feature/reward/models"
	"reward-settler/feature/reward/store"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// ExportPrefix is where audit snapshots live inside the archive bucket.
const ExportPrefix = "exports/"

// AuditReport is the JSON document written to the archive. It carries the
// full record rows so discrepancy evidence survives outside the database.
type AuditReport struct {
	GeneratedAt time.Time             `json:"generated_at"`
	Statuses    []models.Status       `json:"statuses"`
	Total       int                   `json:"total"`
	Records     []models.RewardRecord `json:"records"`
	CountByKind map[models.Status]int `json:"count_by_status"`
}

// Exporter writes audit snapshots of reward records to the object storage
// archive.
type Exporter struct {
	client storage.Client
	bucket string
	store  *store.Store
	logger *zap.Logger

	now func() time.Time
}

// NewExporter creates an audit exporter.
func NewExporter(client storage.Client, bucket string, st *store.Store, logger *zap.Logger) *Exporter {
	return &Exporter{
		client: client,
		bucket: bucket,
		store:  st,
		logger: logger,
		now:    time.Now,
	}
}

// Export writes a snapshot of all records in the given statuses (defaulting
// to the operator-review set: anomalous and failed) and returns the object
// name of the uploaded report.
func (e *Exporter) Export(ctx context.Context, statuses []models.Status) (string, error) {
	if len(statuses) == 0 {
		statuses = []models.Status{models.StatusAnomalous, models.StatusFailed}
	}

	if err := e.EnsureBucket(ctx); err != nil {
		return "", err
	}

	report := AuditReport{
		GeneratedAt: e.now(),
		Statuses:    statuses,
		CountByKind: make(map[models.Status]int),
	}

	// Page through the full backlog; exports may cover large histories.
	cursor := ""
	for {
		page, err := e.store.Find(ctx, store.Filter{
			Statuses: statuses,
			Cursor:   cursor,
			Limit:    500,
		})
		if err != nil {
			return "", fmt.Errorf("failed to collect audit records: %w", err)
		}
		if len(page) == 0 {
			break
		}
		for _, rec := range page {
			report.Records = append(report.Records, rec)
			report.CountByKind[rec.Status]++
		}
		cursor = page[len(page)-1].ID
		if len(page) < 500 {
			break
		}
	}
	report.Total = len(report.Records)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal audit report: %w", err)
	}

	objectName := fmt.Sprintf("%srewards_%d.json", ExportPrefix, e.now().Unix())
	_, err = e.client.PutObject(ctx, e.bucket, objectName,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", fmt.Errorf("failed to upload audit report: %w", err)
	}

	e.logger.Info("audit report exported",
		zap.String("object", objectName),
		zap.Int("records", report.Total))
	return objectName, nil
}

// EnsureBucket verifies the archive bucket exists, creating it if needed.
func (e *Exporter) EnsureBucket(ctx context.Context) error {
	exists, err := e.client.BucketExists(ctx, e.bucket)
	if err != nil {
		return fmt.Errorf("failed to check archive bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := e.client.MakeBucket(ctx, e.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create archive bucket: %w", err)
	}
	e.logger.Info("created audit archive bucket", zap.String("bucket", e.bucket))
	return nil
}
