package reward

import (
	"context"

	"reward-settler/feature/reward/models"
	"reward-settler/feature/reward/reconcile"
	"reward-settler/feature/reward/repair"
	"reward-settler/feature/reward/settle"
	"reward-settler/feature/reward/store"

	"go.uber.org/zap"
)

// Service bundles the settlement components behind one operator-facing
// surface. Each component remains independently usable; the service only
// provides the wiring the HTTP handler and CLI commands share.
type Service struct {
	store    *store.Store
	engine   *reconcile.Engine
	worker   *settle.Worker
	repairer *repair.Repairer
	exporter *Exporter
	logger   *zap.Logger
}

// NewService creates a reward service.
func NewService(st *store.Store, engine *reconcile.Engine, worker *settle.Worker, repairer *repair.Repairer, exporter *Exporter, logger *zap.Logger) *Service {
	return &Service{
		store:    st,
		engine:   engine,
		worker:   worker,
		repairer: repairer,
		exporter: exporter,
		logger:   logger,
	}
}

// CreateReward records a new reward intent in state pending. Validation
// failures are returned before anything enters the state machine.
func (s *Service) CreateReward(ctx context.Context, rec *models.RewardRecord) error {
	return s.store.Create(ctx, rec)
}

// ListRewards returns records matching the filter. Anomalous and failed
// records are queryable here; they are the input to manual repair.
func (s *Service) ListRewards(ctx context.Context, f store.Filter) ([]models.RewardRecord, error) {
	return s.store.Find(ctx, f)
}

// GetReward fetches one record by ID.
func (s *Service) GetReward(ctx context.Context, id string) (*models.RewardRecord, error) {
	return s.store.Get(ctx, id)
}

// RunReconcile executes one reconciliation pass.
func (s *Service) RunReconcile(ctx context.Context) (*reconcile.Summary, error) {
	return s.engine.Run(ctx)
}

// RunSettlement executes one settlement cycle (submission + reconciliation).
func (s *Service) RunSettlement(ctx context.Context) (*settle.CycleSummary, error) {
	return s.worker.RunCycle(ctx)
}

// Repair attaches an operator-supplied ledger reference to a record.
func (s *Service) Repair(ctx context.Context, recordID, ref string) (*repair.Result, error) {
	return s.repairer.Attach(ctx, recordID, ref)
}

// RepairLatestPending attaches a reference to the recipient's most recent
// pending record.
func (s *Service) RepairLatestPending(ctx context.Context, recipient, ref string) (*repair.Result, error) {
	return s.repairer.AttachLatestPending(ctx, recipient, ref)
}

// Reopen returns a failed record to pending for resubmission.
func (s *Service) Reopen(ctx context.Context, recordID string) (*repair.Result, error) {
	return s.repairer.Reopen(ctx, recordID)
}

// ExportAudit writes an audit snapshot to the archive and returns the
// object name.
func (s *Service) ExportAudit(ctx context.Context, statuses []models.Status) (string, error) {
	return s.exporter.Export(ctx, statuses)
}
