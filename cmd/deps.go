package cmd

import (
	"fmt"

	"reward-settler/core/config"
	"reward-settler/core/database"
	"reward-settler/core/ledger"
	"reward-settler/core/logger"
	"reward-settler/feature/reward"
	"reward-settler/feature/reward/reconcile"
	"reward-settler/feature/reward/repair"
	"reward-settler/feature/reward/settle"
	"reward-settler/feature/reward/store"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// deps is the component chain shared by every command: config, logger, the
// record store, the ledger client and the settlement components built on top.
type deps struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *gorm.DB
	store    *store.Store
	ledger   ledger.Client
	engine   *reconcile.Engine
	worker   *settle.Worker
	repairer *repair.Repairer
}

// buildDeps loads configuration and wires the settlement components.
// The database connection is mandatory here; commands that can run without
// one assemble their pieces by hand.
func buildDeps() (*deps, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate reward records: %w", err)
	}

	lc := ledger.NewClient(cfg.Ledger)
	engine := reconcile.NewEngine(st, lc, cfg.Reconcile, l)
	worker := settle.NewWorker(st, lc, engine, cfg.Settle, l)
	repairer := repair.New(st, l)

	return &deps{
		cfg:      cfg,
		logger:   l,
		db:       db,
		store:    st,
		ledger:   lc,
		engine:   engine,
		worker:   worker,
		repairer: repairer,
	}, nil
}

// buildService assembles the full operator service, including the audit
// exporter, on top of the shared deps.
func (d *deps) buildService(exporter *reward.Exporter) *reward.Service {
	return reward.NewService(d.store, d.engine, d.worker, d.repairer, exporter, d.logger)
}
