package settle

import (
	"context"
	"sync"
	"time"

	"reward-settler/core/ledger"
	"reward-settler/feature/reward/models"
	"reward-settler/feature/reward/reconcile"
	"reward-settler/feature/reward/store"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CycleSummary aggregates the outcomes of one settlement cycle.
type CycleSummary struct {
	// Due is the number of pending records picked up.
	Due int `json:"due"`
	// Submitted counts records advanced to submitted with a ledger reference.
	Submitted int `json:"submitted"`
	// Rejected counts records the ledger explicitly refused (now failed).
	Rejected int `json:"rejected"`
	// Unknown counts submissions whose outcome is unknown; the record stays
	// pending and the reconciliation lookback decides its fate.
	Unknown int `json:"unknown"`
	// Conflicts counts guarded updates lost to a concurrent actor.
	Conflicts int `json:"conflicts"`
	// Reconcile is the summary of the reconciliation pass run after the
	// submission phase.
	Reconcile *reconcile.Summary `json:"reconcile,omitempty"`
}

// Worker advances pending records to submitted (or failed) by broadcasting
// transfers to the ledger, then drives a reconciliation pass. It holds no
// state of its own; the record store is the single source of truth and every
// mutation is a guarded conditional update.
type Worker struct {
	store  *store.Store
	ledger ledger.Client
	engine *reconcile.Engine
	cfg    Config
	logger *zap.Logger

	now func() time.Time
}

// NewWorker creates a settlement worker.
func NewWorker(st *store.Store, lc ledger.Client, engine *reconcile.Engine, cfg Config, logger *zap.Logger) *Worker {
	return &Worker{
		store:  st,
		ledger: lc,
		engine: engine,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// RunCycle submits one batch of due pending records and then reconciles.
func (w *Worker) RunCycle(ctx context.Context) (*CycleSummary, error) {
	sum := &CycleSummary{}

	recs, err := w.store.DueForSubmission(ctx, w.now(), w.cfg.BatchSize)
	if err != nil {
		return sum, err
	}
	sum.Due = len(recs)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	concurrency := w.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	g.SetLimit(concurrency)

	for i := range recs {
		rec := recs[i]
		g.Go(func() error {
			w.submitOne(gctx, &rec, sum, &mu)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return sum, err
	}

	// Reconcile everything still in flight, including records this cycle
	// left pending with an unknown outcome.
	recSum, err := w.engine.Run(ctx)
	if err != nil {
		return sum, err
	}
	sum.Reconcile = recSum

	w.logger.Info("settlement cycle finished",
		zap.Int("due", sum.Due),
		zap.Int("submitted", sum.Submitted),
		zap.Int("rejected", sum.Rejected),
		zap.Int("unknown", sum.Unknown),
		zap.Int("conflicts", sum.Conflicts),
	)
	return sum, nil
}

// Run executes cycles until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Interval())
	defer ticker.Stop()

	for {
		if _, err := w.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("settlement cycle failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *Worker) submitOne(ctx context.Context, rec *models.RewardRecord, sum *CycleSummary, mu *sync.Mutex) {
	ref, err := w.ledger.Submit(ctx, rec.RecipientAddress, rec.Amount, rec.SourceReference)

	switch {
	case err == nil:
		outcome, uerr := w.store.MarkSubmitted(ctx, rec.ID, ref, w.now())
		w.book(sum, mu, outcome, uerr, &sum.Submitted, rec.ID)
	case ledger.IsRejected(err):
		// Definite refusal: the transfer never existed on the ledger.
		outcome, uerr := w.store.MarkFailed(ctx, rec.ID, models.StatusPending, err.Error(), w.now())
		w.book(sum, mu, outcome, uerr, &sum.Rejected, rec.ID)
	default:
		// Unknown outcome (timeout, transport failure). Do NOT assume the
		// transfer failed: it may have been broadcast. The record stays
		// pending — the identity lookback will adopt it if it landed — and
		// the next submission attempt is pushed out by the backoff.
		attempts := rec.Attempts + 1
		next := w.now().Add(w.cfg.Backoff(attempts))
		if _, uerr := w.store.Reschedule(ctx, rec.ID, attempts, next); uerr != nil {
			w.logger.Error("failed to reschedule record",
				zap.String("record_id", rec.ID), zap.Error(uerr))
		}
		w.logger.Warn("submission outcome unknown, record left pending",
			zap.String("record_id", rec.ID),
			zap.Time("next_attempt_at", next),
			zap.Error(err))
		mu.Lock()
		sum.Unknown++
		mu.Unlock()
	}
}

func (w *Worker) book(sum *CycleSummary, mu *sync.Mutex, outcome store.UpdateOutcome, err error, counter *int, recordID string) {
	if err != nil {
		w.logger.Error("transition failed", zap.String("record_id", recordID), zap.Error(err))
		return
	}

	mu.Lock()
	defer mu.Unlock()
	switch outcome {
	case store.UpdateApplied:
		*counter++
	case store.UpdateConflict:
		w.logger.Info("record already advanced by another actor",
			zap.String("record_id", recordID))
		sum.Conflicts++
	case store.UpdateNotFound:
		w.logger.Warn("record vanished during settlement",
			zap.String("record_id", recordID))
	}
}
