package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"reward-settler/core/ledger"
	"reward-settler/feature/reward/models"
	"reward-settler/feature/reward/store"

	"go.uber.org/zap"
)

// Summary aggregates the outcomes of one reconciliation pass.
type Summary struct {
	// Scanned is the number of non-terminal records examined.
	Scanned int `json:"scanned"`
	// Completed counts submitted records confirmed by reference.
	Completed int `json:"completed"`
	// Recovered counts pending records adopted via the identity lookback —
	// transfers that landed on the ledger without the store ever learning.
	Recovered int `json:"recovered"`
	// Failed counts submitted records abandoned after the grace period.
	Failed int `json:"failed"`
	// Anomalous counts records parked for operator review.
	Anomalous int `json:"anomalous"`
	// Conflicts counts guarded updates lost to a concurrent actor.
	Conflicts int `json:"conflicts"`
	// AwaitingLedger counts records left untouched (unconfirmed, within
	// grace, or no lookback match yet).
	AwaitingLedger int `json:"awaiting_ledger"`
	// Transient counts records skipped because the ledger was unreachable.
	Transient int `json:"transient"`
}

// Engine cross-references non-terminal reward records against the ledger and
// repairs divergence between the two systems of record. It needs no ledger
// write access; every local transition is a guarded conditional update, so
// concurrent passes and the settlement worker cannot double-apply.
type Engine struct {
	store  *store.Store
	ledger ledger.Client
	cfg    Config
	logger *zap.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewEngine creates a reconciliation engine.
func NewEngine(st *store.Store, lc ledger.Client, cfg Config, logger *zap.Logger) *Engine {
	return &Engine{
		store:  st,
		ledger: lc,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Run scans all non-terminal records in bounded, keyset-paginated batches and
// produces a settlement decision per record. Running it twice over unchanged
// ledger state makes no additional transitions: every decision re-derives
// from ledger evidence and terminal records are excluded from the scan.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	sum := &Summary{}
	cursor := ""

	for {
		page, err := e.store.Find(ctx, store.Filter{
			Statuses: []models.Status{models.StatusPending, models.StatusSubmitted},
			Cursor:   cursor,
			Limit:    e.cfg.batchSize(),
		})
		if err != nil {
			return sum, fmt.Errorf("reconcile scan failed: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for i := range page {
			if err := ctx.Err(); err != nil {
				// Abandoning mid-scan is safe: nothing is half-applied, and
				// re-running the scan resumes the remaining records.
				return sum, err
			}

			rec := &page[i]
			sum.Scanned++

			switch rec.Status {
			case models.StatusSubmitted:
				e.reconcileSubmitted(ctx, rec, sum)
			case models.StatusPending:
				e.reconcilePending(ctx, rec, sum)
			}
		}

		cursor = page[len(page)-1].ID
		if len(page) < e.cfg.batchSize() {
			break
		}
	}

	e.logger.Info("reconciliation pass finished",
		zap.Int("scanned", sum.Scanned),
		zap.Int("completed", sum.Completed),
		zap.Int("recovered", sum.Recovered),
		zap.Int("failed", sum.Failed),
		zap.Int("anomalous", sum.Anomalous),
		zap.Int("conflicts", sum.Conflicts),
	)
	return sum, nil
}

// reconcileSubmitted resolves a record that holds a ledger reference and
// awaits confirmation.
func (e *Engine) reconcileSubmitted(ctx context.Context, rec *models.RewardRecord, sum *Summary) {
	if rec.TransactionRef == nil {
		// Should be unreachable; park it rather than guess.
		e.applyAnomalous(ctx, rec, nil, "submitted record carries no transaction reference", sum)
		return
	}

	tx, err := e.ledger.GetByReference(ctx, *rec.TransactionRef)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		submittedAt := rec.CreatedAt
		if rec.SubmittedAt != nil {
			submittedAt = *rec.SubmittedAt
		}
		if e.now().Sub(submittedAt) < e.cfg.GracePeriod() {
			// The broadcast may still be propagating.
			sum.AwaitingLedger++
			return
		}
		reason := fmt.Sprintf("transaction %s not found on ledger after grace period", *rec.TransactionRef)
		e.apply(ctx, sum, &sum.Failed, rec.ID, func() (store.UpdateOutcome, error) {
			return e.store.MarkFailed(ctx, rec.ID, models.StatusSubmitted, reason, e.now())
		})
	case err != nil:
		// Ledger unreachable: transient, retried on the next pass.
		e.logger.Warn("ledger query failed, skipping record",
			zap.String("record_id", rec.ID), zap.Error(err))
		sum.Transient++
	case !tx.Confirmed:
		sum.AwaitingLedger++
	case tx.Recipient == rec.RecipientAddress && tx.Amount == rec.Amount:
		e.apply(ctx, sum, &sum.Completed, rec.ID, func() (store.UpdateOutcome, error) {
			return e.store.MarkCompleted(ctx, rec.ID, models.StatusSubmitted, tx.Ref, e.now())
		})
	default:
		// Confirmed but the payload does not match the record. Never accept
		// silently: this is tampering or a race an operator must judge.
		detail := fmt.Sprintf("confirmed transfer does not match record: ledger recipient=%s amount=%d, record recipient=%s amount=%d",
			tx.Recipient, tx.Amount, rec.RecipientAddress, rec.Amount)
		e.applyAnomalous(ctx, rec, rec.TransactionRef, detail, sum)
	}
}

// reconcilePending recovers pending records whose submission succeeded on the
// ledger while the store update never landed (crash after broadcast). The
// lookback searches by business identity — recipient, amount and source
// reference — not by transaction reference, which the store never learned.
func (e *Engine) reconcilePending(ctx context.Context, rec *models.RewardRecord, sum *Summary) {
	txs, err := e.ledger.FindByIdentity(ctx, rec.RecipientAddress, rec.Amount, rec.SourceReference, e.cfg.LookbackWindow())
	if err != nil {
		e.logger.Warn("ledger lookback failed, skipping record",
			zap.String("record_id", rec.ID), zap.Error(err))
		sum.Transient++
		return
	}

	confirmed := txs[:0:0]
	for _, tx := range txs {
		if tx.Confirmed {
			confirmed = append(confirmed, tx)
		}
	}

	switch len(confirmed) {
	case 0:
		// Never reached the ledger; the settlement worker will submit it.
		sum.AwaitingLedger++
	case 1:
		tx := confirmed[0]
		holder, err := e.store.FindByTransactionRef(ctx, tx.Ref)
		if err != nil {
			e.logger.Warn("duplicate check failed, skipping record",
				zap.String("record_id", rec.ID), zap.Error(err))
			sum.Transient++
			return
		}
		if holder != nil && holder.ID != rec.ID {
			detail := fmt.Sprintf("lookback match %s is already attached to record %s", tx.Ref, holder.ID)
			e.applyAnomalous(ctx, rec, nil, detail, sum)
			return
		}
		e.apply(ctx, sum, &sum.Recovered, rec.ID, func() (store.UpdateOutcome, error) {
			return e.store.MarkCompleted(ctx, rec.ID, models.StatusPending, tx.Ref, e.now())
		})
	default:
		// More than one transfer matches the identity: attribution is
		// ambiguous and guessing risks blessing a duplicate payout.
		refs := make([]string, 0, len(confirmed))
		for _, tx := range confirmed {
			refs = append(refs, tx.Ref)
		}
		detail := fmt.Sprintf("multiple ledger transfers match identity: %s", strings.Join(refs, ", "))
		e.applyAnomalous(ctx, rec, nil, detail, sum)
	}
}

func (e *Engine) applyAnomalous(ctx context.Context, rec *models.RewardRecord, ref *string, detail string, sum *Summary) {
	e.apply(ctx, sum, &sum.Anomalous, rec.ID, func() (store.UpdateOutcome, error) {
		return e.store.MarkAnomalous(ctx, rec.ID, rec.Status, ref, detail, e.now())
	})
}

// apply runs a guarded transition and books the outcome. A lost guard is
// logged and skipped, not retried within the same pass.
func (e *Engine) apply(ctx context.Context, sum *Summary, counter *int, recordID string, fn func() (store.UpdateOutcome, error)) {
	outcome, err := fn()
	if err != nil {
		e.logger.Error("transition failed", zap.String("record_id", recordID), zap.Error(err))
		sum.Transient++
		return
	}
	switch outcome {
	case store.UpdateApplied:
		*counter++
	case store.UpdateConflict:
		e.logger.Info("record already advanced by another actor",
			zap.String("record_id", recordID))
		sum.Conflicts++
	case store.UpdateNotFound:
		e.logger.Warn("record vanished during reconciliation",
			zap.String("record_id", recordID))
	}
}
