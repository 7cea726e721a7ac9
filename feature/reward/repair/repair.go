package repair

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reward-settler/feature/reward/models"
	"reward-settler/feature/reward/store"

	"go.uber.org/zap"
)

// Outcome is the result of a manual repair operation.
type Outcome string

const (
	// OutcomeFixed means the record was transitioned as requested.
	OutcomeFixed Outcome = "fixed"
	// OutcomeAlreadyTerminal means the record had already settled.
	OutcomeAlreadyTerminal Outcome = "already_terminal"
	// OutcomeDuplicateReference means the supplied reference is attached to
	// another record; attaching it again would forge a duplicate mapping.
	OutcomeDuplicateReference Outcome = "duplicate_reference"
	// OutcomeNotFound means no matching record exists.
	OutcomeNotFound Outcome = "not_found"
	// OutcomeNotEligible means the record is not in a state the operation
	// applies to (e.g. reopening a record that is not failed).
	OutcomeNotEligible Outcome = "not_eligible"
)

// Result reports the outcome of a repair and the record it addressed.
type Result struct {
	Outcome  Outcome `json:"outcome"`
	RecordID string  `json:"record_id,omitempty"`
}

// Repairer performs targeted, operator-invoked settlement repairs. It reuses
// the same guarded transitions as the automatic actors, so a repair racing
// the settlement worker resolves cleanly: exactly one of them wins.
type Repairer struct {
	store  *store.Store
	logger *zap.Logger

	now func() time.Time
}

// New creates a repairer over the record store.
func New(st *store.Store, logger *zap.Logger) *Repairer {
	return &Repairer{store: st, logger: logger, now: time.Now}
}

// Attach force-completes a record with an operator-supplied ledger reference,
// bypassing the lookback query. Used when the operator holds out-of-band
// proof of settlement. The duplicate-reference invariant still applies: a
// reference owned by another record is refused, never remapped.
func (r *Repairer) Attach(ctx context.Context, recordID, ref string) (*Result, error) {
	if ref == "" {
		return nil, fmt.Errorf("transaction reference must not be empty")
	}

	// A lost guard means another actor advanced the record between our read
	// and our write; re-read once and re-evaluate rather than error out.
	for attempt := 0; attempt < 2; attempt++ {
		rec, err := r.store.Get(ctx, recordID)
		if errors.Is(err, store.ErrNotFound) {
			return &Result{Outcome: OutcomeNotFound}, nil
		}
		if err != nil {
			return nil, err
		}

		if rec.Status.Terminal() {
			return &Result{Outcome: OutcomeAlreadyTerminal, RecordID: rec.ID}, nil
		}

		holder, err := r.store.FindByTransactionRef(ctx, ref)
		if err != nil {
			return nil, err
		}
		if holder != nil && holder.ID != rec.ID {
			return &Result{Outcome: OutcomeDuplicateReference, RecordID: rec.ID}, nil
		}

		outcome, err := r.store.MarkCompleted(ctx, rec.ID, rec.Status, ref, r.now())
		if err != nil {
			return nil, err
		}
		switch outcome {
		case store.UpdateApplied:
			r.logger.Info("record repaired with operator-supplied reference",
				zap.String("record_id", rec.ID), zap.String("transaction_ref", ref))
			return &Result{Outcome: OutcomeFixed, RecordID: rec.ID}, nil
		case store.UpdateNotFound:
			return &Result{Outcome: OutcomeNotFound}, nil
		case store.UpdateConflict:
			r.logger.Info("repair lost race, re-evaluating",
				zap.String("record_id", rec.ID))
		}
	}

	return nil, fmt.Errorf("record %s kept changing during repair, giving up", recordID)
}

// AttachLatestPending resolves the most recent pending record for a recipient
// and attaches the supplied reference to it.
func (r *Repairer) AttachLatestPending(ctx context.Context, recipient, ref string) (*Result, error) {
	rec, err := r.store.LatestPending(ctx, recipient)
	if errors.Is(err, store.ErrNotFound) {
		return &Result{Outcome: OutcomeNotFound}, nil
	}
	if err != nil {
		return nil, err
	}
	return r.Attach(ctx, rec.ID, ref)
}

// Reopen returns a failed record to pending so the settlement worker submits
// it again. This is the only exit from a terminal state, and it is manual by
// design; completed and anomalous records stay settled.
func (r *Repairer) Reopen(ctx context.Context, recordID string) (*Result, error) {
	rec, err := r.store.Get(ctx, recordID)
	if errors.Is(err, store.ErrNotFound) {
		return &Result{Outcome: OutcomeNotFound}, nil
	}
	if err != nil {
		return nil, err
	}

	if rec.Status != models.StatusFailed {
		return &Result{Outcome: OutcomeNotEligible, RecordID: rec.ID}, nil
	}

	outcome, err := r.store.Reopen(ctx, rec.ID, r.now())
	if err != nil {
		return nil, err
	}
	switch outcome {
	case store.UpdateApplied:
		r.logger.Info("failed record reopened for resubmission",
			zap.String("record_id", rec.ID))
		return &Result{Outcome: OutcomeFixed, RecordID: rec.ID}, nil
	case store.UpdateNotFound:
		return &Result{Outcome: OutcomeNotFound}, nil
	default:
		return &Result{Outcome: OutcomeNotEligible, RecordID: rec.ID}, nil
	}
}
