package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"reward-settler/feature/reward/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNotFound is returned when no record matches the lookup.
var ErrNotFound = errors.New("reward record not found")

// ValidationError rejects a malformed record before it enters the state
// machine.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid reward record: %s %s", e.Field, e.Reason)
}

// UpdateOutcome is the result of a guarded conditional update.
type UpdateOutcome int

const (
	// UpdateApplied means this caller won the transition.
	UpdateApplied UpdateOutcome = iota
	// UpdateConflict means another actor already advanced the record; the
	// caller must re-read and re-evaluate. This is not an error.
	UpdateConflict
	// UpdateNotFound means no record exists under the given ID.
	UpdateNotFound
)

// Store is the reward record store. All mutations go through guarded
// conditional updates keyed on the current status, so concurrent actors
// (settlement worker, reconciliation engine, repair tool) resolve contention
// per record without in-process locks.
type Store struct {
	db *gorm.DB
}

// New creates a reward record store over the given connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the reward_records table.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&models.RewardRecord{})
}

// Create validates and inserts a new record in state pending.
// Recipient, amount and source reference are immutable after this point.
func (s *Store) Create(ctx context.Context, rec *models.RewardRecord) error {
	if strings.TrimSpace(rec.RecipientAddress) == "" {
		return &ValidationError{Field: "recipient_address", Reason: "must not be empty"}
	}
	if rec.Amount <= 0 {
		return &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if strings.TrimSpace(rec.SourceReference) == "" {
		return &ValidationError{Field: "source_reference", Reason: "must not be empty"}
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.Status = models.StatusPending
	rec.TransactionRef = nil
	if rec.NextAttemptAt.IsZero() {
		rec.NextAttemptAt = time.Now()
	}

	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to create reward record: %w", err)
	}
	return nil
}

// Filter selects records for Find. Statuses is mandatory for scans; Cursor is
// the last seen ID of the previous page (keyset pagination).
type Filter struct {
	Statuses  []models.Status
	Recipient string
	Cursor    string
	Limit     int
}

// Find returns records matching the filter, ordered by ID for stable
// pagination. Records that transition out of the filtered statuses between
// pages simply drop out; the cursor stays valid.
func (s *Store) Find(ctx context.Context, f Filter) ([]models.RewardRecord, error) {
	q := s.db.WithContext(ctx).Model(&models.RewardRecord{})
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.Recipient != "" {
		q = q.Where("recipient_address = ?", f.Recipient)
	}
	if f.Cursor != "" {
		q = q.Where("id > ?", f.Cursor)
	}
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}

	var recs []models.RewardRecord
	if err := q.Order("id ASC").Limit(limit).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to query reward records: %w", err)
	}
	return recs, nil
}

// Get fetches a single record by ID.
func (s *Store) Get(ctx context.Context, id string) (*models.RewardRecord, error) {
	var rec models.RewardRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load reward record %s: %w", id, err)
	}
	return &rec, nil
}

// FindByTransactionRef returns the record holding the given ledger reference,
// or nil if no record holds it. Failed records never hold a reference (it is
// cleared on the failed transition), so any holder is a settled or in-flight
// record.
func (s *Store) FindByTransactionRef(ctx context.Context, ref string) (*models.RewardRecord, error) {
	var rec models.RewardRecord
	err := s.db.WithContext(ctx).First(&rec, "transaction_ref = ?", ref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up transaction ref %s: %w", ref, err)
	}
	return &rec, nil
}

// LatestPending returns the most recently created pending record for a
// recipient, or ErrNotFound.
func (s *Store) LatestPending(ctx context.Context, recipient string) (*models.RewardRecord, error) {
	var rec models.RewardRecord
	err := s.db.WithContext(ctx).
		Where("recipient_address = ? AND status = ?", recipient, models.StatusPending).
		Order("created_at DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest pending record for %s: %w", recipient, err)
	}
	return &rec, nil
}

// DueForSubmission returns pending records whose backoff window has elapsed,
// oldest first, bounded by limit.
func (s *Store) DueForSubmission(ctx context.Context, now time.Time, limit int) ([]models.RewardRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var recs []models.RewardRecord
	err := s.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", models.StatusPending, now).
		Order("created_at ASC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to select due records: %w", err)
	}
	return recs, nil
}

// UpdateGuarded applies fields to the record only if its status still equals
// expected. A lost guard means another actor already advanced the record.
func (s *Store) UpdateGuarded(ctx context.Context, id string, expected models.Status, fields map[string]any) (UpdateOutcome, error) {
	res := s.db.WithContext(ctx).
		Model(&models.RewardRecord{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(fields)
	if res.Error != nil {
		return UpdateConflict, fmt.Errorf("guarded update of record %s failed: %w", id, res.Error)
	}
	if res.RowsAffected == 1 {
		return UpdateApplied, nil
	}

	// Zero rows: distinguish a lost race from a missing record.
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.RewardRecord{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return UpdateConflict, fmt.Errorf("failed to re-check record %s: %w", id, err)
	}
	if count == 0 {
		return UpdateNotFound, nil
	}
	return UpdateConflict, nil
}

// MarkSubmitted advances pending -> submitted carrying the ledger reference.
func (s *Store) MarkSubmitted(ctx context.Context, id, ref string, at time.Time) (UpdateOutcome, error) {
	return s.transition(ctx, id, models.StatusPending, models.StatusSubmitted, map[string]any{
		"status":          models.StatusSubmitted,
		"transaction_ref": ref,
		"submitted_at":    at,
		"attempts":        gorm.Expr("attempts + 1"),
	})
}

// MarkCompleted advances the record to completed, attaching the reference.
// Valid from pending (lookback adoption, repair) and submitted (confirmation).
func (s *Store) MarkCompleted(ctx context.Context, id string, expected models.Status, ref string, at time.Time) (UpdateOutcome, error) {
	return s.transition(ctx, id, expected, models.StatusCompleted, map[string]any{
		"status":          models.StatusCompleted,
		"transaction_ref": ref,
		"processed_at":    at,
	})
}

// MarkFailed advances the record to failed. The ledger reference is cleared:
// a failed record owns no settlement proof, which keeps the reference free
// for a later resubmission.
func (s *Store) MarkFailed(ctx context.Context, id string, expected models.Status, reason string, at time.Time) (UpdateOutcome, error) {
	return s.transition(ctx, id, expected, models.StatusFailed, map[string]any{
		"status":          models.StatusFailed,
		"transaction_ref": nil,
		"details":         reason,
		"processed_at":    at,
	})
}

// MarkAnomalous parks the record for operator review. ref may be nil when the
// evidence is ambiguous (multiple candidate transfers); the candidates are
// then listed in detail instead.
func (s *Store) MarkAnomalous(ctx context.Context, id string, expected models.Status, ref *string, detail string, at time.Time) (UpdateOutcome, error) {
	fields := map[string]any{
		"status":       models.StatusAnomalous,
		"details":      detail,
		"processed_at": at,
	}
	if ref != nil {
		fields["transaction_ref"] = *ref
	}
	return s.transition(ctx, id, expected, models.StatusAnomalous, fields)
}

// Reschedule bumps the attempt counter and backoff deadline of a pending
// record after a submission with unknown outcome. Not a status transition.
func (s *Store) Reschedule(ctx context.Context, id string, attempts int, next time.Time) (UpdateOutcome, error) {
	return s.UpdateGuarded(ctx, id, models.StatusPending, map[string]any{
		"attempts":        attempts,
		"next_attempt_at": next,
	})
}

// Reopen is the manual failed -> pending transition. Failure details are kept
// for the audit trail; the backoff clock is reset so the worker picks the
// record up on its next cycle.
func (s *Store) Reopen(ctx context.Context, id string, at time.Time) (UpdateOutcome, error) {
	return s.transition(ctx, id, models.StatusFailed, models.StatusPending, map[string]any{
		"status":          models.StatusPending,
		"attempts":        0,
		"next_attempt_at": at,
		"processed_at":    nil,
	})
}

func (s *Store) transition(ctx context.Context, id string, from, to models.Status, fields map[string]any) (UpdateOutcome, error) {
	if !models.CanTransition(from, to) {
		return UpdateConflict, fmt.Errorf("illegal transition %s -> %s for record %s", from, to, id)
	}
	return s.UpdateGuarded(ctx, id, from, fields)
}
