package repair

import (
	"context"
	"fmt"
	"testing"
	"time"

	"reward-settler/core/database"
	"reward-settler/feature/reward/models"
	"reward-settler/feature/reward/store"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func setupRepairer(t *testing.T, dbName string) (*Repairer, *store.Store) {
	t.Helper()

	db, err := database.Connect(database.Config{
		Driver: "sqlite",
		Name:   fmt.Sprintf("file:%s?mode=memory&cache=shared", dbName),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return New(st, zap.NewNop()), st
}

func createPending(t *testing.T, st *store.Store, recipient string) *models.RewardRecord {
	t.Helper()
	rec := &models.RewardRecord{
		RecipientAddress: recipient,
		Amount:           100,
		SourceReference:  "book-42",
	}
	if err := st.Create(context.Background(), rec); err != nil {
		t.Fatalf("failed to create record: %v", err)
	}
	return rec
}

func TestAttachCompletesPending(t *testing.T) {
	r, st := setupRepairer(t, "attach_pending")
	ctx := context.Background()

	rec := createPending(t, st, "addr1")

	res, err := r.Attach(ctx, rec.ID, "tx_manual")
	assert.NoError(t, err)
	assert.Equal(t, OutcomeFixed, res.Outcome)
	assert.Equal(t, rec.ID, res.RecordID)

	loaded, _ := st.Get(ctx, rec.ID)
	assert.Equal(t, models.StatusCompleted, loaded.Status)
	assert.Equal(t, "tx_manual", *loaded.TransactionRef)
	assert.NotNil(t, loaded.ProcessedAt)
}

func TestAttachCompletesSubmitted(t *testing.T) {
	r, st := setupRepairer(t, "attach_submitted")
	ctx := context.Background()

	rec := createPending(t, st, "addr1")
	_, err := st.MarkSubmitted(ctx, rec.ID, "tx_old", time.Now())
	assert.NoError(t, err)

	// Operator found the real reference; the stale one is replaced.
	res, err := r.Attach(ctx, rec.ID, "tx_real")
	assert.NoError(t, err)
	assert.Equal(t, OutcomeFixed, res.Outcome)

	loaded, _ := st.Get(ctx, rec.ID)
	assert.Equal(t, models.StatusCompleted, loaded.Status)
	assert.Equal(t, "tx_real", *loaded.TransactionRef)
}

func TestAttachAlreadyTerminal(t *testing.T) {
	r, st := setupRepairer(t, "attach_terminal")
	ctx := context.Background()

	rec := createPending(t, st, "addr1")
	_, err := st.MarkCompleted(ctx, rec.ID, models.StatusPending, "tx_done", time.Now())
	assert.NoError(t, err)

	res, err := r.Attach(ctx, rec.ID, "tx_other")
	assert.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyTerminal, res.Outcome)

	// The settled record is untouched.
	loaded, _ := st.Get(ctx, rec.ID)
	assert.Equal(t, "tx_done", *loaded.TransactionRef)
}

func TestAttachRefusesDuplicateReference(t *testing.T) {
	r, st := setupRepairer(t, "attach_duplicate")
	ctx := context.Background()

	holder := createPending(t, st, "addr1")
	_, err := st.MarkCompleted(ctx, holder.ID, models.StatusPending, "tx_held", time.Now())
	assert.NoError(t, err)

	rec := createPending(t, st, "addr2")

	res, err := r.Attach(ctx, rec.ID, "tx_held")
	assert.NoError(t, err)
	assert.Equal(t, OutcomeDuplicateReference, res.Outcome)

	loaded, _ := st.Get(ctx, rec.ID)
	assert.Equal(t, models.StatusPending, loaded.Status)
}

func TestAttachNotFound(t *testing.T) {
	r, _ := setupRepairer(t, "attach_not_found")

	res, err := r.Attach(context.Background(), "missing", "tx_1")
	assert.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, res.Outcome)
}

func TestAttachRequiresReference(t *testing.T) {
	r, st := setupRepairer(t, "attach_empty_ref")

	rec := createPending(t, st, "addr1")
	_, err := r.Attach(context.Background(), rec.ID, "")
	assert.Error(t, err)
}

func TestAttachLatestPending(t *testing.T) {
	r, st := setupRepairer(t, "attach_latest")
	ctx := context.Background()
	now := time.Now()

	createPending(t, st, "addr1")
	newer := &models.RewardRecord{
		RecipientAddress: "addr1",
		Amount:           100,
		SourceReference:  "book-43",
		CreatedAt:        now.Add(time.Minute),
	}
	assert.NoError(t, st.Create(ctx, newer))

	res, err := r.AttachLatestPending(ctx, "addr1", "tx_manual")
	assert.NoError(t, err)
	assert.Equal(t, OutcomeFixed, res.Outcome)
	assert.Equal(t, newer.ID, res.RecordID)

	res, err = r.AttachLatestPending(ctx, "addr-none", "tx_manual")
	assert.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, res.Outcome)
}

func TestReopenFailedRecord(t *testing.T) {
	r, st := setupRepairer(t, "reopen_failed")
	ctx := context.Background()

	rec := createPending(t, st, "addr1")
	_, err := st.MarkFailed(ctx, rec.ID, models.StatusPending, "rejected", time.Now())
	assert.NoError(t, err)

	res, err := r.Reopen(ctx, rec.ID)
	assert.NoError(t, err)
	assert.Equal(t, OutcomeFixed, res.Outcome)

	loaded, _ := st.Get(ctx, rec.ID)
	assert.Equal(t, models.StatusPending, loaded.Status)
	assert.Equal(t, 0, loaded.Attempts)
}

func TestReopenOnlyAppliesToFailed(t *testing.T) {
	r, st := setupRepairer(t, "reopen_not_eligible")
	ctx := context.Background()

	pending := createPending(t, st, "addr1")
	res, err := r.Reopen(ctx, pending.ID)
	assert.NoError(t, err)
	assert.Equal(t, OutcomeNotEligible, res.Outcome)

	completed := createPending(t, st, "addr2")
	_, err = st.MarkCompleted(ctx, completed.ID, models.StatusPending, "tx_done", time.Now())
	assert.NoError(t, err)
	res, err = r.Reopen(ctx, completed.ID)
	assert.NoError(t, err)
	assert.Equal(t, OutcomeNotEligible, res.Outcome)

	res, err = r.Reopen(ctx, "missing")
	assert.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, res.Outcome)
}
