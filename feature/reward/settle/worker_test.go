package settle

import (
	"context"
	"fmt"
	"testing"
	"time"

	"reward-settler/core/database"
	"reward-settler/core/ledger"
	"reward-settler/core/ledger/mocks"
	"reward-settler/feature/reward/models"
	"reward-settler/feature/reward/reconcile"
	"reward-settler/feature/reward/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func setupWorker(t *testing.T, dbName string) (*Worker, *store.Store, *mocks.Client) {
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

	lc := new(mocks.Client)
	engine := reconcile.NewEngine(st, lc, reconcile.Config{}, zap.NewNop())
	worker := NewWorker(st, lc, engine, Config{
		BatchSize:   10,
		Concurrency: 1,
	}, zap.NewNop())

	return worker, st, lc
}

func createDue(t *testing.T, st *store.Store, recipient string) *models.RewardRecord {
	t.Helper()
	rec := &models.RewardRecord{
		RecipientAddress: recipient,
		Amount:           100,
		SourceReference:  "book-42",
		NextAttemptAt:    time.Now().Add(-time.Minute),
	}
	if err := st.Create(context.Background(), rec); err != nil {
		t.Fatalf("failed to create record: %v", err)
	}
	return rec
}

func TestBackoff(t *testing.T) {
	cfg := Config{BackoffBaseSeconds: 30, BackoffMaxSeconds: 3600}

	assert.Equal(t, 30*time.Second, cfg.Backoff(0))
	assert.Equal(t, 60*time.Second, cfg.Backoff(1))
	assert.Equal(t, 120*time.Second, cfg.Backoff(2))
	assert.Equal(t, 1920*time.Second, cfg.Backoff(6))
	// Cap: 30s << 7 = 3840s > 3600s
	assert.Equal(t, time.Hour, cfg.Backoff(7))
	assert.Equal(t, time.Hour, cfg.Backoff(100))
}

func TestRunCycleSubmits(t *testing.T) {
	worker, st, lc := setupWorker(t, "cycle_submits")
	ctx := context.Background()

	rec := createDue(t, st, "addr1")

	lc.On("Submit", mock.Anything, "addr1", int64(100), "book-42").Return("tx_1", nil)
	// The reconciliation pass confirms the fresh submission immediately.
	lc.On("GetByReference", mock.Anything, "tx_1").Return(&ledger.Transaction{
		Ref:       "tx_1",
		Recipient: "addr1",
		Amount:    100,
		Confirmed: true,
	}, nil)

	sum, err := worker.RunCycle(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, sum.Due)
	assert.Equal(t, 1, sum.Submitted)
	assert.Equal(t, 0, sum.Rejected)
	assert.Equal(t, 0, sum.Unknown)
	assert.NotNil(t, sum.Reconcile)
	assert.Equal(t, 1, sum.Reconcile.Completed)

	loaded, _ := st.Get(ctx, rec.ID)
	assert.Equal(t, models.StatusCompleted, loaded.Status)
	assert.Equal(t, "tx_1", *loaded.TransactionRef)
	assert.Equal(t, 1, loaded.Attempts)
}

func TestRunCycleFailsRejected(t *testing.T) {
	worker, st, lc := setupWorker(t, "cycle_rejected")
	ctx := context.Background()

	rec := createDue(t, st, "addr1")

	lc.On("Submit", mock.Anything, "addr1", int64(100), "book-42").
		Return("", &ledger.Error{Kind: ledger.KindRejected, Status: 422, Message: "invalid recipient"})

	sum, err := worker.RunCycle(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, sum.Rejected)
	assert.Equal(t, 0, sum.Submitted)

	loaded, _ := st.Get(ctx, rec.ID)
	assert.Equal(t, models.StatusFailed, loaded.Status)
	assert.Nil(t, loaded.TransactionRef)
	assert.Contains(t, loaded.Details, "invalid recipient")
}

func TestRunCycleUnknownOutcomeLeavesPending(t *testing.T) {
	worker, st, lc := setupWorker(t, "cycle_unknown")
	ctx := context.Background()

	rec := createDue(t, st, "addr1")

	// Timeout: the transfer may or may not have been broadcast.
	lc.On("Submit", mock.Anything, "addr1", int64(100), "book-42").
		Return("", &ledger.Error{Kind: ledger.KindUnavailable, Message: "request timed out"})
	// No match yet; the record keeps waiting.
	lc.On("FindByIdentity", mock.Anything, "addr1", int64(100), "book-42", mock.Anything).
		Return([]ledger.Transaction{}, nil)

	sum, err := worker.RunCycle(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, sum.Unknown)
	assert.Equal(t, 0, sum.Rejected, "an unknown outcome must never be booked as failure")

	loaded, _ := st.Get(ctx, rec.ID)
	assert.Equal(t, models.StatusPending, loaded.Status)
	assert.Equal(t, 1, loaded.Attempts)
	assert.True(t, loaded.NextAttemptAt.After(time.Now()), "resubmission is pushed out by the backoff")
}

func TestRunCycleRecoversUnknownViaLookback(t *testing.T) {
	worker, st, lc := setupWorker(t, "cycle_lookback")
	ctx := context.Background()

	rec := createDue(t, st, "addr1")

	// The broadcast actually landed even though the response was lost.
	lc.On("Submit", mock.Anything, "addr1", int64(100), "book-42").
		Return("", &ledger.Error{Kind: ledger.KindUnavailable, Message: "connection reset"})
	lc.On("FindByIdentity", mock.Anything, "addr1", int64(100), "book-42", mock.Anything).
		Return([]ledger.Transaction{
			{Ref: "tx_landed", Recipient: "addr1", Amount: 100, Confirmed: true},
		}, nil)

	sum, err := worker.RunCycle(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, sum.Unknown)
	assert.Equal(t, 1, sum.Reconcile.Recovered)

	loaded, _ := st.Get(ctx, rec.ID)
	assert.Equal(t, models.StatusCompleted, loaded.Status)
	assert.Equal(t, "tx_landed", *loaded.TransactionRef)
}

func TestRunCycleSkipsBackedOffRecords(t *testing.T) {
	worker, st, lc := setupWorker(t, "cycle_backed_off")
	ctx := context.Background()

	rec := &models.RewardRecord{
		RecipientAddress: "addr1",
		Amount:           100,
		SourceReference:  "book-42",
		NextAttemptAt:    time.Now().Add(time.Hour),
	}
	assert.NoError(t, st.Create(ctx, rec))

	// Still scanned by reconciliation, but never submitted.
	lc.On("FindByIdentity", mock.Anything, "addr1", int64(100), "book-42", mock.Anything).
		Return([]ledger.Transaction{}, nil)

	sum, err := worker.RunCycle(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 0, sum.Due)
	lc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
