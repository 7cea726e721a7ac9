package store_test

import (
	"context"
	"testing"
	"time"

	"reward-settler/feature/reward/models"
	"reward-settler/feature/reward/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// setupMockDB gives a store backed by sqlmock so the guard SQL itself can be
// asserted against the production MySQL dialect.
func setupMockDB(t *testing.T) (*store.Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to open mock sql db: %v", err)
	}

	dialector := mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open gorm db: %v", err)
	}

	return store.New(gormDB), mock
}

func TestGuardedUpdateSQL(t *testing.T) {
	st, mock := setupMockDB(t)

	// The guard must be part of the UPDATE itself, not a prior read.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `reward_records` SET .* WHERE id = \\? AND status = \\?").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	outcome, err := st.MarkFailed(context.Background(), "rec-1", models.StatusSubmitted, "abandoned", time.Now())
	assert.NoError(t, err)
	assert.Equal(t, store.UpdateApplied, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGuardedUpdateConflictRecheck(t *testing.T) {
	st, mock := setupMockDB(t)

	// Zero rows affected: the store re-checks existence to tell a lost race
	// apart from a missing record.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `reward_records` SET .* WHERE id = \\? AND status = \\?").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `reward_records` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	outcome, err := st.MarkCompleted(context.Background(), "rec-1", models.StatusSubmitted, "tx_1", time.Now())
	assert.NoError(t, err)
	assert.Equal(t, store.UpdateConflict, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGuardedUpdateNotFoundRecheck(t *testing.T) {
	st, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `reward_records` SET .* WHERE id = \\? AND status = \\?").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `reward_records` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	outcome, err := st.MarkCompleted(context.Background(), "rec-gone", models.StatusSubmitted, "tx_1", time.Now())
	assert.NoError(t, err)
	assert.Equal(t, store.UpdateNotFound, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}
