package database_test

import (
	"testing"

	"reward-settler/core/database"

	"github.com/stretchr/testify/assert"
)

type probeRow struct {
	ID    uint   `gorm:"primaryKey"`
	Name  string `gorm:"size:64"`
	Count int
}

func (probeRow) TableName() string {
	return "probe_rows"
}

func TestConnectSQLite(t *testing.T) {
	db, err := database.Connect(database.Config{
		Driver: "sqlite",
		Name:   ":memory:",
	})
	assert.NoError(t, err)
	assert.NotNil(t, db)

	assert.NoError(t, db.AutoMigrate(&probeRow{}))
	assert.NoError(t, db.Create(&probeRow{Name: "a", Count: 1}).Error)

	var got probeRow
	assert.NoError(t, db.First(&got, "name = ?", "a").Error)
	assert.Equal(t, 1, got.Count)
}

func TestVerifyColumns(t *testing.T) {
	db, err := database.Connect(database.Config{
		Driver: "sqlite",
		Name:   ":memory:",
	})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&probeRow{}))

	missing, err := database.VerifyColumns(db, "probe_rows", []string{"id", "name", "count"})
	assert.NoError(t, err)
	assert.Empty(t, missing)

	missing, err = database.VerifyColumns(db, "probe_rows", []string{"id", "does_not_exist"})
	assert.NoError(t, err)
	assert.Equal(t, []string{"does_not_exist"}, missing)

	// SQLite PRAGMA on a missing table yields no columns rather than an error,
	// so every expected column reports missing.
	missing, err = database.VerifyColumns(db, "no_such_table", []string{"id"})
	assert.NoError(t, err)
	assert.Equal(t, []string{"id"}, missing)
}
