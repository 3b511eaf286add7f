package run

import (
	"testing"

	"gorm.io/gorm"

	"github.com/hairizuan-noorazman/stormbot/logger"
	"github.com/hairizuan-noorazman/stormbot/testutil"
)

// setupTestStore creates a test database and run store.
func setupTestStore(t *testing.T) (*gorm.DB, Store) {
	db := testutil.SetupTestDB(t)
	testutil.AutoMigrate(t, db, &Run{})

	return db, NewSQLStore(db, logger.NewTestLogger())
}

func newRun() *Run {
	return &Run{
		TargetURL: "https://example.com",
		Users:     3,
		Duration:  60,
		AIEnabled: true,
	}
}
