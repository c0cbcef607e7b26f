package testutil

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/tempero-labs/dispenser-backend/internal/platform/logger"
	"github.com/tempero-labs/dispenser-backend/internal/types"
)

var (
	logOnce sync.Once
	logg    *logger.Logger
	logErr  error

	dbSeq atomic.Int64
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

// DB opens a fresh in-memory sqlite database per call so tests never share
// state. The single-connection cap keeps every session on the same in-memory
// store.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("failed to open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("failed to access test db pool: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := autoMigrateAll(db); err != nil {
		tb.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}

func autoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&types.User{},
		&types.Recipe{},
		&types.RecipeIngredient{},
		&types.ReservoirConfig{},
		&types.Device{},
		&types.DeviceClaim{},
		&types.Job{},
		&types.JobItem{},
	); err != nil {
		return err
	}
	// Same admission guard production carries: at most one queued or running
	// job per user, enforced by the engine itself.
	return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS uq_jobs_active_per_user ON jobs(user_id) WHERE status IN ('queued','running')`).Error
}
