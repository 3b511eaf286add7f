package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Each driver has its own migration set: sqlite only maps columns declared exactly
// DATETIME to time values, while MySQL needs DATETIME(3) for millisecond precision.
//
//go:embed migrations/mysql/*.sql migrations/sqlite/*.sql
var embedded embed.FS

// newMigrate builds a migrator for sqlDB. An empty path uses the embedded migrations.
func newMigrate(sqlDB *sql.DB, driver, path string) (*migrate.Migrate, error) {
	var (
		dbDriver migratedb.Driver
		name     string
		dir      string
		err      error
	)
	switch strings.ToLower(driver) {
	case "", DriverSQLite:
		name = "sqlite3"
		dir = "migrations/sqlite"
		dbDriver, err = migratesqlite.WithInstance(sqlDB, &migratesqlite.Config{})
	case DriverMySQL:
		name = "mysql"
		dir = "migrations/mysql"
		dbDriver, err = migratemysql.WithInstance(sqlDB, &migratemysql.Config{})
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	if path != "" {
		return migrate.NewWithDatabaseInstance("file://"+path, name, dbDriver)
	}
	src, err := iofs.New(embedded, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	return migrate.NewWithInstance("iofs", src, name, dbDriver)
}

// RunMigrations applies all pending migrations.
func RunMigrations(sqlDB *sql.DB, driver, path string) error {
	m, err := newMigrate(sqlDB, driver, path)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// RollbackMigration reverts the most recent migration.
func RollbackMigration(sqlDB *sql.DB, driver, path string) error {
	m, err := newMigrate(sqlDB, driver, path)
	if err != nil {
		return err
	}
	if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}
	return nil
}

// Version returns the current schema version and whether it is dirty.
func Version(sqlDB *sql.DB, driver string) (uint, bool, error) {
	m, err := newMigrate(sqlDB, driver, "")
	if err != nil {
		return 0, false, err
	}
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}
