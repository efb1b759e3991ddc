package db

import (
	"errors"
	"fmt"

	"github.com/diewo77/quote-optimizer/internal/config"
	"github.com/diewo77/quote-optimizer/internal/models"
	migrate "github.com/golang-migrate/migrate/v4"
	// The following blank imports register the postgres driver and file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Migrate runs GORM AutoMigrate on all models.
func Migrate(gdb *gorm.DB) error {
	for _, m := range models.All() {
		if err := gdb.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	// sanity check: ensure the snapshot pointer table exists
	if !gdb.Migrator().HasTable(&models.SnapshotHead{}) {
		return errors.New("missing table after migration: snapshot_heads")
	}
	return nil
}

// Prepare brings the schema up to date: versioned SQL migrations when they
// are enabled on postgres, AutoMigrate otherwise.
func Prepare(gdb *gorm.DB, cfg config.DatabaseConfig, log *zap.Logger) error {
	if cfg.Migrations && cfg.Driver == config.DriverPostgres {
		if err := RunSQLMigrations(MigrationURL(cfg), cfg.MigrationsPath, log); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
		return nil
	}
	return Migrate(gdb)
}

// RunSQLMigrations applies the migrations found in dir with golang-migrate.
func RunSQLMigrations(databaseURL, dir string, log *zap.Logger) error {
	m, err := migrate.New("file://"+dir, databaseURL)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("database schema is up to date")
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}
	log.Info("database migrations applied", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}
