package db

import (
	"fmt"
	"time"

	"github.com/diewo77/quote-optimizer/internal/config"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var retryDelay = 2 * time.Second

// Open connects to the configured database, retrying while the server
// starts, and checks the connection with a trivial query.
func Open(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	dialector, target := dialectorFor(cfg)

	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}

	retries := cfg.ConnectRetries
	if retries < 1 {
		retries = 1
	}

	var gdb *gorm.DB
	var err error
	for i := 0; i < retries; i++ {
		gdb, err = gorm.Open(dialector, gcfg)
		if err == nil {
			break
		}
		log.Warn("database connection failed, retrying",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", retries),
			zap.Error(err))
		if i < retries-1 {
			time.Sleep(retryDelay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database after %d attempts: %w", retries, err)
	}

	// Basic connectivity test
	if pingErr := gdb.Exec("SELECT 1").Error; pingErr != nil {
		return nil, fmt.Errorf("db ping failed: %w", pingErr)
	}

	if cfg.Driver == config.DriverSQLite {
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		// sqlite serializes writers; one connection avoids "database is locked".
		sqlDB.SetMaxOpenConns(1)
	}

	log.Info("connected to database",
		zap.String("driver", cfg.Driver),
		zap.String("dsn", MaskDSN(target)))
	return gdb, nil
}

func dialectorFor(cfg config.DatabaseConfig) (gorm.Dialector, string) {
	if cfg.Driver == config.DriverSQLite {
		return sqlite.Open(cfg.SQLitePath), cfg.SQLitePath
	}
	dsn := cfg.DSN()
	if cfg.URL != "" {
		dsn = NormalizeDSN(cfg.URL)
	}
	return postgres.Open(dsn), dsn
}

// MigrationURL returns the URL form golang-migrate expects.
func MigrationURL(cfg config.DatabaseConfig) string {
	if cfg.URL != "" {
		return ToURLDSN(NormalizeDSN(cfg.URL))
	}
	return cfg.ConnURL()
}
