// Package config provides application configuration loaded from an optional
// YAML file with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/diewo77/quote-optimizer/internal/apperrors"
	"github.com/diewo77/quote-optimizer/internal/engine"
	"github.com/diewo77/quote-optimizer/internal/validation"
	"github.com/ilyakaznacheev/cleanenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	LockLocal    = "local"
	LockPostgres = "postgres"
	LockRedis    = "redis"
)

// Config holds all application configuration.
type Config struct {
	Env       string          `yaml:"env" env:"APP_ENV" env-default:"development"`
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	Selection SelectionConfig `yaml:"selection"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Lock      LockConfig      `yaml:"lock"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// DatabaseConfig holds connection settings for PostgreSQL or SQLite.
type DatabaseConfig struct {
	Driver         string `yaml:"driver" env:"DB_DRIVER" env-default:"postgres"`
	URL            string `yaml:"url" env:"DATABASE_URL"` // overrides the discrete fields below
	Host           string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User           string `yaml:"user" env:"DB_USER" env-default:"quoteopt"`
	Password       string `yaml:"password" env:"DB_PASSWORD" env-default:"quoteopt"`
	DBName         string `yaml:"dbname" env:"DB_NAME" env-default:"quoteopt"`
	SSLMode        string `yaml:"sslmode" env:"DB_SSLMODE" env-default:"disable"`
	SQLitePath     string `yaml:"sqlite_path" env:"SQLITE_PATH" env-default:"quoteopt.db"`
	Migrations     bool   `yaml:"migrations" env:"MIGRATIONS"`
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
	Debug          bool   `yaml:"debug" env:"DB_DEBUG"`
	ConnectRetries int    `yaml:"connect_retries" env:"DB_CONNECT_RETRIES" env-default:"10"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT"` // json or console, derived from Env when empty
}

// SelectionConfig holds the selector weights and the markup band.
// Zero is a valid weight, so defaults come from Default and not env-default.
type SelectionConfig struct {
	WinWeight    float64 `yaml:"win_weight" env:"SELECTION_WIN_WEIGHT"`
	MarginWeight float64 `yaml:"margin_weight" env:"SELECTION_MARGIN_WEIGHT"`
	MinMarkup    float64 `yaml:"min_markup" env:"SELECTION_MIN_MARKUP"`
	MaxMarkup    float64 `yaml:"max_markup" env:"SELECTION_MAX_MARKUP"`
}

type ScoringConfig struct {
	ModelPath string `yaml:"model_path" env:"SCORING_MODEL_PATH"`
}

type LockConfig struct {
	Backend       string        `yaml:"backend" env:"LOCK_BACKEND" env-default:"local"`
	Name          string        `yaml:"name" env:"LOCK_NAME" env-default:"quote-pipeline"`
	RedisAddr     string        `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string        `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db" env:"REDIS_DB"`
	TTL           time.Duration `yaml:"ttl" env:"LOCK_TTL" env-default:"15m"`
}

type MetricsConfig struct {
	PushGatewayURL string `yaml:"push_gateway_url" env:"METRICS_PUSH_GATEWAY_URL"`
	Job            string `yaml:"job" env:"METRICS_JOB" env-default:"quoteopt"`
}

// DSN returns the PostgreSQL connection string in key=value format.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// ConnURL returns the PostgreSQL connection string in URL format.
func (d DatabaseConfig) ConnURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

func (s SelectionConfig) Weights() engine.Weights {
	return engine.Weights{WinProbability: s.WinWeight, ProfitMargin: s.MarginWeight}
}

func (s SelectionConfig) Markup() engine.MarkupRange {
	return engine.MarkupRange{Min: s.MinMarkup, Max: s.MaxMarkup}
}

// IsProduction reports whether the environment asks for production defaults.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Default returns the configuration used before the file and environment are applied.
func Default() *Config {
	w := engine.DefaultWeights()
	m := engine.DefaultMarkup()
	return &Config{
		Selection: SelectionConfig{
			WinWeight:    w.WinProbability,
			MarginWeight: w.ProfitMargin,
			MinMarkup:    m.Min,
			MaxMarkup:    m.Max,
		},
	}
}

// Load reads path when it exists, applies environment overrides and validates
// the result. A missing file is not an error: the environment alone is used.
func Load(path string) (*Config, error) {
	cfg := Default()

	readFile := false
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			readFile = true
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat config %s: %w", path, err)
		}
	}

	if readFile {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate returns a ConfigurationError listing every invalid field.
func (c *Config) Validate() error {
	v := validation.Violations{}

	validation.OneOf("database.driver", c.Database.Driver, []string{DriverPostgres, DriverSQLite}, v)
	if c.Database.Driver == DriverSQLite {
		validation.Required("database.sqlite_path", c.Database.SQLitePath, v)
	}
	validation.PositiveInt("database.connect_retries", c.Database.ConnectRetries, v)
	if c.Database.Migrations {
		validation.Required("database.migrations_path", c.Database.MigrationsPath, v)
	}

	validation.OneOf("log.level", c.Log.Level, []string{"debug", "info", "warn", "error"}, v)
	validation.OneOf("log.format", c.Log.Format, []string{"", "json", "console"}, v)

	mergeViolations(v, c.Selection.Weights().Validate())
	mergeViolations(v, c.Selection.Markup().Validate())

	validation.OneOf("lock.backend", c.Lock.Backend, []string{LockLocal, LockPostgres, LockRedis}, v)
	validation.Required("lock.name", c.Lock.Name, v)
	switch c.Lock.Backend {
	case LockPostgres:
		if c.Database.Driver != DriverPostgres {
			v["lock.backend"] = "requires_postgres_driver"
		}
	case LockRedis:
		validation.Required("lock.redis_addr", c.Lock.RedisAddr, v)
		if c.Lock.TTL <= 0 {
			v["lock.ttl"] = "must_be_positive"
		}
	}

	return v.Err()
}

func mergeViolations(v validation.Violations, err error) {
	var cfgErr *apperrors.ConfigurationError
	if errors.As(err, &cfgErr) {
		for field, code := range cfgErr.Violations {
			v[field] = code
		}
	}
}
