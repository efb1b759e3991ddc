package main

import (
	"context"
	"errors"

	"github.com/diewo77/quote-optimizer/internal/apperrors"
	"github.com/diewo77/quote-optimizer/internal/config"
	"github.com/diewo77/quote-optimizer/internal/db"
	"github.com/diewo77/quote-optimizer/internal/lock"
	"github.com/diewo77/quote-optimizer/internal/logging"
	"github.com/diewo77/quote-optimizer/internal/metrics"
	"github.com/diewo77/quote-optimizer/internal/pipeline"
	"github.com/diewo77/quote-optimizer/internal/scorer"
	"github.com/diewo77/quote-optimizer/internal/store"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds the dependencies shared by every command.
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *gorm.DB
	store   *store.Store
	metrics *metrics.Metrics
	locker  lock.Locker
	closers []func() error
}

func newApp(opts *rootOptions) (*App, error) {
	// a missing .env file is fine
	_ = godotenv.Load(opts.envFile)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Env, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	app := &App{cfg: cfg, logger: logger, metrics: metrics.New()}

	app.db, err = db.Open(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	sqlDB, err := app.db.DB()
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, sqlDB.Close)
	app.store = store.New(app.db)

	switch cfg.Lock.Backend {
	case config.LockPostgres:
		app.locker = lock.NewPostgres(sqlDB, cfg.Lock.Name)
	case config.LockRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Lock.RedisAddr,
			Password: cfg.Lock.RedisPassword,
			DB:       cfg.Lock.RedisDB,
		})
		app.closers = append(app.closers, client.Close)
		app.locker = lock.NewRedis(client, cfg.Lock.Name, cfg.Lock.TTL, logger)
	default:
		app.locker = lock.NewLocal()
	}
	return app, nil
}

// pipeline builds the stage runner. The scorer is only loaded when a model
// path is configured; modelPath overrides the configured one.
func (a *App) pipeline(modelPath string) (*pipeline.Pipeline, error) {
	if modelPath == "" {
		modelPath = a.cfg.Scoring.ModelPath
	}
	var sc scorer.Scorer
	if modelPath != "" {
		m, err := scorer.LoadLogistic(modelPath)
		if err != nil {
			return nil, err
		}
		a.logger.Info("scoring model loaded", zap.String("path", modelPath), zap.String("version", m.Version()))
		sc = m
	}
	return pipeline.New(a.store, sc, a.locker, a.metrics, a.logger, pipeline.Options{
		Weights: a.cfg.Selection.Weights(),
		Markup:  a.cfg.Selection.Markup(),
	})
}

// pushMetrics sends the collected metrics when a push gateway is configured.
func (a *App) pushMetrics(ctx context.Context) {
	url := a.cfg.Metrics.PushGatewayURL
	if url == "" {
		return
	}
	if err := a.metrics.Push(ctx, url, a.cfg.Metrics.Job); err != nil {
		a.logger.Warn("push metrics", zap.String("url", url), zap.Error(err))
	}
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrConfiguration):
		return 2
	case errors.Is(err, apperrors.ErrRunInProgress):
		return 3
	case errors.Is(err, apperrors.ErrSelectionInvariant), errors.Is(err, apperrors.ErrFeatureContract), errors.Is(err, apperrors.ErrJoinCardinality),
		errors.Is(err, apperrors.ErrUnsupportedProduct):
		return 4
	default:
		return 1
	}
}
