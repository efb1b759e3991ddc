// Package pipeline runs the scoring, merge and selection stages in order
// behind the run lock and records each invocation as a PipelineRun.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diewo77/quote-optimizer/internal/apperrors"
	"github.com/diewo77/quote-optimizer/internal/engine"
	"github.com/diewo77/quote-optimizer/internal/lock"
	"github.com/diewo77/quote-optimizer/internal/metrics"
	"github.com/diewo77/quote-optimizer/internal/models"
	"github.com/diewo77/quote-optimizer/internal/scorer"
	"github.com/diewo77/quote-optimizer/internal/services"
	"github.com/diewo77/quote-optimizer/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Stage string

const (
	StageScore  Stage = "score"
	StageMerge  Stage = "merge"
	StageSelect Stage = "select"
)

// Stages is the full pipeline in execution order.
var Stages = []Stage{StageScore, StageMerge, StageSelect}

func ParseStage(s string) (Stage, error) {
	for _, st := range Stages {
		if string(st) == strings.ToLower(strings.TrimSpace(s)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q", s)
}

// Options carry the selection parameters.
type Options struct {
	Weights engine.Weights
	Markup  engine.MarkupRange
}

type Pipeline struct {
	store     *store.Store
	scorer    scorer.Scorer
	locker    lock.Locker
	scoring   *services.ScoringService
	merge     *services.MergeService
	selection *services.SelectionService
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// New wires the stage services. The scorer may be nil when the score stage
// is never run; running it then fails with a ConfigurationError.
func New(st *store.Store, sc scorer.Scorer, locker lock.Locker, m *metrics.Metrics, logger *zap.Logger, opts Options) (*Pipeline, error) {
	if m == nil {
		m = metrics.New()
	}
	sel, err := services.NewSelectionService(st, opts.Weights, opts.Markup, m, logger)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		store:     st,
		scorer:    sc,
		locker:    locker,
		scoring:   services.NewScoringService(st, m, logger),
		merge:     services.NewMergeService(st, m, logger),
		selection: sel,
		metrics:   m,
		logger:    logger.Named("pipeline"),
		now:       time.Now,
	}, nil
}

// Run executes every stage.
func (p *Pipeline) Run(ctx context.Context) (*models.PipelineRun, error) {
	return p.RunStages(ctx, Stages...)
}

func (p *Pipeline) RunStage(ctx context.Context, stage Stage) (*models.PipelineRun, error) {
	return p.RunStages(ctx, stage)
}

// RunStages executes stages in the given order under the run lock and stops
// at the first failure. Work committed by earlier stages is kept; each stage
// can be rerun on its own. When the lock is held elsewhere it returns
// ErrRunInProgress without recording a run.
func (p *Pipeline) RunStages(ctx context.Context, stages ...Stage) (*models.PipelineRun, error) {
	release, err := p.locker.Acquire(ctx)
	if err != nil {
		if errors.Is(err, apperrors.ErrRunInProgress) {
			p.logger.Warn("pipeline already running")
		}
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			p.logger.Warn("release run lock", zap.Error(err))
		}
	}()

	names := make([]string, len(stages))
	for i, st := range stages {
		names[i] = string(st)
	}
	run := &models.PipelineRun{
		ID:        uuid.NewString(),
		Stages:    strings.Join(names, ","),
		Status:    models.RunStatusRunning,
		StartedAt: p.now().UTC(),
	}
	if err := p.store.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	log := p.logger.With(zap.String("run_id", run.ID))
	log.Info("pipeline run started", zap.String("stages", run.Stages))

	var runErr error
	for _, st := range stages {
		start := time.Now()
		runErr = p.runStage(ctx, st, run)
		elapsed := time.Since(start)
		p.metrics.ObserveStage(string(st), elapsed)
		if runErr != nil {
			log.Error("stage failed", zap.String("stage", string(st)), zap.Duration("elapsed", elapsed), zap.Error(runErr))
			runErr = fmt.Errorf("stage %s: %w", st, runErr)
			break
		}
		log.Info("stage finished", zap.String("stage", string(st)), zap.Duration("elapsed", elapsed))
	}

	finished := p.now().UTC()
	run.FinishedAt = &finished
	run.Status = models.RunStatusSucceeded
	if runErr != nil {
		run.Status = models.RunStatusFailed
		run.Error = runErr.Error()
	}
	p.metrics.Runs.WithLabelValues(string(run.Status)).Inc()

	if err := p.store.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		if runErr != nil {
			log.Error("record failed run", zap.Error(err))
			return run, runErr
		}
		return run, err
	}
	log.Info("pipeline run finished",
		zap.String("status", string(run.Status)),
		zap.Int("scored", run.Scored),
		zap.Int("score_skipped", run.ScoreSkipped),
		zap.Int("merged", run.Merged),
		zap.Int("selected", run.Selected))
	return run, runErr
}

func (p *Pipeline) runStage(ctx context.Context, stage Stage, run *models.PipelineRun) error {
	switch stage {
	case StageScore:
		res, err := p.scoring.Apply(ctx, p.scorer)
		if err != nil {
			return err
		}
		run.Scored = res.Scored
		run.ScoreSkipped = len(res.Skipped)
	case StageMerge:
		res, err := p.merge.Rebuild(ctx, run.ID)
		if err != nil {
			return err
		}
		run.Merged = res.Rows
	case StageSelect:
		res, err := p.selection.Run(ctx, run.ID)
		if err != nil {
			return err
		}
		run.Selected = res.Selected
	default:
		return fmt.Errorf("unknown stage %q", stage)
	}
	return nil
}

// Metrics exposes the collectors the pipeline reports to.
func (p *Pipeline) Metrics() *metrics.Metrics { return p.metrics }
