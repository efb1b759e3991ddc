package store

import (
	"context"
	"errors"

	"github.com/diewo77/quote-optimizer/internal/apperrors"
	"github.com/diewo77/quote-optimizer/internal/models"
	"gorm.io/gorm"
)

func (s *Store) CreateRun(ctx context.Context, run *models.PipelineRun) error {
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return &apperrors.PersistenceError{Op: "create", Table: "pipeline_runs", Err: err}
	}
	return nil
}

// FinishRun stores the final state of run.
func (s *Store) FinishRun(ctx context.Context, run *models.PipelineRun) error {
	if err := s.db.WithContext(ctx).Save(run).Error; err != nil {
		return &apperrors.PersistenceError{Op: "update", Table: "pipeline_runs", Err: err}
	}
	return nil
}

func (s *Store) Run(ctx context.Context, id string) (*models.PipelineRun, error) {
	var run models.PipelineRun
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, &apperrors.PersistenceError{Op: "read", Table: "pipeline_runs", Err: err}
	}
	return &run, nil
}

// RecentRuns lists the latest runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]models.PipelineRun, error) {
	var runs []models.PipelineRun
	if err := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, &apperrors.PersistenceError{Op: "read", Table: "pipeline_runs", Err: err}
	}
	return runs, nil
}
