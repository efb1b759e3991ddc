package services

import (
	"context"

	"github.com/diewo77/quote-optimizer/internal/engine"
	"github.com/diewo77/quote-optimizer/internal/metrics"
	"github.com/diewo77/quote-optimizer/internal/store"
	"go.uber.org/zap"
)

// SelectResult describes a published selection.
type SelectResult struct {
	Generation uint
	Requests   int
	Selected   int
}

type SelectionService struct {
	store   *store.Store
	weights engine.Weights
	markup  engine.MarkupRange
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewSelectionService rejects invalid weights or an invalid markup band.
func NewSelectionService(st *store.Store, w engine.Weights, markup engine.MarkupRange, m *metrics.Metrics, logger *zap.Logger) (*SelectionService, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if err := markup.Validate(); err != nil {
		return nil, err
	}
	return &SelectionService{store: st, weights: w, markup: markup, metrics: m, logger: logger.Named("selection")}, nil
}

// Run picks one quote per client request from the visible merged quotes and
// publishes them. A selection failing validation is never written; the
// previous selection stays visible.
func (s *SelectionService) Run(ctx context.Context, runID string) (*SelectResult, error) {
	merged, err := s.store.CurrentMergedQuotes(ctx)
	if err != nil {
		return nil, err
	}

	normalized := engine.Normalize(merged, s.markup)
	selected := engine.SelectBest(normalized, s.weights)
	requestIDs := engine.RequestIDs(merged)

	if err := engine.ValidateSelection(selected, requestIDs); err != nil {
		s.logger.Error("selection rejected", zap.Error(err))
		return nil, err
	}

	gen, err := s.store.ReplaceSelectedQuotes(ctx, runID, selected)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.SelectedQuotes.Set(float64(len(selected)))
	}

	s.logger.Info("selected quotes published",
		zap.Int("merged", len(merged)),
		zap.Int("requests", len(requestIDs)),
		zap.Int("selected", len(selected)),
		zap.Uint("generation", gen))
	return &SelectResult{Generation: gen, Requests: len(requestIDs), Selected: len(selected)}, nil
}
