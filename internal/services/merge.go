package services

import (
	"context"

	"github.com/diewo77/quote-optimizer/internal/engine"
	"github.com/diewo77/quote-optimizer/internal/metrics"
	"github.com/diewo77/quote-optimizer/internal/store"
	"go.uber.org/zap"
)

// MergeResult describes a published merged quote generation.
type MergeResult struct {
	Generation uint
	Rows       int
}

type MergeService struct {
	store   *store.Store
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewMergeService(st *store.Store, m *metrics.Metrics, logger *zap.Logger) *MergeService {
	return &MergeService{store: st, metrics: m, logger: logger.Named("merge")}
}

// Rebuild joins the ingested tables and replaces the merged quotes with the
// result. An empty join still publishes an empty generation.
func (s *MergeService) Rebuild(ctx context.Context, runID string) (*MergeResult, error) {
	snap, err := s.store.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := engine.JoinQuotes(snap)
	if err != nil {
		s.logger.Error("join failed", zap.Error(err))
		return nil, err
	}

	fields := []zap.Field{
		zap.Int("client_requests", len(snap.Requests)),
		zap.Int("suppliers", len(snap.Suppliers)),
		zap.Int("rfqs", len(snap.RFQs)),
		zap.Int("quotations", len(snap.Quotations)),
		zap.Int("scores", len(snap.Scores)),
		zap.Int("merged", len(rows)),
	}
	if len(rows) == 0 {
		s.logger.Warn("join produced no merged quotes", fields...)
	}

	gen, err := s.store.ReplaceMergedQuotes(ctx, runID, rows)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.MergedQuotes.Set(float64(len(rows)))
	}

	s.logger.Info("merged quotes published", append(fields, zap.Uint("generation", gen))...)
	return &MergeResult{Generation: gen, Rows: len(rows)}, nil
}
