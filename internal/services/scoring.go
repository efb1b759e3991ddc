package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/diewo77/quote-optimizer/internal/apperrors"
	"github.com/diewo77/quote-optimizer/internal/engine"
	"github.com/diewo77/quote-optimizer/internal/features"
	"github.com/diewo77/quote-optimizer/internal/metrics"
	"github.com/diewo77/quote-optimizer/internal/scorer"
	"github.com/diewo77/quote-optimizer/internal/store"
	"go.uber.org/zap"
)

// ScoreResult summarizes one scoring pass.
type ScoreResult struct {
	Candidates int
	Scored     int
	Skipped    []*apperrors.FeatureContractError
}

type ScoringService struct {
	store   *store.Store
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewScoringService(st *store.Store, m *metrics.Metrics, logger *zap.Logger) *ScoringService {
	return &ScoringService{store: st, metrics: m, logger: logger.Named("scoring")}
}

// Apply scores every quotation that has no win probability yet. Quotations
// whose features cannot be derived are reported in Skipped and stay
// unscored. The scorer output is checked as a whole before anything is
// written, so a bad batch leaves the store untouched.
func (s *ScoringService) Apply(ctx context.Context, sc scorer.Scorer) (*ScoreResult, error) {
	if sc == nil {
		return nil, &apperrors.ConfigurationError{Violations: map[string]string{"scoring.model_path": "required"}}
	}

	snap, err := s.store.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	candidates := engine.ScoringCandidates(snap)
	res := &ScoreResult{Candidates: len(candidates)}

	vectors := make([]features.Vector, 0, len(candidates))
	updates := make([]store.ScoreUpdate, 0, len(candidates))
	for _, in := range candidates {
		v, fills, err := features.Derive(in)
		if err != nil {
			var fce *apperrors.FeatureContractError
			if !errors.As(err, &fce) {
				return nil, err
			}
			s.logger.Warn("quotation left unscored",
				zap.Uint("quotation_response_id", fce.QuotationResponseID),
				zap.String("feature", fce.Feature),
				zap.String("reason", fce.Reason))
			res.Skipped = append(res.Skipped, fce)
			continue
		}
		for _, f := range fills {
			s.logger.Warn("feature filled with 0",
				zap.Uint("quotation_response_id", in.Quotation.ID),
				zap.String("feature", f.Feature),
				zap.String("reason", f.Reason))
		}
		vectors = append(vectors, v)
		updates = append(updates, store.ScoreUpdate{
			QuotationResponseID: in.Quotation.ID,
			HeuristicScore:      in.Supplier.PerformanceScore,
			ModelVersion:        scorer.VersionOf(sc),
		})
	}
	if s.metrics != nil {
		s.metrics.FeatureFailures.Add(float64(len(res.Skipped)))
	}

	if len(vectors) == 0 {
		s.logger.Info("nothing to score",
			zap.Int("candidates", res.Candidates),
			zap.Int("skipped", len(res.Skipped)))
		return res, nil
	}

	probs, err := sc.Score(vectors)
	if err != nil {
		return nil, fmt.Errorf("score %d quotations: %w", len(vectors), err)
	}
	if err := checkProbabilities(probs, updates); err != nil {
		return nil, err
	}
	for i := range updates {
		updates[i].Won = probs[i]
	}

	changed, err := s.store.ApplyScores(ctx, updates)
	if err != nil {
		return nil, err
	}
	res.Scored = changed
	if s.metrics != nil {
		s.metrics.QuotationsScored.Add(float64(changed))
	}

	s.logger.Info("scoring pass finished",
		zap.Int("candidates", res.Candidates),
		zap.Int("scored", res.Scored),
		zap.Int("skipped", len(res.Skipped)),
		zap.String("model_version", scorer.VersionOf(sc)))
	return res, nil
}

func checkProbabilities(probs []float64, updates []store.ScoreUpdate) error {
	if len(probs) != len(updates) {
		return fmt.Errorf("%w: %d probabilities for %d quotations", apperrors.ErrScorerOutput, len(probs), len(updates))
	}
	for i, p := range probs {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return fmt.Errorf("%w: quotation %d got %v", apperrors.ErrScorerOutput, updates[i].QuotationResponseID, p)
		}
	}
	return nil
}
