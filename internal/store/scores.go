package store

import (
	"context"

	"github.com/diewo77/quote-optimizer/internal/apperrors"
	"github.com/diewo77/quote-optimizer/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ScoreUpdate is a win probability computed for one quotation.
type ScoreUpdate struct {
	QuotationResponseID uint
	Won                 float64
	HeuristicScore      *float64
	ModelVersion        string
}

// ApplyScores writes win probabilities in one transaction and returns how
// many rows changed. A quotation that already has a probability is left
// untouched, so re-applying the same updates changes nothing.
func (s *Store) ApplyScores(ctx context.Context, updates []ScoreUpdate) (int, error) {
	now := s.now()
	var changed int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			row := models.QuoteScore{QuotationResponseID: u.QuotationResponseID, HeuristicScore: u.HeuristicScore}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
				return err
			}

			res := tx.Model(&models.QuoteScore{}).
				Where("quotation_response_id = ? AND won IS NULL", u.QuotationResponseID).
				Updates(map[string]any{
					"won":             u.Won,
					"scored_at":       now,
					"model_version":   u.ModelVersion,
					"heuristic_score": gorm.Expr("COALESCE(heuristic_score, ?)", u.HeuristicScore),
				})
			if res.Error != nil {
				return res.Error
			}
			changed += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, &apperrors.PersistenceError{Op: "apply scores", Table: "quote_scores", Err: err}
	}
	return int(changed), nil
}
