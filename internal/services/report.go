package services

import (
	"context"

	"github.com/diewo77/quote-optimizer/internal/apperrors"
	"github.com/diewo77/quote-optimizer/internal/models"
	"github.com/diewo77/quote-optimizer/internal/store"
)

// SupplierPerformance aggregates a supplier's share of the current selection.
type SupplierPerformance struct {
	SupplierID        uint     `json:"supplier_id"`
	SupplierName      string   `json:"supplier_name"`
	QuotesSelected    int      `json:"quotes_selected"`
	AvgProfitMargin   float64  `json:"avg_profit_margin"`
	AvgHeuristicScore *float64 `json:"avg_heuristic_score"`
	AvgFinalScore     float64  `json:"avg_final_score"`
	TotalSellingPrice float64  `json:"total_selling_price"`
}

type ReportService struct {
	store *store.Store
}

func NewReportService(st *store.Store) *ReportService {
	return &ReportService{store: st}
}

// SupplierPerformance lists suppliers with at least one selected quote,
// most selected first.
func (s *ReportService) SupplierPerformance(ctx context.Context) ([]SupplierPerformance, error) {
	var rows []SupplierPerformance
	err := s.store.DB().WithContext(ctx).
		Model(&models.SelectedQuote{}).
		Scopes(s.store.CurrentSelectedScope()).
		Select(`supplier_id,
			MAX(supplier_name) AS supplier_name,
			COUNT(*) AS quotes_selected,
			AVG(profit_margin) AS avg_profit_margin,
			AVG(heuristic_score) AS avg_heuristic_score,
			AVG(final_score) AS avg_final_score,
			SUM(selling_price) AS total_selling_price`).
		Group("supplier_id").
		Order("quotes_selected DESC, supplier_id").
		Scan(&rows).Error
	if err != nil {
		return nil, &apperrors.PersistenceError{Op: "report", Table: models.SelectedQuotesSnapshot, Err: err}
	}
	return rows, nil
}

// Selected returns the visible selected quote view.
func (s *ReportService) Selected(ctx context.Context) ([]models.SelectedQuote, error) {
	return s.store.CurrentSelectedQuotes(ctx)
}
