package engine

import (
	"sort"

	"github.com/diewo77/quote-optimizer/internal/models"
	"github.com/diewo77/quote-optimizer/internal/validation"
)

// WeightTolerance is the allowed distance between the weight sum and 1.
const WeightTolerance = 1e-9

// Weights balance win probability against profit margin in the final score.
type Weights struct {
	WinProbability float64
	ProfitMargin   float64
}

func DefaultWeights() Weights {
	return Weights{WinProbability: 0.7, ProfitMargin: 0.3}
}

// Validate requires non-negative weights summing to 1.
func (w Weights) Validate() error {
	v := validation.Violations{}
	validation.NonNegativeFloat("selection.win_weight", w.WinProbability, v)
	validation.NonNegativeFloat("selection.margin_weight", w.ProfitMargin, v)
	if v.Empty() {
		validation.SumTo("selection.weights", w.WinProbability+w.ProfitMargin, 1, WeightTolerance, v)
	}
	return v.Err()
}

func (w Weights) Score(q NormalizedQuote) float64 {
	return w.WinProbability*q.WinProbabilityNorm + w.ProfitMargin*q.ProfitMarginNorm
}

// SelectBest keeps the highest scoring quote of every client request. Equal
// scores go to the lowest supplier id, then the lowest quotation id, so the
// result does not depend on input order. Output is ordered by client request.
func SelectBest(rows []NormalizedQuote, w Weights) []models.SelectedQuote {
	scores := make([]float64, len(rows))
	for i := range rows {
		scores[i] = w.Score(rows[i])
	}

	best := make(map[uint]int)
	for i := range rows {
		id := rows[i].ClientRequestID
		cur, seen := best[id]
		if !seen || beats(rows[i], scores[i], rows[cur], scores[cur]) {
			best[id] = i
		}
	}

	ids := make([]uint, 0, len(best))
	for id := range best {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]models.SelectedQuote, 0, len(ids))
	for _, id := range ids {
		i := best[id]
		out = append(out, selectedQuote(rows[i], scores[i]))
	}
	return out
}

func beats(a NormalizedQuote, sa float64, b NormalizedQuote, sb float64) bool {
	if sa != sb {
		return sa > sb
	}
	if a.SupplierID != b.SupplierID {
		return a.SupplierID < b.SupplierID
	}
	return a.QuotationResponseID < b.QuotationResponseID
}

func selectedQuote(q NormalizedQuote, score float64) models.SelectedQuote {
	return models.SelectedQuote{
		ClientRequestID:          q.ClientRequestID,
		CustomerID:               q.CustomerID,
		SupplierID:               q.SupplierID,
		SupplierName:             q.SupplierName,
		SupplierPerformanceScore: q.SupplierPerformanceScore,
		QuotationResponseID:      q.QuotationResponseID,
		UnitPrice:                q.UnitPrice,
		SellingPrice:             q.SellingPrice,
		ProfitMargin:             q.ProfitMargin,
		FinalScore:               score,
		DeliveryDays:             q.DeliveryDays,
		RFQSentAt:                q.RFQSentAt,
		HeuristicScore:           q.HeuristicScore,
	}
}
