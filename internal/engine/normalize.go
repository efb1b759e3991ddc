package engine

import (
	"github.com/diewo77/quote-optimizer/internal/models"
	"github.com/diewo77/quote-optimizer/internal/validation"
)

// MarkupRange bounds the markup applied on top of a supplier's unit price.
// The markup grows linearly with the normalized win probability.
type MarkupRange struct {
	Min float64
	Max float64
}

func DefaultMarkup() MarkupRange {
	return MarkupRange{Min: 1.05, Max: 1.20}
}

func (m MarkupRange) Validate() error {
	v := validation.Violations{}
	validation.MinFloat("selection.min_markup", m.Min, 1, v)
	validation.MinFloat("selection.max_markup", m.Max, m.Min, v)
	return v.Err()
}

// At returns the markup for a normalized win probability in [0,1].
func (m MarkupRange) At(winNorm float64) float64 {
	return m.Min + winNorm*(m.Max-m.Min)
}

// NormalizedQuote is a merged quote enriched with its batch-relative scores.
type NormalizedQuote struct {
	models.MergedQuote
	WinProbabilityNorm float64
	Markup             float64
	SellingPrice       float64
	ProfitMargin       float64
	ProfitMarginNorm   float64
}

// MinMax rescales values onto [0,1]. When every value is equal the range is
// degenerate and every output is 0.
func MinMax(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	span := hi - lo
	if span == 0 {
		return out
	}
	for i, v := range values {
		out[i] = clamp01((v - lo) / span)
	}
	return out
}

// ProfitMargin returns (selling - unit) / selling, or 0 for a zero selling price.
func ProfitMargin(unitPrice, sellingPrice float64) float64 {
	if sellingPrice == 0 {
		return 0
	}
	return (sellingPrice - unitPrice) / sellingPrice
}

// Normalize derives selling price and profit margin for every row and
// normalizes win probability and margin across the whole batch.
func Normalize(rows []models.MergedQuote, markup MarkupRange) []NormalizedQuote {
	wins := make([]float64, len(rows))
	for i, r := range rows {
		wins[i] = r.WinProbability
	}
	winNorm := MinMax(wins)

	out := make([]NormalizedQuote, len(rows))
	margins := make([]float64, len(rows))
	for i, r := range rows {
		m := markup.At(winNorm[i])
		selling := r.UnitPrice * m
		out[i] = NormalizedQuote{
			MergedQuote:        r,
			WinProbabilityNorm: winNorm[i],
			Markup:             m,
			SellingPrice:       selling,
			ProfitMargin:       ProfitMargin(r.UnitPrice, selling),
		}
		margins[i] = out[i].ProfitMargin
	}

	marginNorm := MinMax(margins)
	for i := range out {
		out[i].ProfitMarginNorm = marginNorm[i]
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
