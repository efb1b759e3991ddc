package engine

import (
	"fmt"
	"sort"

	"github.com/diewo77/quote-optimizer/internal/apperrors"
	"github.com/diewo77/quote-optimizer/internal/models"
)

// JoinQuotes builds one MergedQuote per scored quotation. RFQs whose request,
// supplier or quotation is missing are dropped, as are quotations without a
// win probability. A fan-out on a relation that must be one-to-one returns a
// JoinCardinalityError instead of duplicating rows.
//
// The result is ordered by client request, supplier and quotation id.
func JoinQuotes(s *Snapshot) ([]models.MergedQuote, error) {
	idx := s.index()
	pairs := make(map[[2]uint]uint)
	rows := make([]models.MergedQuote, 0, len(s.Quotations))

	for _, rfq := range s.sortedRFQs() {
		req, ok := idx.requests[rfq.ClientRequestID]
		if !ok {
			continue
		}
		sup, ok := idx.suppliers[rfq.SupplierID]
		if !ok {
			continue
		}
		quotes := idx.quotationsByRFQ[rfq.ID]
		if len(quotes) == 0 {
			continue
		}
		if len(quotes) > 1 {
			return nil, &apperrors.JoinCardinalityError{
				Relation: "quotation_responses per rfq_sent",
				Key:      fmt.Sprintf("rfq_sent=%d", rfq.ID),
				Count:    len(quotes),
			}
		}
		q := quotes[0]

		scores := idx.scores[q.ID]
		if len(scores) > 1 {
			return nil, &apperrors.JoinCardinalityError{
				Relation: "quote_scores per quotation_response",
				Key:      fmt.Sprintf("quotation_response=%d", q.ID),
				Count:    len(scores),
			}
		}
		if len(scores) == 0 || !scores[0].IsScored() {
			continue
		}

		key := [2]uint{req.ID, sup.ID}
		if _, dup := pairs[key]; dup {
			return nil, &apperrors.JoinCardinalityError{
				Relation: "rfq_sent per (client_request, supplier)",
				Key:      fmt.Sprintf("client_request=%d supplier=%d", req.ID, sup.ID),
				Count:    2,
			}
		}
		pairs[key] = rfq.ID

		rows = append(rows, mergedQuote(req, sup, rfq, q, scores[0]))
	}

	sortMerged(rows)
	return rows, nil
}

func mergedQuote(req *models.ClientRequest, sup *models.Supplier, rfq *models.RFQSent, q *models.QuotationResponse, score *models.QuoteScore) models.MergedQuote {
	return models.MergedQuote{
		ClientRequestID:          req.ID,
		CustomerID:               req.CustomerID,
		SupplierID:               sup.ID,
		SupplierName:             sup.Name,
		SupplierPerformanceScore: sup.PerformanceScore,
		QuotationResponseID:      q.ID,
		UnitPrice:                q.UnitPrice,
		DeliveryDays:             q.DeliveryDays,
		RFQSentAt:                rfq.SentAt,
		QuotationReceivedAt:      q.ReceivedAt,
		WinProbability:           *score.Won,
		HeuristicScore:           score.HeuristicScore,
	}
}

func sortMerged(rows []models.MergedQuote) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.ClientRequestID != b.ClientRequestID {
			return a.ClientRequestID < b.ClientRequestID
		}
		if a.SupplierID != b.SupplierID {
			return a.SupplierID < b.SupplierID
		}
		return a.QuotationResponseID < b.QuotationResponseID
	})
}

// RequestIDs returns the distinct client request ids of rows, ascending.
func RequestIDs(rows []models.MergedQuote) []uint {
	seen := make(map[uint]struct{}, len(rows))
	ids := make([]uint, 0, len(rows))
	for _, r := range rows {
		if _, ok := seen[r.ClientRequestID]; ok {
			continue
		}
		seen[r.ClientRequestID] = struct{}{}
		ids = append(ids, r.ClientRequestID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
