package engine

import (
	"sort"

	"github.com/diewo77/quote-optimizer/internal/features"
	"github.com/diewo77/quote-optimizer/internal/models"
)

// ScoringCandidates returns the quotations that still lack a win probability,
// ordered by id, with whatever joined rows exist for them. Rows that cannot
// be joined are still returned so feature derivation can report them.
func ScoringCandidates(s *Snapshot) []features.Inputs {
	idx := s.index()

	quotations := make([]*models.QuotationResponse, len(s.Quotations))
	for i := range s.Quotations {
		quotations[i] = &s.Quotations[i]
	}
	sort.Slice(quotations, func(i, j int) bool { return quotations[i].ID < quotations[j].ID })

	var out []features.Inputs
	for _, q := range quotations {
		if scored(idx.scores[q.ID]) {
			continue
		}
		in := features.Inputs{Quotation: q}
		if rfq, ok := idx.rfqs[q.RFQID]; ok {
			in.RFQ = rfq
			in.Details = idx.details[rfq.ID]
			in.Request = idx.requests[rfq.ClientRequestID]
			in.Supplier = idx.suppliers[rfq.SupplierID]
		}
		out = append(out, in)
	}
	return out
}

func scored(scores []*models.QuoteScore) bool {
	for _, s := range scores {
		if s.IsScored() {
			return true
		}
	}
	return false
}
