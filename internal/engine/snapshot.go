// Package engine holds the pure computations of the quote pipeline: joining
// raw records into merged quotes, normalizing scores, picking one quote per
// client request and checking the selection before it is persisted.
// Nothing here touches the database; callers materialize a Snapshot first.
package engine

import (
	"sort"

	"github.com/diewo77/quote-optimizer/internal/models"
)

// Snapshot is an in-memory copy of the ingested tables.
type Snapshot struct {
	Requests   []models.ClientRequest
	Suppliers  []models.Supplier
	RFQs       []models.RFQSent
	Details    []models.RFQDetails
	Quotations []models.QuotationResponse
	Scores     []models.QuoteScore
}

type snapshotIndex struct {
	requests        map[uint]*models.ClientRequest
	suppliers       map[uint]*models.Supplier
	rfqs            map[uint]*models.RFQSent
	details         map[uint]*models.RFQDetails
	quotationsByRFQ map[uint][]*models.QuotationResponse
	scores          map[uint][]*models.QuoteScore
}

func (s *Snapshot) index() *snapshotIndex {
	idx := &snapshotIndex{
		requests:        make(map[uint]*models.ClientRequest, len(s.Requests)),
		suppliers:       make(map[uint]*models.Supplier, len(s.Suppliers)),
		rfqs:            make(map[uint]*models.RFQSent, len(s.RFQs)),
		details:         make(map[uint]*models.RFQDetails, len(s.Details)),
		quotationsByRFQ: make(map[uint][]*models.QuotationResponse, len(s.Quotations)),
		scores:          make(map[uint][]*models.QuoteScore, len(s.Scores)),
	}
	for i := range s.Requests {
		idx.requests[s.Requests[i].ID] = &s.Requests[i]
	}
	for i := range s.Suppliers {
		idx.suppliers[s.Suppliers[i].ID] = &s.Suppliers[i]
	}
	for i := range s.RFQs {
		idx.rfqs[s.RFQs[i].ID] = &s.RFQs[i]
	}
	for i := range s.Details {
		idx.details[s.Details[i].RFQID] = &s.Details[i]
	}
	for i := range s.Quotations {
		q := &s.Quotations[i]
		idx.quotationsByRFQ[q.RFQID] = append(idx.quotationsByRFQ[q.RFQID], q)
	}
	for i := range s.Scores {
		sc := &s.Scores[i]
		idx.scores[sc.QuotationResponseID] = append(idx.scores[sc.QuotationResponseID], sc)
	}
	return idx
}

// sortedRFQs returns pointers to the RFQs ordered by id.
func (s *Snapshot) sortedRFQs() []*models.RFQSent {
	out := make([]*models.RFQSent, len(s.RFQs))
	for i := range s.RFQs {
		out[i] = &s.RFQs[i]
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
