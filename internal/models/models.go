// Package models holds the gorm models of the quoting workflow: the ingested
// records (requests, suppliers, RFQs, quotations, scores) and the derived
// snapshots rebuilt by the pipeline (merged and selected quotes).
package models

// All returns every model in migration order.
func All() []any {
	return []any{
		&ClientRequest{},
		&Supplier{},
		&RFQSent{},
		&RFQDetails{},
		&QuotationResponse{},
		&QuoteScore{},
		&MergedQuote{},
		&SelectedQuote{},
		&SnapshotHead{},
		&PipelineRun{},
	}
}
