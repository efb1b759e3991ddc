package engine

import (
	"time"

	"github.com/diewo77/quote-optimizer/internal/models"
)

var sentAt = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func f64(v float64) *float64 { return &v }

// fixture has two client requests. Request 1 received two scored quotations
// (suppliers 1 and 2); request 2 received one quotation that is not scored yet.
func fixture() *Snapshot {
	received := sentAt.Add(6 * time.Hour)
	return &Snapshot{
		Requests: []models.ClientRequest{
			{ID: 1, CustomerID: "CUST-1", ProductType: "mug", Quantity: 100},
			{ID: 2, CustomerID: "CUST-2", ProductType: "poster", Quantity: 10},
		},
		Suppliers: []models.Supplier{
			{ID: 1, Name: "Acme", PerformanceScore: f64(0.9), SupportedProducts: "mug,poster"},
			{ID: 2, Name: "Borealis", PerformanceScore: f64(0.6), SupportedProducts: "mug"},
		},
		RFQs: []models.RFQSent{
			{ID: 12, ClientRequestID: 2, SupplierID: 1, SentAt: sentAt, Status: models.RFQStatusQuoted},
			{ID: 10, ClientRequestID: 1, SupplierID: 1, SentAt: sentAt, Status: models.RFQStatusQuoted},
			{ID: 11, ClientRequestID: 1, SupplierID: 2, SentAt: sentAt, Status: models.RFQStatusQuoted},
		},
		Quotations: []models.QuotationResponse{
			{ID: 100, RFQID: 10, UnitPrice: 4.5, DeliveryDays: 5, ReceivedAt: &received},
			{ID: 101, RFQID: 11, UnitPrice: 4.0, DeliveryDays: 9, ReceivedAt: &received},
			{ID: 102, RFQID: 12, UnitPrice: 1.2, DeliveryDays: 3},
		},
		Scores: []models.QuoteScore{
			{QuotationResponseID: 100, Won: f64(0.8), HeuristicScore: f64(0.9)},
			{QuotationResponseID: 101, Won: f64(0.4), HeuristicScore: f64(0.6)},
			{QuotationResponseID: 102},
		},
	}
}
