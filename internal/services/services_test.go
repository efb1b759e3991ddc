package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/diewo77/quote-optimizer/internal/db"
	"github.com/diewo77/quote-optimizer/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var sentAt = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	name = strings.NewReplacer("/", "_", " ", "_").Replace(name)
	gdb, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return gdb
}

func f64(v float64) *float64 { return &v }

func createRequest(t *testing.T, gdb *gorm.DB, customerID string) *models.ClientRequest {
	t.Helper()
	deadline := sentAt.Add(10 * 24 * time.Hour)
	req := &models.ClientRequest{CustomerID: customerID, ProductType: "mug", Quantity: 120, Deadline: &deadline}
	require.NoError(t, gdb.Create(req).Error)
	return req
}

func createSupplier(t *testing.T, gdb *gorm.DB, name string, performance *float64) *models.Supplier {
	t.Helper()
	sup := &models.Supplier{Name: name, Email: name + "@suppliers.test", PerformanceScore: performance, SupportedProducts: "mug,poster"}
	require.NoError(t, gdb.Create(sup).Error)
	return sup
}

// createQuotation answers a fresh RFQ from sup for req.
func createQuotation(t *testing.T, gdb *gorm.DB, req *models.ClientRequest, sup *models.Supplier, price float64) *models.QuotationResponse {
	t.Helper()
	rfq := models.RFQSent{ClientRequestID: req.ID, SupplierID: sup.ID, SentAt: sentAt, Status: models.RFQStatusQuoted}
	require.NoError(t, gdb.Create(&rfq).Error)
	received := sentAt.Add(6 * time.Hour)
	q := &models.QuotationResponse{RFQID: rfq.ID, UnitPrice: price, DeliveryDays: 4, ReceivedAt: &received}
	require.NoError(t, gdb.Create(q).Error)
	return q
}

func setWon(t *testing.T, gdb *gorm.DB, quotationID uint, won float64) {
	t.Helper()
	require.NoError(t, gdb.Create(&models.QuoteScore{QuotationResponseID: quotationID, Won: f64(won)}).Error)
}
