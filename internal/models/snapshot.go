package models

import "time"

// Snapshot names tracked in SnapshotHead.
const (
	MergedQuotesSnapshot   = "merged_quotes"
	SelectedQuotesSnapshot = "selected_quotes"
)

// MergedQuote is one scored quotation joined with its request, supplier and
// RFQ. Rows belong to a generation; only the generation referenced by the
// snapshot head is visible to readers.
type MergedQuote struct {
	ID                       uint       `gorm:"primaryKey" json:"-"`
	Generation               uint       `gorm:"not null;index" json:"-"`
	RunID                    string     `gorm:"size:36" json:"-"`
	ClientRequestID          uint       `gorm:"not null;index" json:"client_request_id"`
	CustomerID               string     `gorm:"size:64" json:"customer_id"`
	SupplierID               uint       `gorm:"not null" json:"supplier_id"`
	SupplierName             string     `gorm:"size:100" json:"supplier_name"`
	SupplierPerformanceScore *float64   `json:"supplier_performance_score"`
	QuotationResponseID      uint       `gorm:"not null" json:"quotation_response_id"`
	UnitPrice                float64    `gorm:"not null" json:"unit_price"`
	DeliveryDays             int        `gorm:"not null" json:"delivery_days"`
	RFQSentAt                time.Time  `gorm:"column:rfq_sent_at" json:"rfq_sent_at"`
	QuotationReceivedAt      *time.Time `json:"quotation_received_at,omitempty"`
	WinProbability           float64    `gorm:"not null" json:"win_probability"`
	HeuristicScore           *float64   `json:"heuristic_score"`
}

func (MergedQuote) TableName() string { return "merged_quotes" }

// SelectedQuote is the winning quotation of one client request.
type SelectedQuote struct {
	ID                       uint      `gorm:"primaryKey" json:"-"`
	Generation               uint      `gorm:"not null;index" json:"-"`
	RunID                    string    `gorm:"size:36" json:"-"`
	ClientRequestID          uint      `gorm:"not null;index" json:"client_request_id"`
	CustomerID               string    `gorm:"size:64" json:"customer_id"`
	SupplierID               uint      `gorm:"not null" json:"supplier_id"`
	SupplierName             string    `gorm:"size:100" json:"supplier_name"`
	SupplierPerformanceScore *float64  `json:"supplier_performance_score"`
	QuotationResponseID      uint      `gorm:"not null" json:"quotation_response_id"`
	UnitPrice                float64   `gorm:"not null" json:"unit_price"`
	SellingPrice             float64   `gorm:"not null" json:"selling_price"`
	ProfitMargin             float64   `gorm:"not null" json:"profit_margin"`
	FinalScore               float64   `gorm:"not null" json:"final_score"`
	DeliveryDays             int       `gorm:"not null" json:"delivery_days"`
	RFQSentAt                time.Time `gorm:"column:rfq_sent_at" json:"rfq_sent_at"`
	HeuristicScore           *float64  `json:"heuristic_score"`
}

func (SelectedQuote) TableName() string { return "selected_quotes" }

// SnapshotHead points a derived table at its visible generation.
type SnapshotHead struct {
	Name       string    `gorm:"primaryKey;size:64"`
	Generation uint      `gorm:"not null"`
	RunID      string    `gorm:"size:36"`
	UpdatedAt  time.Time `gorm:"not null"`
}

func (SnapshotHead) TableName() string { return "snapshot_heads" }
