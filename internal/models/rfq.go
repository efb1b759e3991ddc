package models

import "time"

// RFQStatus represents the status of a request for quotation.
type RFQStatus string

const (
	RFQStatusSent   RFQStatus = "sent"
	RFQStatusQuoted RFQStatus = "quoted"
)

// RFQSent records one request for quotation sent to one supplier for one
// client request. A (client request, supplier) pair is sent at most once.
type RFQSent struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ClientRequestID uint      `gorm:"not null;uniqueIndex:idx_rfq_pair" json:"client_request_id"`
	SupplierID      uint      `gorm:"not null;uniqueIndex:idx_rfq_pair;index" json:"supplier_id"`
	SentAt          time.Time `gorm:"not null" json:"sent_at"`
	Status          RFQStatus `gorm:"size:20;not null;default:'sent'" json:"status"`
}

func (RFQSent) TableName() string { return "rfq_sent" }

// CanReceiveQuotation returns true while the supplier has not answered yet.
func (r *RFQSent) CanReceiveQuotation() bool {
	return r.Status == RFQStatusSent
}

// RFQDetails carries the terms attached to an RFQ.
type RFQDetails struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	RFQID            uint       `gorm:"column:rfq_id;not null;uniqueIndex" json:"rfq_id"`
	ExpectedFormat   string     `gorm:"size:50" json:"expected_format,omitempty"`
	PaymentTerms     string     `gorm:"size:100" json:"payment_terms,omitempty"`
	ResponseDeadline *time.Time `json:"response_deadline,omitempty"`
	Notes            string     `gorm:"type:text" json:"notes,omitempty"`
}

func (RFQDetails) TableName() string { return "rfq_details" }
