package models

import "time"

// QuotationResponse is a supplier's answer to an RFQ. An RFQ holds at most
// one quotation.
type QuotationResponse struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	RFQID        uint       `gorm:"column:rfq_id;not null;uniqueIndex" json:"rfq_id"`
	UnitPrice    float64    `gorm:"not null" json:"unit_price"`
	DeliveryDays int        `gorm:"not null" json:"delivery_days"`
	ReceivedAt   *time.Time `json:"received_at,omitempty"`
}

func (QuotationResponse) TableName() string { return "quotation_responses" }

// QuoteScore holds the predicted win probability of a quotation. Won stays
// nil until the scorer has run and is never overwritten afterwards.
type QuoteScore struct {
	QuotationResponseID uint       `gorm:"primaryKey;autoIncrement:false" json:"quotation_response_id"`
	HeuristicScore      *float64   `json:"heuristic_score,omitempty"`
	Won                 *float64   `json:"won,omitempty"`
	ScoredAt            *time.Time `json:"scored_at,omitempty"`
	ModelVersion        string     `gorm:"size:64" json:"model_version,omitempty"`
}

func (QuoteScore) TableName() string { return "quote_scores" }

func (s *QuoteScore) IsScored() bool {
	return s.Won != nil
}
