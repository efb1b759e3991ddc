package models

import (
	"strings"
	"time"
)

// ClientRequest is a customer's request for a quotation on a product.
type ClientRequest struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time  `json:"created_at"`
	CustomerID     string     `gorm:"size:64;not null;uniqueIndex" json:"customer_id"`
	ProductType    string     `gorm:"size:100;not null;index" json:"product_type"`
	Specifications string     `gorm:"size:255" json:"specifications,omitempty"`
	ColorSpec      string     `gorm:"size:50" json:"color_spec,omitempty"`
	Quantity       int        `gorm:"not null" json:"quantity"`
	Deadline       *time.Time `json:"deadline,omitempty"`
	IsCustom       bool       `gorm:"not null;default:false" json:"is_custom"`
}

func (ClientRequest) TableName() string { return "client_requests" }

// IsCustomOrder reports whether the request asks for a custom product,
// either flagged explicitly or through its product type.
func (r *ClientRequest) IsCustomOrder() bool {
	return r.IsCustom || strings.Contains(strings.ToLower(r.ProductType), "custom")
}
