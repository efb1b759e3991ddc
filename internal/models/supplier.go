package models

import (
	"strings"
	"time"
)

type Supplier struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	CreatedAt         time.Time `json:"created_at"`
	Name              string    `gorm:"size:100;not null" json:"name"`
	Email             string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PerformanceScore  *float64  `json:"performance_score,omitempty"`
	SupportedProducts string    `gorm:"size:500" json:"supported_products"` // comma separated product types
}

func (Supplier) TableName() string { return "suppliers" }

// ProductTypes returns the supported product types, trimmed and lowercased.
func (s *Supplier) ProductTypes() []string {
	var out []string
	for _, p := range strings.Split(s.SupportedProducts, ",") {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (s *Supplier) Supports(productType string) bool {
	want := strings.ToLower(strings.TrimSpace(productType))
	if want == "" {
		return false
	}
	for _, p := range s.ProductTypes() {
		if p == want {
			return true
		}
	}
	return false
}

// SetProductTypes stores the list in its comma separated column form.
func (s *Supplier) SetProductTypes(types []string) {
	clean := make([]string, 0, len(types))
	for _, t := range types {
		if t = strings.TrimSpace(t); t != "" {
			clean = append(clean, t)
		}
	}
	s.SupportedProducts = strings.Join(clean, ",")
}
