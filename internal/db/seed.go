package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/diewo77/quote-optimizer/internal/models"
	"github.com/diewo77/quote-optimizer/internal/validation"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// Fixture is a YAML description of suppliers, client requests and the
// quotations suppliers answered with.
type Fixture struct {
	Suppliers  []SupplierFixture  `yaml:"suppliers"`
	Requests   []RequestFixture   `yaml:"requests"`
	Quotations []QuotationFixture `yaml:"quotations"`
}

type SupplierFixture struct {
	Name             string   `yaml:"name"`
	Email            string   `yaml:"email"`
	PerformanceScore *float64 `yaml:"performance_score"`
	Products         []string `yaml:"products"`
}

type RequestFixture struct {
	CustomerID     string     `yaml:"customer_id"`
	ProductType    string     `yaml:"product_type"`
	Specifications string     `yaml:"specifications"`
	ColorSpec      string     `yaml:"color_spec"`
	Quantity       int        `yaml:"quantity"`
	Deadline       *time.Time `yaml:"deadline"`
	IsCustom       bool       `yaml:"is_custom"`
}

// QuotationFixture answers the RFQ sent to SupplierEmail for CustomerID.
// ResponseHours, when set, places received_at that long after the RFQ.
type QuotationFixture struct {
	CustomerID    string   `yaml:"customer_id"`
	SupplierEmail string   `yaml:"supplier_email"`
	UnitPrice     float64  `yaml:"unit_price"`
	DeliveryDays  int      `yaml:"delivery_days"`
	ResponseHours *float64 `yaml:"response_hours"`
}

// MaxPerformanceScore bounds a supplier's performance score.
const MaxPerformanceScore = 5

// Validate reports every malformed entry at once, keyed by its path in the
// fixture (suppliers[1].performance_score).
func (fx *Fixture) Validate() error {
	v := validation.Violations{}
	for i, sf := range fx.Suppliers {
		p := fmt.Sprintf("suppliers[%d].", i)
		validation.Required(p+"name", sf.Name, v)
		validation.Required(p+"email", sf.Email, v)
		if sf.PerformanceScore != nil {
			validation.RangeFloat(p+"performance_score", *sf.PerformanceScore, 0, MaxPerformanceScore, v)
		}
	}
	for i, rf := range fx.Requests {
		p := fmt.Sprintf("requests[%d].", i)
		validation.Required(p+"customer_id", rf.CustomerID, v)
		validation.Required(p+"product_type", rf.ProductType, v)
		validation.PositiveInt(p+"quantity", rf.Quantity, v)
	}
	for i, qf := range fx.Quotations {
		p := fmt.Sprintf("quotations[%d].", i)
		validation.Required(p+"customer_id", qf.CustomerID, v)
		validation.Required(p+"supplier_email", qf.SupplierEmail, v)
		validation.PositiveFloat(p+"unit_price", qf.UnitPrice, v)
		validation.NonNegativeFloat(p+"delivery_days", float64(qf.DeliveryDays), v)
	}
	return v.Err()
}

// SeedResult counts the rows created by Seed.
type SeedResult struct {
	Suppliers int
	Requests  int
}

func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var fx Fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if err := fx.Validate(); err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	return &fx, nil
}

// Seed inserts the fixture's suppliers and client requests. Suppliers are
// matched on email and requests on customer id, so seeding twice is a no-op.
func Seed(ctx context.Context, gdb *gorm.DB, fx *Fixture) (*SeedResult, error) {
	if err := fx.Validate(); err != nil {
		return nil, err
	}
	res := &SeedResult{}
	err := gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, sf := range fx.Suppliers {
			var existing models.Supplier
			err := tx.Where("email = ?", sf.Email).First(&existing).Error
			if err == nil {
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			s := models.Supplier{Name: sf.Name, Email: sf.Email, PerformanceScore: sf.PerformanceScore}
			s.SetProductTypes(sf.Products)
			if err := tx.Create(&s).Error; err != nil {
				return fmt.Errorf("create supplier %s: %w", sf.Email, err)
			}
			res.Suppliers++
		}

		for _, rf := range fx.Requests {
			var existing models.ClientRequest
			err := tx.Where("customer_id = ?", rf.CustomerID).First(&existing).Error
			if err == nil {
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			r := models.ClientRequest{
				CustomerID:     rf.CustomerID,
				ProductType:    rf.ProductType,
				Specifications: rf.Specifications,
				ColorSpec:      rf.ColorSpec,
				Quantity:       rf.Quantity,
				Deadline:       rf.Deadline,
				IsCustom:       rf.IsCustom,
			}
			if err := tx.Create(&r).Error; err != nil {
				return fmt.Errorf("create client request %s: %w", rf.CustomerID, err)
			}
			res.Requests++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
