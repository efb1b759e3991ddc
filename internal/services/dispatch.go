package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diewo77/quote-optimizer/internal/apperrors"
	"github.com/diewo77/quote-optimizer/internal/db"
	"github.com/diewo77/quote-optimizer/internal/models"
	"github.com/diewo77/quote-optimizer/internal/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultResponseWindow = 7 * 24 * time.Hour
	DefaultExpectedFormat = "PDF"
	DefaultPaymentTerms   = "Net 30"
)

// DispatchService sends RFQs to suppliers and records their quotations,
// keeping the rfq_sent status in step with quotation_responses.
type DispatchService struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time

	ResponseWindow time.Duration
	ExpectedFormat string
	PaymentTerms   string
}

func NewDispatchService(gdb *gorm.DB, logger *zap.Logger) *DispatchService {
	return &DispatchService{
		db:             gdb,
		logger:         logger.Named("dispatch"),
		now:            time.Now,
		ResponseWindow: DefaultResponseWindow,
		ExpectedFormat: DefaultExpectedFormat,
		PaymentTerms:   DefaultPaymentTerms,
	}
}

// SendRFQs creates an RFQ for every (request, supplier) pair where the
// supplier supports the requested product type. Pairs that already have an
// RFQ are skipped, so the call can be repeated. It returns the number of
// RFQs created.
func (s *DispatchService) SendRFQs(ctx context.Context) (int, error) {
	var requests []models.ClientRequest
	var suppliers []models.Supplier
	created := 0

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Order("id").Find(&requests).Error; err != nil {
			return err
		}
		if err := tx.Order("id").Find(&suppliers).Error; err != nil {
			return err
		}

		var existing []models.RFQSent
		if err := tx.Select("client_request_id", "supplier_id").Find(&existing).Error; err != nil {
			return err
		}
		sent := make(map[[2]uint]bool, len(existing))
		for _, r := range existing {
			sent[[2]uint{r.ClientRequestID, r.SupplierID}] = true
		}

		now := s.now().UTC()
		for i := range requests {
			req := &requests[i]
			for j := range suppliers {
				sup := &suppliers[j]
				if !sup.Supports(req.ProductType) || sent[[2]uint{req.ID, sup.ID}] {
					continue
				}
				if _, err := s.createRFQ(tx, req, sup, now); err != nil {
					return err
				}
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("rfqs dispatched",
		zap.Int("client_requests", len(requests)),
		zap.Int("suppliers", len(suppliers)),
		zap.Int("created", created))
	return created, nil
}

// SendRFQ sends one RFQ to one supplier. Unlike SendRFQs it reports a
// supplier that does not carry the requested product type with
// ErrUnsupportedProduct. An RFQ already sent for the pair is returned as is.
func (s *DispatchService) SendRFQ(ctx context.Context, requestID, supplierID uint) (*models.RFQSent, error) {
	var rfq *models.RFQSent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req models.ClientRequest
		if err := tx.First(&req, requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("client request %d: %w", requestID, apperrors.ErrNotFound)
			}
			return err
		}
		var sup models.Supplier
		if err := tx.First(&sup, supplierID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("supplier %d: %w", supplierID, apperrors.ErrNotFound)
			}
			return err
		}
		if !sup.Supports(req.ProductType) {
			return fmt.Errorf("supplier %q, product %q: %w", sup.Name, req.ProductType, apperrors.ErrUnsupportedProduct)
		}

		var existing []models.RFQSent
		if err := tx.Where("client_request_id = ? AND supplier_id = ?", req.ID, sup.ID).Limit(1).Find(&existing).Error; err != nil {
			return err
		}
		if len(existing) > 0 {
			rfq = &existing[0]
			return nil
		}

		created, err := s.createRFQ(tx, &req, &sup, s.now().UTC())
		rfq = created
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("rfq sent", zap.Uint("client_request_id", requestID), zap.Uint("supplier_id", supplierID), zap.Uint("rfq_id", rfq.ID))
	return rfq, nil
}

// createRFQ writes the RFQ and its details.
func (s *DispatchService) createRFQ(tx *gorm.DB, req *models.ClientRequest, sup *models.Supplier, now time.Time) (*models.RFQSent, error) {
	rfq := &models.RFQSent{ClientRequestID: req.ID, SupplierID: sup.ID, SentAt: now, Status: models.RFQStatusSent}
	if err := tx.Create(rfq).Error; err != nil {
		return nil, fmt.Errorf("create rfq for request %d supplier %d: %w", req.ID, sup.ID, err)
	}
	deadline := s.responseDeadline(now, req)
	details := models.RFQDetails{
		RFQID:            rfq.ID,
		ExpectedFormat:   s.ExpectedFormat,
		PaymentTerms:     s.PaymentTerms,
		ResponseDeadline: &deadline,
		Notes:            req.Specifications,
	}
	if err := tx.Create(&details).Error; err != nil {
		return nil, fmt.Errorf("create rfq details for rfq %d: %w", rfq.ID, err)
	}
	return rfq, nil
}

// responseDeadline is the end of the response window, pulled in to the
// request's own deadline when that comes first.
func (s *DispatchService) responseDeadline(sentAt time.Time, req *models.ClientRequest) time.Time {
	deadline := sentAt.Add(s.ResponseWindow)
	if req.Deadline != nil && req.Deadline.Before(deadline) {
		deadline = req.Deadline.UTC()
	}
	return deadline
}

// RecordQuotation stores the supplier's answer to an RFQ and marks the RFQ
// quoted. An RFQ accepts a single quotation.
func (s *DispatchService) RecordQuotation(ctx context.Context, rfqID uint, unitPrice float64, deliveryDays int, receivedAt time.Time) (*models.QuotationResponse, error) {
	v := validation.Violations{}
	validation.PositiveFloat("unit_price", unitPrice, v)
	validation.NonNegativeFloat("delivery_days", float64(deliveryDays), v)
	if err := v.Err(); err != nil {
		return nil, err
	}

	q := &models.QuotationResponse{RFQID: rfqID, UnitPrice: unitPrice, DeliveryDays: deliveryDays}
	if !receivedAt.IsZero() {
		at := receivedAt.UTC()
		q.ReceivedAt = &at
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rfq models.RFQSent
		if err := tx.First(&rfq, rfqID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("rfq %d: %w", rfqID, apperrors.ErrNotFound)
			}
			return err
		}

		var count int64
		if err := tx.Model(&models.QuotationResponse{}).Where("rfq_id = ?", rfqID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("rfq %d: %w", rfqID, apperrors.ErrDuplicateQuotation)
		}
		if !rfq.CanReceiveQuotation() {
			return fmt.Errorf("rfq %d is %s: %w", rfqID, rfq.Status, apperrors.ErrRFQNotSent)
		}

		if err := tx.Create(q).Error; err != nil {
			return err
		}
		res := tx.Model(&models.RFQSent{}).
			Where("id = ? AND status = ?", rfqID, models.RFQStatusSent).
			Update("status", models.RFQStatusQuoted)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return fmt.Errorf("rfq %d: %w", rfqID, apperrors.ErrRFQNotSent)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("quotation recorded", zap.Uint("rfq_id", rfqID), zap.Uint("quotation_response_id", q.ID))
	return q, nil
}

// FindRFQ looks an RFQ up by the customer reference of its request and the
// supplier's email.
func (s *DispatchService) FindRFQ(ctx context.Context, customerID, supplierEmail string) (*models.RFQSent, error) {
	var rfq models.RFQSent
	err := s.db.WithContext(ctx).
		Joins("JOIN client_requests ON client_requests.id = rfq_sent.client_request_id").
		Joins("JOIN suppliers ON suppliers.id = rfq_sent.supplier_id").
		Where("client_requests.customer_id = ? AND suppliers.email = ?", customerID, supplierEmail).
		First(&rfq).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("rfq %s/%s: %w", customerID, supplierEmail, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &rfq, nil
}

// ImportResult counts what ImportQuotations did.
type ImportResult struct {
	Recorded   int
	Duplicates int
}

// ImportQuotations records fixture quotations. Quotations already on file
// are counted as duplicates and skipped; any other failure stops the import.
func (s *DispatchService) ImportQuotations(ctx context.Context, quotations []db.QuotationFixture) (*ImportResult, error) {
	res := &ImportResult{}
	for _, qf := range quotations {
		rfq, err := s.FindRFQ(ctx, qf.CustomerID, qf.SupplierEmail)
		if err != nil {
			return res, err
		}
		var receivedAt time.Time
		if qf.ResponseHours != nil {
			receivedAt = rfq.SentAt.Add(time.Duration(*qf.ResponseHours * float64(time.Hour)))
		}
		_, err = s.RecordQuotation(ctx, rfq.ID, qf.UnitPrice, qf.DeliveryDays, receivedAt)
		switch {
		case errors.Is(err, apperrors.ErrDuplicateQuotation):
			res.Duplicates++
		case err != nil:
			return res, fmt.Errorf("quotation %s/%s: %w", qf.CustomerID, qf.SupplierEmail, err)
		default:
			res.Recorded++
		}
	}
	s.logger.Info("quotations imported", zap.Int("recorded", res.Recorded), zap.Int("duplicates", res.Duplicates))
	return res, nil
}
