// Package features derives the model input vector of a quotation.
//
// The contract is fixed and ordered; the scorer artifact is checked against
// it when loaded.
package features

import (
	"math"
	"time"

	"github.com/diewo77/quote-optimizer/internal/apperrors"
	"github.com/diewo77/quote-optimizer/internal/models"
)

// Feature positions in a Vector.
const (
	UnitPrice = iota
	DeliveryDays
	PerformanceScore
	ResponseTime
	RFQComplexity
	IsUrgent
	IsCustom
	Count
)

// Names lists the feature names in vector order.
var Names = [Count]string{
	"unit_price",
	"delivery_days",
	"performance_score",
	"response_time",
	"rfq_complexity_score",
	"is_urgent",
	"is_custom",
}

// UrgentWithinDays is the largest deadline distance, in whole days, that
// still counts as urgent.
const UrgentWithinDays = 2

type Vector [Count]float64

// Index returns the position of name, or -1.
func Index(name string) int {
	for i, n := range Names {
		if n == name {
			return i
		}
	}
	return -1
}

// IsBinary reports whether the feature at position i only takes 0 or 1.
func IsBinary(i int) bool {
	return i == IsUrgent || i == IsCustom
}

// Inputs are the joined rows a vector is derived from. Details is optional.
type Inputs struct {
	Quotation *models.QuotationResponse
	RFQ       *models.RFQSent
	Details   *models.RFQDetails
	Request   *models.ClientRequest
	Supplier  *models.Supplier
}

// Fill records a feature that was set to 0 because its source value is absent.
type Fill struct {
	Feature string
	Reason  string
}

// Derive builds the feature vector. Missing scalar values are filled with 0
// and reported as fills; a missing joined row makes the vector underivable
// and returns a FeatureContractError.
func Derive(in Inputs) (Vector, []Fill, error) {
	var v Vector
	if in.Quotation == nil {
		return v, nil, &apperrors.FeatureContractError{Feature: Names[UnitPrice], Reason: "quotation row missing"}
	}
	id := in.Quotation.ID
	switch {
	case in.RFQ == nil:
		return v, nil, &apperrors.FeatureContractError{QuotationResponseID: id, Feature: Names[ResponseTime], Reason: "rfq_sent row missing"}
	case in.RFQ.SentAt.IsZero():
		return v, nil, &apperrors.FeatureContractError{QuotationResponseID: id, Feature: Names[ResponseTime], Reason: "rfq sent_at unset"}
	case in.Supplier == nil:
		return v, nil, &apperrors.FeatureContractError{QuotationResponseID: id, Feature: Names[PerformanceScore], Reason: "supplier row missing"}
	case in.Request == nil:
		return v, nil, &apperrors.FeatureContractError{QuotationResponseID: id, Feature: Names[RFQComplexity], Reason: "client_request row missing"}
	}

	var fills []Fill
	fill := func(feature int, reason string) {
		fills = append(fills, Fill{Feature: Names[feature], Reason: reason})
	}

	v[UnitPrice] = in.Quotation.UnitPrice
	v[DeliveryDays] = float64(in.Quotation.DeliveryDays)

	if in.Supplier.PerformanceScore != nil {
		v[PerformanceScore] = *in.Supplier.PerformanceScore
	} else {
		fill(PerformanceScore, "supplier performance score is null")
	}

	if in.Quotation.ReceivedAt != nil {
		v[ResponseTime] = ResponseHours(in.RFQ.SentAt, *in.Quotation.ReceivedAt)
	} else {
		fill(ResponseTime, "quotation received_at is null")
	}

	v[RFQComplexity] = ComplexityScore(in.Request)

	if deadline := urgencyDeadline(in); deadline != nil {
		v[IsUrgent] = boolFeature(Urgent(in.RFQ.SentAt, *deadline))
	} else {
		fill(IsUrgent, "no response deadline on rfq details or client request")
	}

	v[IsCustom] = boolFeature(in.Request.IsCustomOrder())

	return v, fills, nil
}

// ResponseHours is the time between sending the RFQ and receiving the quotation.
func ResponseHours(sentAt, receivedAt time.Time) float64 {
	return receivedAt.Sub(sentAt).Hours()
}

// ComplexityScore grades a request by quantity (1 below 50, 2 below 200,
// 3 otherwise) plus one for custom orders.
func ComplexityScore(r *models.ClientRequest) float64 {
	score := 3.0
	switch {
	case r.Quantity < 50:
		score = 1
	case r.Quantity < 200:
		score = 2
	}
	if r.IsCustomOrder() {
		score++
	}
	return score
}

// Urgent reports whether the deadline falls within UrgentWithinDays whole
// days of sending the RFQ.
func Urgent(sentAt, deadline time.Time) bool {
	days := math.Floor(deadline.Sub(sentAt).Hours() / 24)
	return days <= UrgentWithinDays
}

func urgencyDeadline(in Inputs) *time.Time {
	if in.Details != nil && in.Details.ResponseDeadline != nil {
		return in.Details.ResponseDeadline
	}
	return in.Request.Deadline
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
