package validation

import (
	"math"
	"strings"

	"github.com/diewo77/quote-optimizer/internal/apperrors"
)

// Violations maps a field path to a machine readable code.
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Err returns nil when no violation was recorded.
func (v Violations) Err() error {
	if v.Empty() {
		return nil
	}
	return &apperrors.ConfigurationError{Violations: v}
}

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

func PositiveFloat(field string, val float64, v Violations) {
	if val <= 0 || math.IsNaN(val) {
		v[field] = "must_be_positive"
	}
}

func NonNegativeFloat(field string, val float64, v Violations) {
	if val < 0 || math.IsNaN(val) {
		v[field] = "must_be_non_negative"
	}
}

func RangeFloat(field string, val, minVal, maxVal float64, v Violations) {
	if val < minVal || val > maxVal || math.IsNaN(val) {
		v[field] = "out_of_range"
	}
}

func MinFloat(field string, val, minVal float64, v Violations) {
	if val < minVal || math.IsNaN(val) {
		v[field] = "below_minimum"
	}
}

func PositiveInt(field string, val int, v Violations) {
	if val <= 0 {
		v[field] = "must_be_positive"
	}
}

// SumTo records a violation on field when sum differs from want by more than tol.
func SumTo(field string, sum, want, tol float64, v Violations) {
	if math.Abs(sum-want) > tol || math.IsNaN(sum) {
		v[field] = "must_sum_to_one"
	}
}

func OneOf(field, value string, allowed []string, v Violations) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v[field] = "invalid_choice"
}
