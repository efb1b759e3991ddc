package apperrors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrJoinCardinality    = errors.New("join cardinality violated")
	ErrFeatureContract    = errors.New("feature contract violated")
	ErrConfiguration      = errors.New("invalid configuration")
	ErrSelectionInvariant = errors.New("selection invariant violated")
	ErrPersistence        = errors.New("persistence failed")
	ErrRunInProgress      = errors.New("pipeline run already in progress")
	ErrLockNotHeld        = errors.New("run lock no longer held")
	ErrScorerOutput       = errors.New("scorer returned invalid output")
	ErrRFQNotSent         = errors.New("rfq is not in sent status")
	ErrDuplicateQuotation = errors.New("rfq already has a quotation")
	ErrUnsupportedProduct = errors.New("supplier does not support product type")
	ErrNotFound           = errors.New("not found")
)

// JoinCardinalityError reports a relation that fanned out where at most one
// row was allowed.
type JoinCardinalityError struct {
	Relation string
	Key      string
	Count    int
}

func (e *JoinCardinalityError) Error() string {
	return fmt.Sprintf("join cardinality: %s has %d rows for %s", e.Relation, e.Count, e.Key)
}

func (e *JoinCardinalityError) Unwrap() error { return ErrJoinCardinality }

// FeatureContractError names a model feature that could not be derived.
// QuotationResponseID is zero when the failure concerns the model artifact
// rather than a single row.
type FeatureContractError struct {
	QuotationResponseID uint
	Feature             string
	Reason              string
}

func (e *FeatureContractError) Error() string {
	if e.QuotationResponseID == 0 {
		return fmt.Sprintf("feature contract: %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("feature contract: quotation %d: %s: %s", e.QuotationResponseID, e.Feature, e.Reason)
}

func (e *FeatureContractError) Unwrap() error { return ErrFeatureContract }

type ConfigurationError struct {
	Violations map[string]string
}

func (e *ConfigurationError) Error() string {
	fields := make([]string, 0, len(e.Violations))
	for f := range e.Violations {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+"="+e.Violations[f])
	}
	return "configuration: " + strings.Join(parts, ", ")
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// Selection checks reported by SelectionInvariantError.
const (
	CheckDuplicateRequest  = "one_row_per_request"
	CheckMultipleSuppliers = "one_supplier_per_request"
	CheckMissingRequest    = "request_not_selected"
	CheckUnknownRequest    = "request_not_merged"
)

type SelectionInvariantError struct {
	Check           string
	ClientRequestID uint
	Detail          string
}

func (e *SelectionInvariantError) Error() string {
	return fmt.Sprintf("selection invariant %s failed for client request %d: %s", e.Check, e.ClientRequestID, e.Detail)
}

func (e *SelectionInvariantError) Unwrap() error { return ErrSelectionInvariant }

type PersistenceError struct {
	Op    string
	Table string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s %s: %v", e.Op, e.Table, e.Err)
}

// Unwrap exposes both the sentinel and the driver error.
func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }
