package engine

import (
	"fmt"
	"sort"

	"github.com/diewo77/quote-optimizer/internal/apperrors"
	"github.com/diewo77/quote-optimizer/internal/models"
)

// ValidateSelection checks the selection against the merged request ids
// before anything is written: one supplier and one row per request, and
// every merged request covered exactly once.
func ValidateSelection(selected []models.SelectedQuote, mergedRequestIDs []uint) error {
	rows := make(map[uint]int, len(selected))
	suppliers := make(map[uint]map[uint]struct{}, len(selected))
	for _, s := range selected {
		rows[s.ClientRequestID]++
		if suppliers[s.ClientRequestID] == nil {
			suppliers[s.ClientRequestID] = make(map[uint]struct{}, 1)
		}
		suppliers[s.ClientRequestID][s.SupplierID] = struct{}{}
	}

	for _, id := range sortedKeys(suppliers) {
		if n := len(suppliers[id]); n > 1 {
			return &apperrors.SelectionInvariantError{
				Check:           apperrors.CheckMultipleSuppliers,
				ClientRequestID: id,
				Detail:          fmt.Sprintf("%d suppliers selected", n),
			}
		}
	}

	if len(rows) != len(selected) {
		for _, id := range sortedKeys(rows) {
			if rows[id] > 1 {
				return &apperrors.SelectionInvariantError{
					Check:           apperrors.CheckDuplicateRequest,
					ClientRequestID: id,
					Detail:          fmt.Sprintf("%d rows for %d distinct requests", len(selected), len(rows)),
				}
			}
		}
	}

	merged := make(map[uint]struct{}, len(mergedRequestIDs))
	for _, id := range mergedRequestIDs {
		merged[id] = struct{}{}
		if _, ok := rows[id]; !ok {
			return &apperrors.SelectionInvariantError{
				Check:           apperrors.CheckMissingRequest,
				ClientRequestID: id,
				Detail:          "merged request has no selected quote",
			}
		}
	}
	for _, id := range sortedKeys(rows) {
		if _, ok := merged[id]; !ok {
			return &apperrors.SelectionInvariantError{
				Check:           apperrors.CheckUnknownRequest,
				ClientRequestID: id,
				Detail:          "selected request is absent from merged quotes",
			}
		}
	}
	return nil
}

func sortedKeys[V any](m map[uint]V) []uint {
	keys := make([]uint, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
