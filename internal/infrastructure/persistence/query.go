package persistence

import (
	"errors"
	"fmt"
	"strings"

	"github.com/erp/projectbilling/internal/domain/shared"
	"gorm.io/gorm"
)

// ValidateSortOrder normalizes the sort order to ASC or DESC; DESC by default
func ValidateSortOrder(orderDir string) string {
	if strings.ToUpper(strings.TrimSpace(orderDir)) == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField returns sortField when whitelisted, else defaultField
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed != "" && allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// ReceiptSortFields contains allowed sort fields for payment receipts
var ReceiptSortFields = map[string]bool{
	"created_at":  true,
	"updated_at":  true,
	"amount":      true,
	"status":      true,
	"verified_at": true,
}

// RequestSortFields contains allowed sort fields for requests
var RequestSortFields = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"type":       true,
	"amount":     true,
}

// applyFilter adds ordering and paging to a query
func applyFilter(query *gorm.DB, filter shared.Filter, allowed map[string]bool, defaultField, defaultDir string) *gorm.DB {
	field := ValidateSortField(filter.OrderBy, allowed, defaultField)
	dir := defaultDir
	if filter.OrderDir != "" {
		dir = ValidateSortOrder(filter.OrderDir)
	}
	query = query.Order(fmt.Sprintf("%s %s", field, dir))
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	return query
}

// lockedUpdate writes values to the row matched by where, which must pin the
// expected version. No matching row is reported as a concurrency conflict.
func lockedUpdate(db *gorm.DB, model any, where string, args []any, values map[string]any) error {
	result := db.Model(model).Where(where, args...).Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
