package repositories

import (
	"strings"

	"golang.org/x/text/cases"

	domain "github.com/techfy/storefront-api/internal/domain"
)

// FoldQuery normalises a free-text search term for case-insensitive matching.
func FoldQuery(q string) string {
	return cases.Fold().String(strings.TrimSpace(q))
}

// MatchesSearch reports whether order satisfies filter. Stores that cannot express the text
// match natively filter with it after fetching.
func MatchesSearch(order domain.Order, filter OrderSearchFilter) bool {
	if filter.Status != nil && order.Status != *filter.Status {
		return false
	}
	q := FoldQuery(filter.Query)
	if q == "" {
		return true
	}
	fold := cases.Fold()
	for _, field := range []string{order.OrderNumber, order.Customer.Name, order.Customer.Email} {
		if strings.Contains(fold.String(field), q) {
			return true
		}
	}
	return false
}

// Paginate slices an already filtered and ordered result set.
func Paginate(orders []domain.Order, page domain.PageQuery) domain.PageResult[domain.Order] {
	result := domain.PageResult[domain.Order]{Page: page.Page, Limit: page.Limit, Total: len(orders)}
	start := page.Offset()
	if start >= len(orders) {
		result.Items = []domain.Order{}
		return result
	}
	end := len(orders)
	if page.Limit > 0 && start+page.Limit < end {
		end = start + page.Limit
	}
	result.Items = orders[start:end]
	return result
}

// NewSupportEntries returns the log entries of order beyond the first stored entries.
func NewSupportEntries(order domain.Order, stored int) []domain.SupportLogEntry {
	if stored >= len(order.SupportLog) {
		return nil
	}
	if stored < 0 {
		stored = 0
	}
	return order.SupportLog[stored:]
}
