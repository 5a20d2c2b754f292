package memory

import (
	"time"

	domain "github.com/techfy/storefront-api/internal/domain"
)

func cloneOrder(order domain.Order) domain.Order {
	out := order
	out.Items = append([]domain.OrderItem(nil), order.Items...)
	out.SupportLog = cloneLog(order.SupportLog)
	out.ShippedAt = cloneTime(order.ShippedAt)
	out.DeliveredAt = cloneTime(order.DeliveredAt)
	return out
}

func cloneLog(entries []domain.SupportLogEntry) []domain.SupportLogEntry {
	if entries == nil {
		return nil
	}
	out := make([]domain.SupportLogEntry, len(entries))
	for i, entry := range entries {
		out[i] = entry
		if entry.Details != nil {
			details := make(map[string]any, len(entry.Details))
			for k, v := range entry.Details {
				details[k] = v
			}
			out[i].Details = details
		}
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
