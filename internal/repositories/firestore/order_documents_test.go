package firestore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	domain "github.com/techfy/storefront-api/internal/domain"
)

func TestOrderDocumentRoundTripKeepsFrozenFields(t *testing.T) {
	created := time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC)
	shipped := created.Add(48 * time.Hour)
	order := domain.Order{
		ID:              "01HV0000000000000000000000",
		OrderNumber:     "JJ00004242",
		Status:          domain.OrderStatusShipped,
		Currency:        "USD",
		Totals:          domain.OrderTotals{Subtotal: 5000, Total: 5000},
		Customer:        domain.CustomerContact{Name: "Ana", Email: "ana@example.com"},
		ShippingAddress: domain.Address{Line1: "1 Main St", City: "Lisbon", PostalCode: "1000", CountryCode: "PT"},
		Items:           []domain.OrderItem{{ProductID: 7, Quantity: 2, UnitPrice: 2500, LineTotal: 5000, SelectedSize: "M"}},
		SupportLog: []domain.SupportLogEntry{{
			ID: "log-1", ActorID: "staff-1", ActorRole: domain.RoleSupport,
			Action: domain.SupportActionUpdateStatus, Details: map[string]any{"status": "SHIPPED"}, CreatedAt: shipped,
		}},
		CreatedAt: created,
		UpdatedAt: shipped,
		ShippedAt: &shipped,
		Version:   3,
	}

	got := fromDomainOrder(order).toDomain()
	assert.Equal(t, order.Totals, got.Totals)
	assert.Equal(t, order.Items, got.Items)
	assert.Equal(t, order.ShippingAddress, got.ShippingAddress)
	assert.Equal(t, order.SupportLog, got.SupportLog)
	assert.Equal(t, order.ShippedAt, got.ShippedAt)
	assert.Nil(t, got.DeliveredAt)
	assert.EqualValues(t, 3, got.Version)
}
