package postgres

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"

	domain "github.com/techfy/storefront-api/internal/domain"
)

func TestOrderModelRoundTrip(t *testing.T) {
	created := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	delivered := created.Add(72 * time.Hour)
	order := domain.Order{
		ID:              "01HZ0000000000000000000001",
		OrderNumber:     "JJ12345678",
		UserID:          "user-1",
		Status:          domain.OrderStatusDelivered,
		Currency:        "USD",
		Totals:          domain.OrderTotals{Subtotal: 1200, Shipping: 250, Total: 1450},
		Customer:        domain.CustomerContact{Name: "Kai", Email: "kai@example.com"},
		ShippingAddress: domain.Address{Line1: "9 Elm", City: "Austin", State: "TX", PostalCode: "73301", CountryCode: "US"},
		Items: []domain.OrderItem{
			{ProductID: 2, Quantity: 1, UnitPrice: 1200, LineTotal: 1200},
		},
		SupportLog: []domain.SupportLogEntry{{
			ID: "log-1", ActorID: "user-1", ActorRole: domain.RoleCustomer,
			Action: domain.SupportActionCustomerConfirmDelivery, CreatedAt: delivered,
		}},
		CreatedAt:   created,
		UpdatedAt:   delivered,
		DeliveredAt: &delivered,
		Version:     2,
	}

	model, err := fromDomainOrder(order)
	require.NoError(t, err)
	assert.Equal(t, "{}", model.SupportLog[0].Details)
	assert.Equal(t, 0, model.Items[0].Position)

	got, err := model.toDomain()
	require.NoError(t, err)
	assert.Equal(t, order.ShippingAddress, got.ShippingAddress)
	assert.Equal(t, order.Items, got.Items)
	assert.Equal(t, order.DeliveredAt, got.DeliveredAt)
	assert.Nil(t, got.SupportLog[0].Details)
	assert.Equal(t, domain.SupportActionCustomerConfirmDelivery, got.SupportLog[0].Action)
}

func TestOrderModelStoresThreeLetterCountryCode(t *testing.T) {
	parsed, err := schema.Parse(&orderModel{}, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)
	field := parsed.LookUpField("ShipCountryCode")
	require.NotNil(t, field)
	assert.Equal(t, "ship_country_code", field.DBName)
	assert.GreaterOrEqual(t, field.Size, 3)

	model, err := fromDomainOrder(domain.Order{
		ID:              "01HZ0000000000000000000002",
		OrderNumber:     "JJ87654321",
		Status:          domain.OrderStatusPlaced,
		ShippingAddress: domain.Address{Line1: "1 Main", City: "Boston", PostalCode: "02108", CountryCode: "USA"},
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(model.ShipCountryCode), field.Size)

	got, err := model.toDomain()
	require.NoError(t, err)
	assert.Equal(t, "USA", got.ShippingAddress.CountryCode)
}

func TestOrderModelRejectsCorruptSupportLogDetails(t *testing.T) {
	model := orderModel{
		ID:          "01HZ0000000000000000000003",
		OrderNumber: "JJ11112222",
		Status:      string(domain.OrderStatusPacking),
		SupportLog: []supportLogModel{{
			ID:      "log-9",
			Action:  string(domain.SupportActionUpdateStatus),
			Details: `{"status":`,
		}},
	}

	_, err := model.toDomain()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JJ11112222")
	assert.Contains(t, err.Error(), "log-9")

	_, err = toDomainOrders([]orderModel{model})
	assert.Error(t, err)
}

func TestSupportLogModelsContinueSequence(t *testing.T) {
	logs, err := supportLogModels("order-1", []domain.SupportLogEntry{
		{ID: "a", Action: domain.SupportActionUpdateStatus, Details: map[string]any{"status": "SHIPPED"}},
		{ID: "b", Action: domain.SupportActionChangeAddress},
	}, 3)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, 3, logs[0].Seq)
	assert.Equal(t, 4, logs[1].Seq)
	assert.JSONEq(t, `{"status":"SHIPPED"}`, logs[0].Details)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%\_off\\`, escapeLike(`100%_off\`))
}
