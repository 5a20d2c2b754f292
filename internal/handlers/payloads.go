package handlers

import (
	"time"

	domain "github.com/techfy/storefront-api/internal/domain"
	"github.com/techfy/storefront-api/internal/platform/validation"
	"github.com/techfy/storefront-api/internal/services"
)

type addressRequest struct {
	Line1       string `json:"line1" validate:"required,max=200"`
	Line2       string `json:"line2,omitempty" validate:"max=200"`
	City        string `json:"city" validate:"required,max=100"`
	State       string `json:"state,omitempty" validate:"max=100"`
	PostalCode  string `json:"postalCode" validate:"required,max=20"`
	CountryCode string `json:"countryCode" validate:"required,min=2,max=3"`
}

func (a addressRequest) toDomain() domain.Address {
	return domain.Address{
		Line1:       validation.Sanitize(a.Line1),
		Line2:       validation.Sanitize(a.Line2),
		City:        validation.Sanitize(a.City),
		State:       validation.Sanitize(a.State),
		PostalCode:  validation.Sanitize(a.PostalCode),
		CountryCode: validation.Sanitize(a.CountryCode),
	}
}

type addressPayload struct {
	Line1       string `json:"line1"`
	Line2       string `json:"line2,omitempty"`
	City        string `json:"city"`
	State       string `json:"state,omitempty"`
	PostalCode  string `json:"postalCode"`
	CountryCode string `json:"countryCode"`
}

type customerPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type totalsPayload struct {
	Subtotal int64 `json:"subtotal"`
	Discount int64 `json:"discount"`
	Shipping int64 `json:"shipping"`
	Total    int64 `json:"total"`
}

type orderItemPayload struct {
	ProductID     int64  `json:"productId"`
	Quantity      int    `json:"quantity"`
	UnitPrice     int64  `json:"unitPrice"`
	LineTotal     int64  `json:"lineTotal"`
	SelectedSize  string `json:"selectedSize,omitempty"`
	SelectedColor string `json:"selectedColor,omitempty"`
}

type supportLogPayload struct {
	ID        string         `json:"id"`
	ActorID   string         `json:"actorId"`
	ActorRole string         `json:"actorRole"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt string         `json:"createdAt"`
}

type orderPayload struct {
	OrderNumber           string              `json:"orderNumber"`
	Status                string              `json:"status"`
	Currency              string              `json:"currency"`
	Guest                 bool                `json:"guest"`
	Customer              customerPayload     `json:"customer"`
	ShippingAddress       addressPayload      `json:"shippingAddress"`
	Subtotal              int64               `json:"subtotal"`
	Shipping              int64               `json:"shipping"`
	Total                 int64               `json:"total"`
	Totals                totalsPayload       `json:"totals"`
	Items                 []orderItemPayload  `json:"items"`
	EstimatedDeliveryDate string              `json:"estimatedDeliveryDate"`
	CreatedAt             string              `json:"createdAt"`
	UpdatedAt             string              `json:"updatedAt"`
	ShippedAt             *string             `json:"shippedAt,omitempty"`
	DeliveredAt           *string             `json:"deliveredAt,omitempty"`
	SupportLogs           []supportLogPayload `json:"supportLogs,omitempty"`
}

// supportOrderSummary is a row of the staff order list.
type supportOrderSummary struct {
	OrderNumber   string             `json:"orderNumber"`
	Status        string             `json:"status"`
	CreatedAt     string             `json:"createdAt"`
	CustomerName  string             `json:"customerName"`
	CustomerEmail string             `json:"customerEmail"`
	Total         int64              `json:"total"`
	Subtotal      int64              `json:"subtotal"`
	Shipping      int64              `json:"shipping"`
	ItemsCount    int                `json:"itemsCount"`
	Items         []orderItemPayload `json:"items"`
}

type supportOrderListResponse struct {
	Orders     []supportOrderSummary `json:"orders"`
	Page       int                   `json:"page"`
	Limit      int                   `json:"limit"`
	Total      int                   `json:"total"`
	TotalPages int                   `json:"totalPages"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderMutationResponse struct {
	Order     orderPayload                `json:"order"`
	Warehouse *services.FulfillmentResult `json:"warehouse,omitempty"`
}

// buildOrderPayload renders an order. Support logs are only included for staff views.
func buildOrderPayload(order services.Order, withSupportLogs bool) orderPayload {
	payload := orderPayload{
		OrderNumber: order.OrderNumber,
		Status:      string(order.Status),
		Currency:    order.Currency,
		Guest:       order.IsGuest(),
		Customer: customerPayload{
			Name:  order.Customer.Name,
			Email: order.Customer.Email,
			Phone: order.Customer.Phone,
		},
		ShippingAddress: buildAddressPayload(order.ShippingAddress),
		Subtotal:        order.Totals.Subtotal,
		Shipping:        order.Totals.Shipping,
		Total:           order.Totals.Total,
		Totals: totalsPayload{
			Subtotal: order.Totals.Subtotal,
			Discount: order.Totals.Discount,
			Shipping: order.Totals.Shipping,
			Total:    order.Totals.Total,
		},
		Items:                 buildItemPayloads(order.Items),
		EstimatedDeliveryDate: formatTime(order.EstimatedDeliveryAt),
		CreatedAt:             formatTime(order.CreatedAt),
		UpdatedAt:             formatTime(order.UpdatedAt),
		ShippedAt:             formatTimePtr(order.ShippedAt),
		DeliveredAt:           formatTimePtr(order.DeliveredAt),
	}
	if withSupportLogs {
		payload.SupportLogs = make([]supportLogPayload, 0, len(order.SupportLog))
		for _, entry := range order.SupportLog {
			payload.SupportLogs = append(payload.SupportLogs, supportLogPayload{
				ID:        entry.ID,
				ActorID:   entry.ActorID,
				ActorRole: string(entry.ActorRole),
				Action:    string(entry.Action),
				Details:   entry.Details,
				CreatedAt: formatTime(entry.CreatedAt),
			})
		}
	}
	return payload
}

func buildSupportSummary(order services.Order) supportOrderSummary {
	return supportOrderSummary{
		OrderNumber:   order.OrderNumber,
		Status:        string(order.Status),
		CreatedAt:     formatTime(order.CreatedAt),
		CustomerName:  order.Customer.Name,
		CustomerEmail: order.Customer.Email,
		Total:         order.Totals.Total,
		Subtotal:      order.Totals.Subtotal,
		Shipping:      order.Totals.Shipping,
		ItemsCount:    len(order.Items),
		Items:         buildItemPayloads(order.Items),
	}
}

func buildAddressPayload(a domain.Address) addressPayload {
	return addressPayload{
		Line1:       a.Line1,
		Line2:       a.Line2,
		City:        a.City,
		State:       a.State,
		PostalCode:  a.PostalCode,
		CountryCode: a.CountryCode,
	}
}

func buildItemPayloads(items []domain.OrderItem) []orderItemPayload {
	out := make([]orderItemPayload, 0, len(items))
	for _, item := range items {
		out = append(out, orderItemPayload{
			ProductID:     item.ProductID,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			LineTotal:     item.LineTotal,
			SelectedSize:  item.SelectedSize,
			SelectedColor: item.SelectedColor,
		})
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	value := formatTime(*t)
	return &value
}
