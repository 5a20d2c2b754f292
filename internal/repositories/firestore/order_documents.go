package firestore

import (
	"time"

	domain "github.com/techfy/storefront-api/internal/domain"
)

type orderDocument struct {
	ID                  string               `firestore:"id"`
	OrderNumber         string               `firestore:"orderNumber"`
	UserID              string               `firestore:"userId"`
	Status              string               `firestore:"status"`
	Currency            string               `firestore:"currency"`
	Totals              totalsDocument       `firestore:"totals"`
	Customer            customerDocument     `firestore:"customer"`
	ShippingAddress     addressDocument      `firestore:"shippingAddress"`
	Items               []itemDocument       `firestore:"items"`
	SupportLog          []supportLogDocument `firestore:"supportLog"`
	EstimatedDeliveryAt time.Time            `firestore:"estimatedDeliveryAt"`
	CreatedAt           time.Time            `firestore:"createdAt"`
	UpdatedAt           time.Time            `firestore:"updatedAt"`
	ShippedAt           *time.Time           `firestore:"shippedAt"`
	DeliveredAt         *time.Time           `firestore:"deliveredAt"`
	Version             int64                `firestore:"version"`
}

type totalsDocument struct {
	Subtotal int64 `firestore:"subtotal"`
	Discount int64 `firestore:"discount"`
	Shipping int64 `firestore:"shipping"`
	Total    int64 `firestore:"total"`
}

type customerDocument struct {
	Name  string `firestore:"name"`
	Email string `firestore:"email"`
	Phone string `firestore:"phone,omitempty"`
}

type addressDocument struct {
	Line1       string `firestore:"line1"`
	Line2       string `firestore:"line2,omitempty"`
	City        string `firestore:"city"`
	State       string `firestore:"state,omitempty"`
	PostalCode  string `firestore:"postalCode"`
	CountryCode string `firestore:"countryCode"`
}

type itemDocument struct {
	ProductID     int64  `firestore:"productId"`
	Quantity      int    `firestore:"quantity"`
	UnitPrice     int64  `firestore:"unitPrice"`
	LineTotal     int64  `firestore:"lineTotal"`
	SelectedSize  string `firestore:"selectedSize,omitempty"`
	SelectedColor string `firestore:"selectedColor,omitempty"`
}

type supportLogDocument struct {
	ID        string         `firestore:"id"`
	ActorID   string         `firestore:"actorId"`
	ActorRole string         `firestore:"actorRole"`
	Action    string         `firestore:"action"`
	Details   map[string]any `firestore:"details,omitempty"`
	CreatedAt time.Time      `firestore:"createdAt"`
}

func fromDomainOrder(order domain.Order) orderDocument {
	doc := orderDocument{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Status:      string(order.Status),
		Currency:    order.Currency,
		Totals: totalsDocument{
			Subtotal: order.Totals.Subtotal,
			Discount: order.Totals.Discount,
			Shipping: order.Totals.Shipping,
			Total:    order.Totals.Total,
		},
		Customer:            customerDocument(order.Customer),
		ShippingAddress:     addressDocument(order.ShippingAddress),
		Items:               make([]itemDocument, 0, len(order.Items)),
		SupportLog:          fromDomainSupportLog(order.SupportLog),
		EstimatedDeliveryAt: order.EstimatedDeliveryAt.UTC(),
		CreatedAt:           order.CreatedAt.UTC(),
		UpdatedAt:           order.UpdatedAt.UTC(),
		ShippedAt:           order.ShippedAt,
		DeliveredAt:         order.DeliveredAt,
		Version:             order.Version,
	}
	for _, item := range order.Items {
		doc.Items = append(doc.Items, itemDocument(item))
	}
	return doc
}

func fromDomainSupportLog(entries []domain.SupportLogEntry) []supportLogDocument {
	out := make([]supportLogDocument, 0, len(entries))
	for _, entry := range entries {
		out = append(out, supportLogDocument{
			ID:        entry.ID,
			ActorID:   entry.ActorID,
			ActorRole: string(entry.ActorRole),
			Action:    string(entry.Action),
			Details:   entry.Details,
			CreatedAt: entry.CreatedAt.UTC(),
		})
	}
	return out
}

func (d orderDocument) toDomain() domain.Order {
	order := domain.Order{
		ID:          d.ID,
		OrderNumber: d.OrderNumber,
		UserID:      d.UserID,
		Status:      domain.OrderStatus(d.Status),
		Currency:    d.Currency,
		Totals: domain.OrderTotals{
			Subtotal: d.Totals.Subtotal,
			Discount: d.Totals.Discount,
			Shipping: d.Totals.Shipping,
			Total:    d.Totals.Total,
		},
		Customer:            domain.CustomerContact(d.Customer),
		ShippingAddress:     domain.Address(d.ShippingAddress),
		Items:               make([]domain.OrderItem, 0, len(d.Items)),
		SupportLog:          make([]domain.SupportLogEntry, 0, len(d.SupportLog)),
		EstimatedDeliveryAt: d.EstimatedDeliveryAt,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
		ShippedAt:           d.ShippedAt,
		DeliveredAt:         d.DeliveredAt,
		Version:             d.Version,
	}
	for _, item := range d.Items {
		order.Items = append(order.Items, domain.OrderItem(item))
	}
	for _, entry := range d.SupportLog {
		order.SupportLog = append(order.SupportLog, domain.SupportLogEntry{
			ID:        entry.ID,
			ActorID:   entry.ActorID,
			ActorRole: domain.Role(entry.ActorRole),
			Action:    domain.SupportAction(entry.Action),
			Details:   entry.Details,
			CreatedAt: entry.CreatedAt,
		})
	}
	return order
}
