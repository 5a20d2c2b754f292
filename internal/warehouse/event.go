// Package warehouse holds the fulfillment notifier adapters: a simulated WMS, an HTTP client and
// two message transports (Cloud Pub/Sub and Kafka).
package warehouse

import (
	"strings"
	"time"

	domain "github.com/techfy/storefront-api/internal/domain"
)

const (
	EventAddressChanged = "order.address_changed"
	EventStatusChanged  = "order.status_changed"
)

// Event is the payload published to message transports.
type Event struct {
	Type        string   `json:"type"`
	OrderNumber string   `json:"orderNumber"`
	Status      string   `json:"status,omitempty"`
	Address     *Address `json:"shippingAddress,omitempty"`
	OccurredAt  string   `json:"occurredAt"`
}

type Address struct {
	Line1       string `json:"line1"`
	Line2       string `json:"line2,omitempty"`
	City        string `json:"city"`
	State       string `json:"state,omitempty"`
	PostalCode  string `json:"postalCode"`
	CountryCode string `json:"countryCode"`
}

func addressPayload(a domain.Address) *Address {
	return &Address{
		Line1:       a.Line1,
		Line2:       a.Line2,
		City:        a.City,
		State:       a.State,
		PostalCode:  a.PostalCode,
		CountryCode: a.CountryCode,
	}
}

func addressEvent(orderNumber string, address domain.Address, now time.Time) Event {
	return Event{
		Type:        EventAddressChanged,
		OrderNumber: orderNumber,
		Address:     addressPayload(address),
		OccurredAt:  now.UTC().Format(time.RFC3339Nano),
	}
}

func statusEvent(orderNumber string, status domain.OrderStatus, now time.Time) Event {
	return Event{
		Type:        EventStatusChanged,
		OrderNumber: orderNumber,
		Status:      string(status),
		OccurredAt:  now.UTC().Format(time.RFC3339Nano),
	}
}

func setAttr(attrs map[string]string, key, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
