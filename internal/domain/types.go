package domain

import (
	"time"
)

// OrderStatus enumerates the fulfillment states an order can occupy.
type OrderStatus string

const (
	OrderStatusPlaced    OrderStatus = "PLACED"
	OrderStatusPacking   OrderStatus = "PACKING"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// OrderStatuses lists every accepted status in fulfillment order.
var OrderStatuses = []OrderStatus{
	OrderStatusPlaced,
	OrderStatusPacking,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// ParseOrderStatus resolves a raw status string, accepting any casing.
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	for _, status := range OrderStatuses {
		if equalFoldASCII(string(status), raw) {
			return status, true
		}
	}
	return "", false
}

// AddressLocked reports whether the shipping address can no longer be changed.
func (s OrderStatus) AddressLocked() bool {
	return s == OrderStatusShipped || s == OrderStatusDelivered
}

// SupportAction tags entries in an order's support log.
type SupportAction string

const (
	SupportActionUpdateStatus            SupportAction = "UPDATE_STATUS"
	SupportActionChangeAddress           SupportAction = "CHANGE_ADDRESS"
	SupportActionCustomerConfirmDelivery SupportAction = "CUSTOMER_CONFIRM_DELIVERY"
)

// Order is the aggregate root for checkout, fulfillment and support flows.
type Order struct {
	ID                  string
	OrderNumber         string
	UserID              string
	Status              OrderStatus
	Currency            string
	Totals              OrderTotals
	Customer            CustomerContact
	ShippingAddress     Address
	Items               []OrderItem
	SupportLog          []SupportLogEntry
	EstimatedDeliveryAt time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
	ShippedAt           *time.Time
	DeliveredAt         *time.Time
	Version             int64
}

// IsGuest reports whether the order has no owning customer account.
func (o Order) IsGuest() bool {
	return o.UserID == ""
}

// OrderTotals holds monetary amounts in minor currency units.
type OrderTotals struct {
	Subtotal int64
	Discount int64
	Shipping int64
	Total    int64
}

// CustomerContact is the contact snapshot captured at checkout.
type CustomerContact struct {
	Name  string
	Email string
	Phone string
}

// Address is a shipping address snapshot.
type Address struct {
	Line1       string
	Line2       string
	City        string
	State       string
	PostalCode  string
	CountryCode string
}

// OrderItem is a frozen line item; prices never follow later catalog changes.
type OrderItem struct {
	ProductID     int64
	Quantity      int
	UnitPrice     int64
	LineTotal     int64
	SelectedSize  string
	SelectedColor string
}

// SupportLogEntry is an immutable audit record attached to an order.
type SupportLogEntry struct {
	ID        string
	ActorID   string
	ActorRole Role
	Action    SupportAction
	Details   map[string]any
	CreatedAt time.Time
}

// Product is the catalog view needed to price an order.
type Product struct {
	ID    int64
	Name  string
	Price int64
	Image string
}

// PageQuery describes offset pagination inputs.
type PageQuery struct {
	Page  int
	Limit int
}

// Offset returns the number of records to skip for the page.
func (q PageQuery) Offset() int {
	if q.Page <= 1 || q.Limit <= 0 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}

// PageResult is an offset-paginated result set.
type PageResult[T any] struct {
	Items []T
	Page  int
	Limit int
	Total int
}

// TotalPages never reports fewer than one page.
func (p PageResult[T]) TotalPages() int {
	if p.Limit <= 0 || p.Total <= 0 {
		return 1
	}
	pages := (p.Total + p.Limit - 1) / p.Limit
	if pages < 1 {
		return 1
	}
	return pages
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'a' <= ca && ca <= 'z' {
			ca -= 'a' - 'A'
		}
		if 'a' <= cb && cb <= 'z' {
			cb -= 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
