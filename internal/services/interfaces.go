package services

import (
	"context"

	domain "github.com/techfy/storefront-api/internal/domain"
)

// Order aliases the domain order so handlers only import services.
type Order = domain.Order

// OrderService is the order lifecycle manager: creation, customer reads and self-service
// delivery confirmation, and the staff support operations.
type OrderService interface {
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error)
	GetOrder(ctx context.Context, query GetOrderQuery) (Order, error)
	ListCustomerOrders(ctx context.Context, userID string) ([]Order, error)
	ConfirmDelivery(ctx context.Context, cmd ConfirmDeliveryCommand) (Order, error)

	SearchOrders(ctx context.Context, filter SupportOrderFilter) (domain.PageResult[Order], error)
	LookupOrder(ctx context.Context, query LookupOrderQuery) (Order, error)
	UpdateShippingAddress(ctx context.Context, cmd UpdateAddressCommand) (OrderMutationResult, error)
	UpdateStatus(ctx context.Context, cmd UpdateStatusCommand) (OrderMutationResult, error)
}

// FulfillmentNotifier forwards order changes to the warehouse. Calls are best effort.
type FulfillmentNotifier interface {
	NotifyAddressChange(ctx context.Context, orderNumber string, address domain.Address) (FulfillmentResult, error)
	NotifyStatusChange(ctx context.Context, orderNumber string, status domain.OrderStatus) (FulfillmentResult, error)
}

// FulfillmentResult is what the warehouse acknowledged.
type FulfillmentResult struct {
	Success   bool   `json:"success"`
	Reference string `json:"reference,omitempty"`
	LabelID   string `json:"labelId,omitempty"`
}

// OrderLineInput is one requested line at checkout. Prices are never taken from the caller.
type OrderLineInput struct {
	ProductID     int64
	Quantity      int
	SelectedSize  string
	SelectedColor string
}

type PlaceOrderCommand struct {
	Actor           domain.Actor
	Customer        domain.CustomerContact
	ShippingAddress domain.Address
	Items           []OrderLineInput
}

// GetOrderQuery carries the optional email a guest uses to prove knowledge of the order.
type GetOrderQuery struct {
	OrderNumber string
	Actor       domain.Actor
	Email       string
}

type ConfirmDeliveryCommand struct {
	OrderNumber string
	Actor       domain.Actor
}

type SupportOrderFilter struct {
	Actor  domain.Actor
	Status *domain.OrderStatus
	Query  string
	Page   domain.PageQuery
}

// LookupOrderQuery finds one order by exact number; a non-empty Email must match the order.
type LookupOrderQuery struct {
	Actor       domain.Actor
	OrderNumber string
	Email       string
}

type UpdateAddressCommand struct {
	OrderNumber string
	Actor       domain.Actor
	Address     domain.Address
	Reason      string
}

type UpdateStatusCommand struct {
	OrderNumber string
	Actor       domain.Actor
	Status      domain.OrderStatus
	Reason      string
}

// OrderMutationResult is a persisted staff mutation plus the warehouse acknowledgement, if any.
type OrderMutationResult struct {
	Order     Order
	Warehouse *FulfillmentResult
}
