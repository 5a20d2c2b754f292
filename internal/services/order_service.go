package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/techfy/storefront-api/internal/domain"
	"github.com/techfy/storefront-api/internal/repositories"
)

const (
	defaultCurrency        = "USD"
	defaultDeliveryWindow  = 6 * 24 * time.Hour
	defaultMutationRetries = 3
	defaultNotifyTimeout   = 2 * time.Second
	minLookupNumberLength  = 3
)

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders   repositories.OrderRepository
	Pricing  *PricingEngine
	Numbers  *OrderNumberAllocator
	Notifier FulfillmentNotifier
	// Currency is stamped on every new order.
	Currency       string
	DeliveryWindow time.Duration
	// MutationRetries bounds read-validate-write attempts when another writer wins the version race.
	MutationRetries int
	NotifyTimeout   time.Duration
	Clock           func() time.Time
	IDGenerator     func() string
	Logger          func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders         repositories.OrderRepository
	pricing        *PricingEngine
	numbers        *OrderNumberAllocator
	notifier       FulfillmentNotifier
	currency       string
	deliveryWindow time.Duration
	retries        int
	notifyTimeout  time.Duration
	clock          func() time.Time
	newID          func() string
	logger         func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Pricing == nil {
		return nil, errors.New("order service: pricing engine is required")
	}
	if deps.Numbers == nil {
		return nil, errors.New("order service: order number allocator is required")
	}

	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	window := deps.DeliveryWindow
	if window <= 0 {
		window = defaultDeliveryWindow
	}
	retries := deps.MutationRetries
	if retries <= 0 {
		retries = defaultMutationRetries
	}
	notifyTimeout := deps.NotifyTimeout
	if notifyTimeout <= 0 {
		notifyTimeout = defaultNotifyTimeout
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:         deps.Orders,
		pricing:        deps.Pricing,
		numbers:        deps.Numbers,
		notifier:       deps.Notifier,
		currency:       currency,
		deliveryWindow: window,
		retries:        retries,
		notifyTimeout:  notifyTimeout,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *orderService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error) {
	if cmd.Actor.IsStaff() {
		return Order{}, fmt.Errorf("%w: staff accounts cannot place orders", ErrOrderForbidden)
	}
	customer, err := normalizeCustomer(cmd.Customer)
	if err != nil {
		return Order{}, err
	}
	address, err := normalizeAddress(cmd.ShippingAddress)
	if err != nil {
		return Order{}, err
	}

	priced, err := s.pricing.Price(ctx, cmd.Items)
	if err != nil {
		return Order{}, err
	}

	now := s.clock()
	order := Order{
		ID:                  s.newID(),
		UserID:              strings.TrimSpace(cmd.Actor.ID),
		Status:              domain.OrderStatusPlaced,
		Currency:            s.currency,
		Totals:              priced.Totals,
		Customer:            customer,
		ShippingAddress:     address,
		Items:               priced.Items,
		SupportLog:          []domain.SupportLogEntry{},
		EstimatedDeliveryAt: now.Add(s.deliveryWindow),
		CreatedAt:           now,
		UpdatedAt:           now,
		Version:             1,
	}

	// The existence check and the insert race with concurrent checkouts; the store's uniqueness
	// constraint catches the loser, which draws a new number. Checks and inserts share one budget.
	remaining := s.numbers.Attempts()
	for remaining > 0 {
		number, used, err := s.numbers.AllocateWithin(ctx, remaining)
		if err != nil {
			return Order{}, err
		}
		remaining -= used
		order.OrderNumber = number

		err = s.orders.Insert(ctx, order)
		if err == nil {
			s.logger(ctx, "orders.placed", map[string]any{
				"orderNumber": order.OrderNumber,
				"guest":       order.IsGuest(),
				"total":       order.Totals.Total,
				"items":       len(order.Items),
			})
			return order, nil
		}
		if !isConflict(err) {
			return Order{}, mapRepositoryError(err)
		}
		s.logger(ctx, "orders.number_taken_on_insert", map[string]any{
			"orderNumber": number,
			"remaining":   remaining,
		})
	}

	s.logger(ctx, "orders.allocation_exhausted", map[string]any{
		"level":  "error",
		"reason": "insert conflicts",
	})
	return Order{}, fmt.Errorf("%w: order number taken on every insert", ErrAllocationExhausted)
}

func (s *orderService) GetOrder(ctx context.Context, query GetOrderQuery) (Order, error) {
	order, err := s.find(ctx, query.OrderNumber)
	if err != nil {
		return Order{}, err
	}
	if err := AuthorizeOrderRead(order, query.Actor, query.Email); err != nil {
		return Order{}, err
	}
	return order, nil
}

func (s *orderService) ListCustomerOrders(ctx context.Context, userID string) ([]Order, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return orders, nil
}

func (s *orderService) ConfirmDelivery(ctx context.Context, cmd ConfirmDeliveryCommand) (Order, error) {
	if cmd.Actor.IsAnonymous() {
		return Order{}, fmt.Errorf("%w: sign in to confirm delivery", ErrOrderForbidden)
	}
	if !cmd.Actor.Role.Can(domain.CapabilityConfirmOwnDelivery) {
		return Order{}, fmt.Errorf("%w: role %s cannot confirm deliveries", ErrOrderForbidden, cmd.Actor.Role)
	}
	order, err := s.mutate(ctx, cmd.OrderNumber, func(order *Order, now time.Time) error {
		if order.IsGuest() || order.UserID != cmd.Actor.ID {
			return fmt.Errorf("%w: you can only confirm deliveries for your own orders", ErrOrderForbidden)
		}
		if order.Status != domain.OrderStatusShipped {
			return fmt.Errorf("%w: order must be shipped before it can be marked as delivered (status %s)", ErrInvalidTransition, order.Status)
		}
		order.Status = domain.OrderStatusDelivered
		if order.DeliveredAt == nil {
			order.DeliveredAt = &now
		}
		s.appendLog(order, cmd.Actor, domain.SupportActionCustomerConfirmDelivery, now, map[string]any{
			"confirmedAt": now.Format(time.RFC3339),
		})
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	s.logger(ctx, "orders.delivery_confirmed", map[string]any{"orderNumber": order.OrderNumber})
	return order, nil
}

func (s *orderService) SearchOrders(ctx context.Context, filter SupportOrderFilter) (domain.PageResult[Order], error) {
	if err := requireStaff(filter.Actor); err != nil {
		return domain.PageResult[Order]{}, err
	}
	if filter.Status != nil {
		if _, ok := domain.ParseOrderStatus(string(*filter.Status)); !ok {
			return domain.PageResult[Order]{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, *filter.Status)
		}
	}
	page := filter.Page
	if page.Page < 1 {
		page.Page = 1
	}
	if page.Limit < 1 {
		page.Limit = 10
	}
	if page.Limit > 50 {
		page.Limit = 50
	}

	result, err := s.orders.Search(ctx, repositories.OrderSearchFilter{
		Status: filter.Status,
		Query:  strings.TrimSpace(filter.Query),
		Page:   page,
	})
	if err != nil {
		return domain.PageResult[Order]{}, mapRepositoryError(err)
	}
	return result, nil
}

func (s *orderService) LookupOrder(ctx context.Context, query LookupOrderQuery) (Order, error) {
	if err := requireStaff(query.Actor); err != nil {
		return Order{}, err
	}
	number := strings.TrimSpace(query.OrderNumber)
	if len(number) < minLookupNumberLength {
		return Order{}, fmt.Errorf("%w: orderNumber must have at least %d characters", ErrOrderInvalidInput, minLookupNumberLength)
	}
	order, err := s.find(ctx, number)
	if err != nil {
		return Order{}, err
	}
	if strings.TrimSpace(query.Email) != "" && !emailsMatch(query.Email, order.Customer.Email) {
		return Order{}, fmt.Errorf("%w: email does not match order", ErrOrderForbidden)
	}
	return order, nil
}

func (s *orderService) UpdateShippingAddress(ctx context.Context, cmd UpdateAddressCommand) (OrderMutationResult, error) {
	if err := requireStaff(cmd.Actor); err != nil {
		return OrderMutationResult{}, err
	}
	address, err := normalizeAddress(cmd.Address)
	if err != nil {
		return OrderMutationResult{}, err
	}
	reason := strings.TrimSpace(cmd.Reason)

	order, err := s.mutate(ctx, cmd.OrderNumber, func(order *Order, now time.Time) error {
		if order.Status.AddressLocked() {
			return fmt.Errorf("%w: address can no longer be changed, order is %s", ErrOrderLocked, order.Status)
		}
		previous := order.ShippingAddress
		order.ShippingAddress = address
		s.appendLog(order, cmd.Actor, domain.SupportActionChangeAddress, now, map[string]any{
			"reason":          optionalString(reason),
			"shippingAddress": addressSnapshot(address),
			"previousAddress": addressSnapshot(previous),
		})
		return nil
	})
	if err != nil {
		return OrderMutationResult{}, err
	}
	s.logger(ctx, "orders.address_changed", map[string]any{
		"orderNumber": order.OrderNumber,
		"actorId":     cmd.Actor.ID,
	})

	result := OrderMutationResult{Order: order}
	if s.notifier != nil {
		result.Warehouse = s.notify(ctx, "address_change", order.OrderNumber, func(ctx context.Context) (FulfillmentResult, error) {
			return s.notifier.NotifyAddressChange(ctx, order.OrderNumber, order.ShippingAddress)
		})
	}
	return result, nil
}

func (s *orderService) UpdateStatus(ctx context.Context, cmd UpdateStatusCommand) (OrderMutationResult, error) {
	if err := requireStaff(cmd.Actor); err != nil {
		return OrderMutationResult{}, err
	}
	target, ok := domain.ParseOrderStatus(string(cmd.Status))
	if !ok {
		return OrderMutationResult{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.Status)
	}
	reason := strings.TrimSpace(cmd.Reason)

	var previous domain.OrderStatus
	order, err := s.mutate(ctx, cmd.OrderNumber, func(order *Order, now time.Time) error {
		previous = order.Status
		order.Status = target
		// Timestamps record the first arrival and survive later status moves.
		if (target == domain.OrderStatusShipped || target == domain.OrderStatusDelivered) && order.ShippedAt == nil {
			order.ShippedAt = &now
		}
		if target == domain.OrderStatusDelivered && order.DeliveredAt == nil {
			order.DeliveredAt = &now
		}
		s.appendLog(order, cmd.Actor, domain.SupportActionUpdateStatus, now, map[string]any{
			"status":         string(target),
			"previousStatus": string(previous),
			"reason":         optionalString(reason),
		})
		return nil
	})
	if err != nil {
		return OrderMutationResult{}, err
	}
	s.logger(ctx, "orders.status_changed", map[string]any{
		"orderNumber":    order.OrderNumber,
		"previousStatus": string(previous),
		"status":         string(order.Status),
		"actorId":        cmd.Actor.ID,
	})

	result := OrderMutationResult{Order: order}
	if s.notifier != nil {
		result.Warehouse = s.notify(ctx, "status_change", order.OrderNumber, func(ctx context.Context) (FulfillmentResult, error) {
			return s.notifier.NotifyStatusChange(ctx, order.OrderNumber, order.Status)
		})
	}
	return result, nil
}

func (s *orderService) find(ctx context.Context, orderNumber string) (Order, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return Order{}, fmt.Errorf("%w: order number is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByNumber(ctx, orderNumber)
	if err != nil {
		return Order{}, mapRepositoryError(err)
	}
	return order, nil
}

// mutate runs apply against freshly read state and writes the result guarded by the version
// read. When another writer got there first the whole read-validate-write cycle is repeated.
func (s *orderService) mutate(ctx context.Context, orderNumber string, apply func(order *Order, now time.Time) error) (Order, error) {
	for attempt := 1; ; attempt++ {
		current, err := s.find(ctx, orderNumber)
		if err != nil {
			return Order{}, err
		}

		now := s.clock()
		next := current
		next.SupportLog = append([]domain.SupportLogEntry(nil), current.SupportLog...)
		if err := apply(&next, now); err != nil {
			return Order{}, err
		}
		next.UpdatedAt = now
		next.Version = current.Version + 1

		err = s.orders.Update(ctx, next, current.Version)
		if err == nil {
			return next, nil
		}
		if !isConflict(err) {
			return Order{}, mapRepositoryError(err)
		}
		if attempt >= s.retries {
			s.logger(ctx, "orders.mutation_conflict", map[string]any{
				"level":       "warn",
				"orderNumber": current.OrderNumber,
				"attempts":    attempt,
			})
			return Order{}, fmt.Errorf("%w: order %s changed concurrently, retry the request", ErrOrderConflict, current.OrderNumber)
		}
	}
}

func (s *orderService) appendLog(order *Order, actor domain.Actor, action domain.SupportAction, now time.Time, details map[string]any) {
	order.SupportLog = append(order.SupportLog, domain.SupportLogEntry{
		ID:        s.newID(),
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Action:    action,
		Details:   details,
		CreatedAt: now,
	})
}

// notify calls the warehouse after the mutation has been persisted. The call gets its own short
// deadline and is detached from request cancellation; failures are logged and dropped.
func (s *orderService) notify(ctx context.Context, operation, orderNumber string, call func(context.Context) (FulfillmentResult, error)) *FulfillmentResult {
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	result, err := call(notifyCtx)
	if err != nil {
		s.logger(ctx, "orders.fulfillment_notify_failed", map[string]any{
			"level":       "warn",
			"operation":   operation,
			"orderNumber": orderNumber,
			"error":       err.Error(),
		})
		return nil
	}
	if !result.Success {
		s.logger(ctx, "orders.fulfillment_notify_rejected", map[string]any{
			"level":       "warn",
			"operation":   operation,
			"orderNumber": orderNumber,
		})
	}
	return &result
}

func requireStaff(actor domain.Actor) error {
	if actor.IsAnonymous() {
		return fmt.Errorf("%w: staff identity required", ErrOrderForbidden)
	}
	if !actor.Role.Can(domain.CapabilityManageOrders) {
		return fmt.Errorf("%w: staff role required", ErrOrderForbidden)
	}
	return nil
}

func normalizeCustomer(c domain.CustomerContact) (domain.CustomerContact, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = normalizeEmail(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
	if c.Name == "" {
		return c, fmt.Errorf("%w: customer.name is required", ErrOrderInvalidInput)
	}
	if c.Email == "" || !strings.Contains(c.Email, "@") {
		return c, fmt.Errorf("%w: customer.email must be a valid email address", ErrOrderInvalidInput)
	}
	return c, nil
}

func normalizeAddress(a domain.Address) (domain.Address, error) {
	a.Line1 = strings.TrimSpace(a.Line1)
	a.Line2 = strings.TrimSpace(a.Line2)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.CountryCode = strings.ToUpper(strings.TrimSpace(a.CountryCode))
	switch {
	case a.Line1 == "":
		return a, fmt.Errorf("%w: shippingAddress.line1 is required", ErrOrderInvalidInput)
	case a.City == "":
		return a, fmt.Errorf("%w: shippingAddress.city is required", ErrOrderInvalidInput)
	case a.PostalCode == "":
		return a, fmt.Errorf("%w: shippingAddress.postalCode is required", ErrOrderInvalidInput)
	case len(a.CountryCode) < 2 || len(a.CountryCode) > 3:
		return a, fmt.Errorf("%w: shippingAddress.countryCode must have 2 or 3 characters", ErrOrderInvalidInput)
	}
	return a, nil
}

func addressSnapshot(a domain.Address) map[string]any {
	return map[string]any{
		"line1":       a.Line1,
		"line2":       a.Line2,
		"city":        a.City,
		"state":       a.State,
		"postalCode":  a.PostalCode,
		"countryCode": a.CountryCode,
	}
}

func optionalString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
