package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/techfy/storefront-api/internal/domain"
	"github.com/techfy/storefront-api/internal/repositories"
	"github.com/techfy/storefront-api/internal/repositories/memory"
)

var (
	testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	guestActor    = domain.Actor{}
	customerActor = domain.Actor{ID: "cust-1", Role: domain.RoleCustomer, Email: "ana@example.com"}
	otherCustomer = domain.Actor{ID: "cust-2", Role: domain.RoleCustomer}
	supportActor  = domain.Actor{ID: "staff-1", Role: domain.RoleSupport}
	adminActor    = domain.Actor{ID: "staff-2", Role: domain.RoleAdmin}
)

type recordingNotifier struct {
	mu       sync.Mutex
	calls    []string
	err      error
	addrFn   func(ctx context.Context) error
	statusFn func(ctx context.Context) error
}

func (n *recordingNotifier) NotifyAddressChange(ctx context.Context, orderNumber string, _ domain.Address) (FulfillmentResult, error) {
	n.record("address:" + orderNumber)
	if n.addrFn != nil {
		if err := n.addrFn(ctx); err != nil {
			return FulfillmentResult{}, err
		}
	}
	if n.err != nil {
		return FulfillmentResult{}, n.err
	}
	return FulfillmentResult{Success: true, LabelID: "WMS-" + orderNumber}, nil
}

func (n *recordingNotifier) NotifyStatusChange(ctx context.Context, orderNumber string, status domain.OrderStatus) (FulfillmentResult, error) {
	n.record(fmt.Sprintf("status:%s:%s", orderNumber, status))
	if n.statusFn != nil {
		if err := n.statusFn(ctx); err != nil {
			return FulfillmentResult{}, err
		}
	}
	if n.err != nil {
		return FulfillmentResult{}, n.err
	}
	return FulfillmentResult{Success: true, Reference: orderNumber}, nil
}

func (n *recordingNotifier) record(call string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, call)
}

type serviceFixture struct {
	svc      OrderService
	store    *memory.OrderStore
	catalog  *memory.Catalog
	notifier *recordingNotifier
	clock    *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newServiceFixture(t *testing.T, orders repositories.OrderRepository) serviceFixture {
	t.Helper()
	store := memory.NewOrderStore()
	if orders == nil {
		orders = store
	}
	catalog := memory.NewCatalog(
		domain.Product{ID: 1, Name: "Linen Shirt", Price: 2500},
		domain.Product{ID: 2, Name: "Canvas Tote", Price: 1200},
		domain.Product{ID: 3, Name: "Wool Overcoat", Price: 18900},
	)
	pricing, err := NewPricingEngine(PricingEngineDeps{Catalog: catalog, FreeShippingThreshold: 5000, FlatShippingFee: 250})
	require.NoError(t, err)
	numbers, err := NewOrderNumberAllocator(OrderNumberAllocatorDeps{Orders: orders})
	require.NoError(t, err)
	clock := &fakeClock{now: testNow}
	notifier := &recordingNotifier{}
	svc, err := NewOrderService(OrderServiceDeps{
		Orders:   orders,
		Pricing:  pricing,
		Numbers:  numbers,
		Notifier: notifier,
		Clock:    clock.Now,
	})
	require.NoError(t, err)
	return serviceFixture{svc: svc, store: store, catalog: catalog, notifier: notifier, clock: clock}
}

func validPlaceCommand(actor domain.Actor, items ...OrderLineInput) PlaceOrderCommand {
	if len(items) == 0 {
		items = []OrderLineInput{{ProductID: 1, Quantity: 2}}
	}
	return PlaceOrderCommand{
		Actor:           actor,
		Customer:        domain.CustomerContact{Name: "Ana Silva", Email: "Ana@Example.com"},
		ShippingAddress: domain.Address{Line1: "1 Main St", City: "Porto", PostalCode: "4000", CountryCode: "pt"},
		Items:           items,
	}
}

func mustPlace(t *testing.T, f serviceFixture, cmd PlaceOrderCommand) Order {
	t.Helper()
	order, err := f.svc.PlaceOrder(context.Background(), cmd)
	require.NoError(t, err)
	return order
}

func setStatus(t *testing.T, f serviceFixture, number string, status domain.OrderStatus) {
	t.Helper()
	_, err := f.svc.UpdateStatus(context.Background(), UpdateStatusCommand{
		OrderNumber: number, Actor: supportActor, Status: status,
	})
	require.NoError(t, err, "UpdateStatus(%s)", status)
}
