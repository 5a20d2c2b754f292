package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	domain "github.com/techfy/storefront-api/internal/domain"
	"github.com/techfy/storefront-api/internal/repositories"
)

// OrderStore keeps orders in process memory, keyed by order number. A single mutex serialises
// writes, so version checks and uniqueness hold across goroutines.
type OrderStore struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

var _ repositories.OrderRepository = (*OrderStore)(nil)

func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[string]domain.Order)}
}

// Len reports how many orders are stored.
func (s *OrderStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

func (s *OrderStore) Insert(_ context.Context, order domain.Order) error {
	number := strings.TrimSpace(order.OrderNumber)
	if number == "" {
		return repositories.NewOrderError("orders.insert", repositories.OrderErrorInvalid, "order number is required", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[number]; exists {
		return repositories.NewOrderError("orders.insert", repositories.OrderErrorDuplicateNumber, "order number already taken", nil)
	}
	s.orders[number] = cloneOrder(order)
	return nil
}

func (s *OrderStore) Update(_ context.Context, order domain.Order, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.orders[order.OrderNumber]
	if !ok {
		return repositories.NewOrderError("orders.update", repositories.OrderErrorNotFound, "order not found", nil)
	}
	if stored.Version != expectedVersion {
		return repositories.NewOrderError("orders.update", repositories.OrderErrorVersionConflict, "order was modified concurrently", nil)
	}

	next := stored
	next.Status = order.Status
	next.ShippingAddress = order.ShippingAddress
	next.ShippedAt = cloneTime(order.ShippedAt)
	next.DeliveredAt = cloneTime(order.DeliveredAt)
	next.UpdatedAt = order.UpdatedAt
	next.Version = order.Version
	next.SupportLog = append(cloneLog(stored.SupportLog), cloneLog(repositories.NewSupportEntries(order, len(stored.SupportLog)))...)
	s.orders[order.OrderNumber] = next
	return nil
}

func (s *OrderStore) FindByNumber(_ context.Context, orderNumber string) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[strings.TrimSpace(orderNumber)]
	if !ok {
		return domain.Order{}, repositories.NewOrderError("orders.find", repositories.OrderErrorNotFound, "order not found", nil)
	}
	return cloneOrder(order), nil
}

func (s *OrderStore) ExistsByNumber(_ context.Context, orderNumber string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.orders[strings.TrimSpace(orderNumber)]
	return ok, nil
}

func (s *OrderStore) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	userID = strings.TrimSpace(userID)
	result := make([]domain.Order, 0)
	if userID == "" {
		return result, nil
	}
	s.mu.RLock()
	for _, order := range s.orders {
		if order.UserID == userID {
			result = append(result, cloneOrder(order))
		}
	}
	s.mu.RUnlock()
	sortNewestFirst(result)
	return result, nil
}

func (s *OrderStore) Search(_ context.Context, filter repositories.OrderSearchFilter) (domain.PageResult[domain.Order], error) {
	matched := make([]domain.Order, 0)
	s.mu.RLock()
	for _, order := range s.orders {
		if repositories.MatchesSearch(order, filter) {
			matched = append(matched, cloneOrder(order))
		}
	}
	s.mu.RUnlock()
	sortNewestFirst(matched)
	return repositories.Paginate(matched, filter.Page), nil
}

func sortNewestFirst(orders []domain.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].OrderNumber > orders[j].OrderNumber
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}
