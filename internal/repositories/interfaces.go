package repositories

import (
	"context"

	domain "github.com/techfy/storefront-api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Catalog() ProductCatalog
	// HealthChecks lists checks for the backing stores of this registry.
	HealthChecks() []DependencyCheck
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// OrderRepository persists orders, their frozen line items and the append-only support log.
//
// Implementations must enforce order-number uniqueness and treat Update as a compare-and-set
// on Version: when the stored version differs from expectedVersion the call fails with a
// conflict error and nothing is written. Support-log entries already stored are never
// rewritten; only entries beyond the stored count are appended.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order, expectedVersion int64) error
	FindByNumber(ctx context.Context, orderNumber string) (domain.Order, error)
	ExistsByNumber(ctx context.Context, orderNumber string) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	Search(ctx context.Context, filter OrderSearchFilter) (domain.PageResult[domain.Order], error)
}

// OrderSearchFilter narrows the staff order listing.
type OrderSearchFilter struct {
	Status *domain.OrderStatus
	// Query matches order number, customer name or customer email, case-insensitively.
	Query string
	Page  domain.PageQuery
}

// ProductCatalog is the read-only catalog collaborator used during pricing.
type ProductCatalog interface {
	// LookupProducts returns the products that exist among ids. Missing ids are simply absent.
	LookupProducts(ctx context.Context, ids []int64) ([]domain.Product, error)
}

// HealthRepository aggregates backend reachability for readiness checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.HealthReport, error)
}
