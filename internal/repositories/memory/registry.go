package memory

import (
	"context"

	"github.com/techfy/storefront-api/internal/repositories"
)

// Registry wires the in-memory stores.
type Registry struct {
	orders  *OrderStore
	catalog *Catalog
}

var _ repositories.Registry = (*Registry)(nil)

func NewRegistry(catalog *Catalog) *Registry {
	if catalog == nil {
		catalog = NewCatalog()
	}
	return &Registry{orders: NewOrderStore(), catalog: catalog}
}

func (r *Registry) Orders() repositories.OrderRepository { return r.orders }
func (r *Registry) Catalog() repositories.ProductCatalog { return r.catalog }
func (r *Registry) Close(context.Context) error { return nil }
func (r *Registry) HealthChecks() []repositories.DependencyCheck { return nil }
