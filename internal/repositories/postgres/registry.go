package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	ppostgres "github.com/techfy/storefront-api/internal/platform/postgres"
	"github.com/techfy/storefront-api/internal/repositories"
)

type Registry struct {
	db      *gorm.DB
	orders  *OrderRepository
	catalog *CatalogRepository
}

var _ repositories.Registry = (*Registry)(nil)

// Migrate creates or updates the order and catalog tables.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("migrate requires database")
	}
	if err := db.WithContext(ctx).AutoMigrate(&productModel{}, &orderModel{}, &orderItemModel{}, &supportLogModel{}); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

func NewRegistry(db *gorm.DB) (*Registry, error) {
	orders, err := NewOrderRepository(db)
	if err != nil {
		return nil, err
	}
	catalog, err := NewCatalogRepository(db)
	if err != nil {
		return nil, err
	}
	return &Registry{db: db, orders: orders, catalog: catalog}, nil
}

func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

func (r *Registry) Catalog() repositories.ProductCatalog { return r.catalog }

// Products exposes the catalog writer used for seeding.
func (r *Registry) Products() *CatalogRepository { return r.catalog }

func (r *Registry) Close(context.Context) error { return ppostgres.Close(r.db) }

func (r *Registry) HealthChecks() []repositories.DependencyCheck {
	return []repositories.DependencyCheck{{Name: "postgres", Check: ppostgres.Pinger(r.db)}}
}
