package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/techfy/storefront-api/internal/domain"
	ppostgres "github.com/techfy/storefront-api/internal/platform/postgres"
	"github.com/techfy/storefront-api/internal/repositories"
)

type CatalogRepository struct {
	db *gorm.DB
}

var _ repositories.ProductCatalog = (*CatalogRepository)(nil)

func NewCatalogRepository(db *gorm.DB) (*CatalogRepository, error) {
	if db == nil {
		return nil, errors.New("catalog repository requires database")
	}
	return &CatalogRepository{db: db}, nil
}

func (r *CatalogRepository) LookupProducts(ctx context.Context, ids []int64) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var models []productModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, ppostgres.WrapError("catalog.lookup", err)
	}
	products := make([]domain.Product, len(models))
	for i, m := range models {
		products[i] = domain.Product{ID: m.ID, Name: m.Name, Price: m.Price, Image: m.Image}
	}
	return products, nil
}

// Upsert writes products, replacing name, price and image of existing ids.
func (r *CatalogRepository) Upsert(ctx context.Context, products []domain.Product) error {
	if len(products) == 0 {
		return nil
	}
	models := make([]productModel, len(products))
	for i, p := range products {
		models[i] = productModel{ID: p.ID, Name: p.Name, Price: p.Price, Image: p.Image}
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "price", "image"}),
	}).Create(&models).Error
	return ppostgres.WrapError("catalog.upsert", err)
}
