package memory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	domain "github.com/techfy/storefront-api/internal/domain"
	"github.com/techfy/storefront-api/internal/repositories"
)

// Catalog is a fixed product list, typically loaded from a YAML seed file.
type Catalog struct {
	mu       sync.RWMutex
	products map[int64]domain.Product
}

var _ repositories.ProductCatalog = (*Catalog)(nil)

func NewCatalog(products ...domain.Product) *Catalog {
	c := &Catalog{products: make(map[int64]domain.Product, len(products))}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

type catalogFile struct {
	Products []struct {
		ID    int64  `yaml:"id"`
		Name  string `yaml:"name"`
		Price int64  `yaml:"price"`
		Image string `yaml:"image"`
	} `yaml:"products"`
}

// LoadCatalogFile reads a seed file of the form:
//
//	products:
//	  - {id: 1, name: Linen Shirt, price: 2500}
func LoadCatalogFile(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog seed: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("catalog seed %s: %w", path, err)
	}
	products := make([]domain.Product, 0, len(file.Products))
	for i, p := range file.Products {
		if p.ID <= 0 || p.Price < 0 {
			return nil, fmt.Errorf("catalog seed %s: product %d has invalid id or price", path, i)
		}
		products = append(products, domain.Product{ID: p.ID, Name: p.Name, Price: p.Price, Image: p.Image})
	}
	return NewCatalog(products...), nil
}

func (c *Catalog) LookupProducts(_ context.Context, ids []int64) ([]domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[int64]struct{}, len(ids))
	out := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if p, ok := c.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// SetPrice changes a product price in place.
func (c *Catalog) SetPrice(id int64, price int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.products[id]; ok {
		p.Price = price
		c.products[id] = p
	}
}

// Products returns every product ordered by id.
func (c *Catalog) Products() []domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
