package services

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/techfy/storefront-api/internal/domain"
	"github.com/techfy/storefront-api/internal/repositories"
)

const (
	defaultFreeShippingThreshold int64 = 5000
	defaultFlatShippingFee       int64 = 250
)

var (
	// ErrPricingInvalidInput signals empty lines or non-positive quantities.
	ErrPricingInvalidInput = errors.New("pricing: invalid input")
	// ErrInvalidLineItem is returned when a requested product is not in the catalog. The whole
	// order is rejected.
	ErrInvalidLineItem = errors.New("pricing: unknown product")
)

// PricingEngine prices checkout lines from catalog prices.
type PricingEngine struct {
	catalog               repositories.ProductCatalog
	freeShippingThreshold int64
	flatShippingFee       int64
}

type PricingEngineDeps struct {
	Catalog repositories.ProductCatalog
	// FreeShippingThreshold is the subtotal at or above which shipping is free.
	FreeShippingThreshold int64
	FlatShippingFee       int64
}

func NewPricingEngine(deps PricingEngineDeps) (*PricingEngine, error) {
	if deps.Catalog == nil {
		return nil, errors.New("pricing engine: product catalog is required")
	}
	threshold := deps.FreeShippingThreshold
	if threshold <= 0 {
		threshold = defaultFreeShippingThreshold
	}
	fee := deps.FlatShippingFee
	if fee < 0 {
		fee = defaultFlatShippingFee
	}
	return &PricingEngine{
		catalog:               deps.Catalog,
		freeShippingThreshold: threshold,
		flatShippingFee:       fee,
	}, nil
}

// PricedOrder is the frozen outcome of pricing.
type PricedOrder struct {
	Items  []domain.OrderItem
	Totals domain.OrderTotals
}

// Price looks up every referenced product once and prices each line independently, so the same
// product may appear on several lines.
func (e *PricingEngine) Price(ctx context.Context, lines []OrderLineInput) (PricedOrder, error) {
	if len(lines) == 0 {
		return PricedOrder{}, fmt.Errorf("%w: at least one line item is required", ErrPricingInvalidInput)
	}

	ids := make([]int64, 0, len(lines))
	seen := make(map[int64]struct{}, len(lines))
	for i, line := range lines {
		if line.Quantity <= 0 {
			return PricedOrder{}, fmt.Errorf("%w: items[%d].quantity must be positive", ErrPricingInvalidInput, i)
		}
		if line.ProductID <= 0 {
			return PricedOrder{}, fmt.Errorf("%w: items[%d].productId must be positive", ErrPricingInvalidInput, i)
		}
		if _, ok := seen[line.ProductID]; !ok {
			seen[line.ProductID] = struct{}{}
			ids = append(ids, line.ProductID)
		}
	}

	products, err := e.catalog.LookupProducts(ctx, ids)
	if err != nil {
		return PricedOrder{}, fmt.Errorf("pricing: lookup products: %w", err)
	}
	prices := make(map[int64]int64, len(products))
	for _, product := range products {
		if _, requested := seen[product.ID]; requested {
			prices[product.ID] = product.Price
		}
	}
	for _, id := range ids {
		if _, ok := prices[id]; !ok {
			return PricedOrder{}, fmt.Errorf("%w: product %d", ErrInvalidLineItem, id)
		}
	}

	items := make([]domain.OrderItem, len(lines))
	var subtotal int64
	for i, line := range lines {
		unit := prices[line.ProductID]
		lineTotal := unit * int64(line.Quantity)
		items[i] = domain.OrderItem{
			ProductID:     line.ProductID,
			Quantity:      line.Quantity,
			UnitPrice:     unit,
			LineTotal:     lineTotal,
			SelectedSize:  line.SelectedSize,
			SelectedColor: line.SelectedColor,
		}
		subtotal += lineTotal
	}

	totals := domain.OrderTotals{Subtotal: subtotal, Shipping: e.shippingFor(subtotal)}
	totals.Total = totals.Subtotal - totals.Discount + totals.Shipping
	return PricedOrder{Items: items, Totals: totals}, nil
}

func (e *PricingEngine) shippingFor(subtotal int64) int64 {
	if subtotal >= e.freeShippingThreshold {
		return 0
	}
	return e.flatShippingFee
}
