package services

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/techfy/storefront-api/internal/domain"
	"github.com/techfy/storefront-api/internal/repositories/memory"
)

func newTestPricing(t *testing.T) *PricingEngine {
	t.Helper()
	catalog := memory.NewCatalog(
		domain.Product{ID: 1, Price: 2500},
		domain.Product{ID: 2, Price: 1200},
		domain.Product{ID: 3, Price: 99},
		domain.Product{ID: 4, Price: 0},
	)
	engine, err := NewPricingEngine(PricingEngineDeps{Catalog: catalog, FreeShippingThreshold: 5000, FlatShippingFee: 250})
	require.NoError(t, err)
	return engine
}

func TestPricingTotalsHoldForRandomLines(t *testing.T) {
	engine := newTestPricing(t)
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		lines := make([]OrderLineInput, 1+rng.Intn(5))
		for j := range lines {
			lines[j] = OrderLineInput{ProductID: int64(1 + rng.Intn(4)), Quantity: 1 + rng.Intn(4)}
		}
		priced, err := engine.Price(context.Background(), lines)
		require.NoError(t, err, "Price(%v)", lines)

		var sum int64
		for k, item := range priced.Items {
			require.Equal(t, item.UnitPrice*int64(lines[k].Quantity), item.LineTotal, "line %d", k)
			sum += item.LineTotal
		}
		totals := priced.Totals
		require.Equal(t, sum, totals.Subtotal)
		require.Zero(t, totals.Discount)
		require.Equal(t, totals.Subtotal-totals.Discount+totals.Shipping, totals.Total)
		require.Equal(t, totals.Subtotal >= 5000, totals.Shipping == 0, "shipping %d for subtotal %d", totals.Shipping, totals.Subtotal)
	}
}

func TestPricingThresholdBoundary(t *testing.T) {
	engine := newTestPricing(t)
	cases := []struct {
		name     string
		lines    []OrderLineInput
		shipping int64
		total    int64
	}{
		{"exactly threshold", []OrderLineInput{{ProductID: 1, Quantity: 2}}, 0, 5000},
		{"one below threshold", []OrderLineInput{{ProductID: 1, Quantity: 1}, {ProductID: 2, Quantity: 2}, {ProductID: 3, Quantity: 1}}, 250, 4999 + 250},
		{"small order", []OrderLineInput{{ProductID: 2, Quantity: 1}}, 250, 1450},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			priced, err := engine.Price(context.Background(), tc.lines)
			require.NoError(t, err)
			assert.Equal(t, tc.shipping, priced.Totals.Shipping)
			assert.Equal(t, tc.total, priced.Totals.Total)
		})
	}
}

func TestPricingRejectsUnknownProductAtomically(t *testing.T) {
	engine := newTestPricing(t)
	_, err := engine.Price(context.Background(), []OrderLineInput{
		{ProductID: 1, Quantity: 1},
		{ProductID: 404, Quantity: 1},
	})
	assert.ErrorIs(t, err, ErrInvalidLineItem)
}

func TestPricingDuplicateProductsPricedPerLine(t *testing.T) {
	engine := newTestPricing(t)
	priced, err := engine.Price(context.Background(), []OrderLineInput{
		{ProductID: 2, Quantity: 1, SelectedSize: "S"},
		{ProductID: 2, Quantity: 3, SelectedSize: "L"},
	})
	require.NoError(t, err)
	require.Len(t, priced.Items, 2)
	assert.Equal(t, int64(3600), priced.Items[1].LineTotal)
	assert.Equal(t, "L", priced.Items[1].SelectedSize)
}

func TestPricingRejectsInvalidInput(t *testing.T) {
	engine := newTestPricing(t)
	for name, lines := range map[string][]OrderLineInput{
		"empty":         nil,
		"zero quantity": {{ProductID: 1, Quantity: 0}},
		"negative id":   {{ProductID: -1, Quantity: 1}},
	} {
		_, err := engine.Price(context.Background(), lines)
		assert.ErrorIs(t, err, ErrPricingInvalidInput, name)
	}
}

func TestNewPricingEngineRequiresCatalog(t *testing.T) {
	_, err := NewPricingEngine(PricingEngineDeps{})
	assert.Error(t, err)
}
