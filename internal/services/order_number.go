package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/techfy/storefront-api/internal/repositories"
)

const (
	defaultOrderNumberPrefix  = "JJ"
	defaultOrderNumberDigits  = 8
	defaultAllocationAttempts = 5
	maxOrderNumberDigits      = 18
)

// ErrAllocationExhausted is returned when every candidate number was already taken.
var ErrAllocationExhausted = errors.New("order number: allocation exhausted")

// OrderNumberAllocator generates random fixed-width order numbers and checks each candidate
// against the store. It keeps no state between calls.
type OrderNumberAllocator struct {
	orders   repositories.OrderRepository
	prefix   string
	digits   int
	attempts int
	random   io.Reader
	space    *big.Int
	logger   func(context.Context, string, map[string]any)
	histo    metric.Int64Histogram
}

type OrderNumberAllocatorDeps struct {
	Orders   repositories.OrderRepository
	Prefix   string
	Digits   int
	Attempts int
	// Random defaults to crypto/rand.
	Random io.Reader
	Logger func(ctx context.Context, event string, fields map[string]any)
}

func NewOrderNumberAllocator(deps OrderNumberAllocatorDeps) (*OrderNumberAllocator, error) {
	if deps.Orders == nil {
		return nil, errors.New("order number allocator: order repository is required")
	}
	prefix := strings.TrimSpace(deps.Prefix)
	if prefix == "" {
		prefix = defaultOrderNumberPrefix
	}
	digits := deps.Digits
	if digits <= 0 {
		digits = defaultOrderNumberDigits
	}
	if digits > maxOrderNumberDigits {
		return nil, fmt.Errorf("order number allocator: at most %d digits supported", maxOrderNumberDigits)
	}
	attempts := deps.Attempts
	if attempts <= 0 {
		attempts = defaultAllocationAttempts
	}
	random := deps.Random
	if random == nil {
		random = rand.Reader
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	histo, err := otel.Meter("github.com/techfy/storefront-api/internal/services").Int64Histogram(
		"orders.number_allocation.attempts",
		metric.WithDescription("Existence checks needed to allocate an order number"),
	)
	if err != nil {
		return nil, fmt.Errorf("order number allocator: metric: %w", err)
	}

	return &OrderNumberAllocator{
		orders:   deps.Orders,
		prefix:   prefix,
		digits:   digits,
		attempts: attempts,
		random:   random,
		space:    new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil),
		logger:   logger,
		histo:    histo,
	}, nil
}

// Attempts returns the allocation retry bound.
func (a *OrderNumberAllocator) Attempts() int { return a.attempts }

// Allocate returns a number no stored order uses. Each attempt performs exactly one existence
// check; after the last collision it fails with ErrAllocationExhausted.
func (a *OrderNumberAllocator) Allocate(ctx context.Context) (string, error) {
	number, _, err := a.AllocateWithin(ctx, a.attempts)
	return number, err
}

// AllocateWithin is Allocate with a caller-owned budget of existence checks. It reports how many
// checks it spent so a caller retrying after an insert conflict can stay inside one bound.
func (a *OrderNumberAllocator) AllocateWithin(ctx context.Context, budget int) (string, int, error) {
	if budget > a.attempts {
		budget = a.attempts
	}
	for attempt := 1; attempt <= budget; attempt++ {
		candidate, err := a.candidate()
		if err != nil {
			return "", attempt, fmt.Errorf("order number: generate: %w", err)
		}
		exists, err := a.orders.ExistsByNumber(ctx, candidate)
		if err != nil {
			return "", attempt, mapRepositoryError(err)
		}
		if !exists {
			a.record(ctx, attempt, "allocated")
			return candidate, attempt, nil
		}
		a.logger(ctx, "orders.number_collision", map[string]any{
			"attempt":     attempt,
			"orderNumber": candidate,
		})
	}

	used := max(budget, 0)
	a.record(ctx, used, "exhausted")
	a.logger(ctx, "orders.allocation_exhausted", map[string]any{
		"level":    "error",
		"attempts": used,
		"prefix":   a.prefix,
		"digits":   a.digits,
	})
	return "", used, fmt.Errorf("%w after %d attempts", ErrAllocationExhausted, used)
}

func (a *OrderNumberAllocator) candidate() (string, error) {
	n, err := rand.Int(a.random, a.space)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%0*d", a.prefix, a.digits, n), nil
}

func (a *OrderNumberAllocator) record(ctx context.Context, attempts int, outcome string) {
	a.histo.Record(ctx, int64(attempts), metric.WithAttributes(attribute.String("outcome", outcome)))
}
