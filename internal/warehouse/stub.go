package warehouse

import (
	"context"
	"time"

	domain "github.com/techfy/storefront-api/internal/domain"
	"github.com/techfy/storefront-api/internal/services"
)

// StubNotifier simulates a WMS that accepts every change after a short delay.
type StubNotifier struct {
	delay time.Duration
}

var _ services.FulfillmentNotifier = (*StubNotifier)(nil)

func NewStubNotifier(delay time.Duration) *StubNotifier {
	return &StubNotifier{delay: delay}
}

func (n *StubNotifier) NotifyAddressChange(ctx context.Context, orderNumber string, _ domain.Address) (services.FulfillmentResult, error) {
	if err := n.wait(ctx); err != nil {
		return services.FulfillmentResult{}, err
	}
	return services.FulfillmentResult{
		Success:   true,
		Reference: orderNumber,
		LabelID:   "WMS-" + orderNumber,
	}, nil
}

func (n *StubNotifier) NotifyStatusChange(ctx context.Context, orderNumber string, _ domain.OrderStatus) (services.FulfillmentResult, error) {
	if err := n.wait(ctx); err != nil {
		return services.FulfillmentResult{}, err
	}
	return services.FulfillmentResult{Success: true, Reference: orderNumber}, nil
}

func (n *StubNotifier) wait(ctx context.Context) error {
	if n == nil || n.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(n.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
