package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/techfy/storefront-api/internal/platform/httpx"
	"github.com/techfy/storefront-api/internal/platform/pagination"
	"github.com/techfy/storefront-api/internal/platform/requestctx"
	"github.com/techfy/storefront-api/internal/platform/validation"
	"github.com/techfy/storefront-api/internal/services"
)

// writeOrderError maps service errors onto the JSON error envelope. Unknown errors are logged and
// reported as a bare 500 so internal details never reach the client.
func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	httpx.WriteError(ctx, w, orderErrorEnvelope(ctx, err))
}

func orderErrorEnvelope(ctx context.Context, err error) httpx.Error {
	if fields, ok := validation.AsFieldErrors(err); ok {
		return validationError(fields)
	}
	var pageErr *pagination.FieldError
	if errors.As(err, &pageErr) {
		return validationError(validation.FieldErrors{pageErr.Field: pageErr.Reason})
	}

	switch {
	case errors.Is(err, services.ErrInvalidLineItem):
		return httpx.NewError("invalid_line_item", err.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrOrderInvalidInput), errors.Is(err, services.ErrPricingInvalidInput):
		return httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrOrderForbidden):
		return httpx.NewError("forbidden", "you do not have access to this order", http.StatusForbidden)
	case errors.Is(err, services.ErrOrderNotFound):
		return httpx.NewError("order_not_found", "order not found", http.StatusNotFound)
	case errors.Is(err, services.ErrInvalidTransition):
		return httpx.NewError("invalid_transition", err.Error(), http.StatusConflict)
	case errors.Is(err, services.ErrOrderLocked):
		return httpx.NewError("order_locked", err.Error(), http.StatusConflict)
	case errors.Is(err, services.ErrAllocationExhausted):
		return httpx.NewError("allocation_exhausted", "could not allocate an order number, try again", http.StatusServiceUnavailable)
	case errors.Is(err, services.ErrOrderConflict):
		return httpx.NewError("order_conflict", "order was modified concurrently, retry the request", http.StatusConflict)
	case errors.Is(err, services.ErrOrderUnavailable):
		return httpx.NewError("order_unavailable", "order store unavailable", http.StatusServiceUnavailable)
	default:
		requestctx.Logger(ctx).Error("unhandled order error", zap.Error(err))
		return httpx.NewError("internal_error", "internal server error", http.StatusInternalServerError)
	}
}

func validationError(fields validation.FieldErrors) httpx.Error {
	return httpx.NewError("invalid_request", "request validation failed", http.StatusBadRequest).
		WithDetails(map[string]any{"fields": map[string]string(fields)})
}
