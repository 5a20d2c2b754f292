package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/techfy/storefront-api/internal/domain"
	"github.com/techfy/storefront-api/internal/platform/auth"
	"github.com/techfy/storefront-api/internal/platform/httpx"
	"github.com/techfy/storefront-api/internal/platform/pagination"
	"github.com/techfy/storefront-api/internal/platform/validation"
	"github.com/techfy/storefront-api/internal/services"
)

const (
	maxSupportBodySize = 8 * 1024
	statusReason       = "must be one of: PLACED PACKING SHIPPED DELIVERED CANCELLED"
)

type lookupQuery struct {
	OrderNumber string `json:"orderNumber" validate:"required,min=3,max=64"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
}

type updateAddressRequest struct {
	ShippingAddress addressRequest `json:"shippingAddress"`
	Reason          string         `json:"reason,omitempty" validate:"max=500"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

// SupportHandlers serves the staff console endpoints. The role gate is applied by the router
// group so every route here assumes an authenticated staff caller.
type SupportHandlers struct {
	orders services.OrderService
}

func NewSupportHandlers(orders services.OrderService) *SupportHandlers {
	return &SupportHandlers{orders: orders}
}

// Routes registers /support endpoints.
func (h *SupportHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/support/orders", func(rt chi.Router) {
		rt.Get("/", h.listOrders)
		rt.Get("/lookup", h.lookupOrder)
		rt.Patch("/{orderNumber}/address", h.updateAddress)
		rt.Patch("/{orderNumber}/status", h.updateStatus)
	})
}

func (h *SupportHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	page, err := pagination.Parse(query, pagination.Options{})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	filter := services.SupportOrderFilter{
		Actor: auth.ActorFromContext(ctx),
		Query: validation.Sanitize(query.Get("q")),
		Page:  page,
	}
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, ok := domain.ParseOrderStatus(raw)
		if !ok {
			writeOrderError(ctx, w, validation.FieldErrors{"status": statusReason})
			return
		}
		filter.Status = &status
	}

	result, err := h.orders.SearchOrders(ctx, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	rows := make([]supportOrderSummary, 0, len(result.Items))
	for _, order := range result.Items {
		rows = append(rows, buildSupportSummary(order))
	}
	httpx.WriteJSON(w, http.StatusOK, supportOrderListResponse{
		Orders:     rows,
		Page:       result.Page,
		Limit:      result.Limit,
		Total:      result.Total,
		TotalPages: result.TotalPages(),
	})
}

func (h *SupportHandlers) lookupOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	values := r.URL.Query()
	q := lookupQuery{
		OrderNumber: strings.TrimSpace(values.Get("orderNumber")),
		Email:       strings.TrimSpace(values.Get("email")),
	}
	if err := validation.Struct(q); err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	order, err := h.orders.LookupOrder(ctx, services.LookupOrderQuery{
		Actor:       auth.ActorFromContext(ctx),
		OrderNumber: q.OrderNumber,
		Email:       q.Email,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order, true)})
}

func (h *SupportHandlers) updateAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req updateAddressRequest
	if err := httpx.DecodeJSON(r, &req, maxSupportBodySize); err != nil {
		httpx.WriteError(ctx, w, httpx.DecodeError(err))
		return
	}
	if err := validation.Struct(req); err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	result, err := h.orders.UpdateShippingAddress(ctx, services.UpdateAddressCommand{
		OrderNumber: strings.TrimSpace(chi.URLParam(r, "orderNumber")),
		Actor:       auth.ActorFromContext(ctx),
		Address:     req.ShippingAddress.toDomain(),
		Reason:      validation.Sanitize(req.Reason),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderMutationResponse{
		Order:     buildOrderPayload(result.Order, true),
		Warehouse: result.Warehouse,
	})
}

func (h *SupportHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req updateStatusRequest
	if err := httpx.DecodeJSON(r, &req, maxSupportBodySize); err != nil {
		httpx.WriteError(ctx, w, httpx.DecodeError(err))
		return
	}
	if err := validation.Struct(req); err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	status, ok := domain.ParseOrderStatus(req.Status)
	if !ok {
		writeOrderError(ctx, w, validation.FieldErrors{"status": statusReason})
		return
	}

	result, err := h.orders.UpdateStatus(ctx, services.UpdateStatusCommand{
		OrderNumber: strings.TrimSpace(chi.URLParam(r, "orderNumber")),
		Actor:       auth.ActorFromContext(ctx),
		Status:      status,
		Reason:      validation.Sanitize(req.Reason),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderMutationResponse{
		Order:     buildOrderPayload(result.Order, true),
		Warehouse: result.Warehouse,
	})
}
