package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/techfy/storefront-api/internal/domain"
	"github.com/techfy/storefront-api/internal/platform/auth"
	"github.com/techfy/storefront-api/internal/platform/httpx"
	"github.com/techfy/storefront-api/internal/platform/validation"
	"github.com/techfy/storefront-api/internal/services"
)

const maxPlaceOrderBodySize = 32 * 1024

type customerRequest struct {
	Name  string `json:"name" validate:"required,max=120"`
	Email string `json:"email" validate:"required,email,max=254"`
	Phone string `json:"phone,omitempty" validate:"max=40"`
}

type orderLineRequest struct {
	ProductID     int64  `json:"productId" validate:"gt=0"`
	Quantity      int    `json:"quantity" validate:"gt=0,lte=99"`
	SelectedSize  string `json:"selectedSize,omitempty" validate:"max=40"`
	SelectedColor string `json:"selectedColor,omitempty" validate:"max=40"`
}

type placeOrderRequest struct {
	Customer        customerRequest    `json:"customer"`
	ShippingAddress addressRequest     `json:"shippingAddress"`
	Items           []orderLineRequest `json:"items" validate:"required,min=1,max=50,dive"`
}

func (req placeOrderRequest) toCommand(actor domain.Actor) services.PlaceOrderCommand {
	lines := make([]services.OrderLineInput, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, services.OrderLineInput{
			ProductID:     item.ProductID,
			Quantity:      item.Quantity,
			SelectedSize:  validation.Sanitize(item.SelectedSize),
			SelectedColor: validation.Sanitize(item.SelectedColor),
		})
	}
	return services.PlaceOrderCommand{
		Actor: actor,
		Customer: domain.CustomerContact{
			Name:  validation.Sanitize(req.Customer.Name),
			Email: strings.TrimSpace(req.Customer.Email),
			Phone: validation.Sanitize(req.Customer.Phone),
		},
		ShippingAddress: req.ShippingAddress.toDomain(),
		Items:           lines,
	}
}

// OrderHandlers exposes checkout and the customer facing order endpoints.
type OrderHandlers struct {
	authn       *auth.Authenticator
	orders      services.OrderService
	idempotency func(http.Handler) http.Handler
}

type OrderHandlersOption func(*OrderHandlers)

// WithOrderIdempotency guards order submission with the given idempotency middleware.
func WithOrderIdempotency(mw func(http.Handler) http.Handler) OrderHandlersOption {
	return func(h *OrderHandlers) {
		h.idempotency = mw
	}
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, opts ...OrderHandlersOption) *OrderHandlers {
	h := &OrderHandlers{
		authn:  authn,
		orders: orders,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the order endpoints. Guests may place and read orders; listing and delivery
// confirmation are for signed-in customers.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Group(func(public chi.Router) {
		if h.authn != nil {
			public.Use(h.authn.Optional())
		}
		if h.idempotency != nil {
			public.With(h.idempotency).Post("/orders", h.placeOrder)
		} else {
			public.Post("/orders", h.placeOrder)
		}
		public.Get("/orders/{orderNumber}", h.getOrder)
	})
	r.Group(func(private chi.Router) {
		if h.authn != nil {
			private.Use(h.authn.Required())
		}
		private.With(auth.RequireCapability(domain.CapabilityListOwnOrders)).
			Get("/me/orders", h.listMyOrders)
		private.With(auth.RequireCapability(domain.CapabilityConfirmOwnDelivery)).
			Post("/orders/{orderNumber}/confirm-delivery", h.confirmDelivery)
	})
}

func (h *OrderHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req placeOrderRequest
	if err := httpx.DecodeJSON(r, &req, maxPlaceOrderBodySize); err != nil {
		httpx.WriteError(ctx, w, httpx.DecodeError(err))
		return
	}
	if err := validation.Struct(req); err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	order, err := h.orders.PlaceOrder(ctx, req.toCommand(auth.ActorFromContext(ctx)))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	w.Header().Set("Location", "/api/orders/"+order.OrderNumber)
	httpx.WriteJSON(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order, false)})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	order, err := h.orders.GetOrder(ctx, services.GetOrderQuery{
		OrderNumber: strings.TrimSpace(chi.URLParam(r, "orderNumber")),
		Actor:       auth.ActorFromContext(ctx),
		Email:       strings.TrimSpace(r.URL.Query().Get("email")),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order, false)})
}

func (h *OrderHandlers) listMyOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	orders, err := h.orders.ListCustomerOrders(ctx, identity.UID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	payload := make([]orderPayload, 0, len(orders))
	for _, order := range orders {
		payload = append(payload, buildOrderPayload(order, false))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"orders": payload})
}

func (h *OrderHandlers) confirmDelivery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	order, err := h.orders.ConfirmDelivery(ctx, services.ConfirmDeliveryCommand{
		OrderNumber: strings.TrimSpace(chi.URLParam(r, "orderNumber")),
		Actor:       auth.ActorFromContext(ctx),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order, false)})
}
