package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/techfy/storefront-api/internal/domain"
	"github.com/techfy/storefront-api/internal/platform/auth"
	"github.com/techfy/storefront-api/internal/platform/idempotency"
	"github.com/techfy/storefront-api/internal/platform/ratelimit"
	"github.com/techfy/storefront-api/internal/repositories/memory"
	"github.com/techfy/storefront-api/internal/services"
	"github.com/techfy/storefront-api/internal/warehouse"
)

const testSecret = "handler-test-secret"

type apiFixture struct {
	t        *testing.T
	router   http.Handler
	store    *memory.OrderStore
	verifier *auth.JWTVerifier
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	supportLimiter ratelimit.Limiter
}

func withSupportLimiter(l ratelimit.Limiter) fixtureOption {
	return func(cfg *fixtureConfig) { cfg.supportLimiter = l }
}

func newAPIFixture(t *testing.T, opts ...fixtureOption) *apiFixture {
	t.Helper()
	var cfg fixtureConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	store := memory.NewOrderStore()
	catalog := memory.NewCatalog(
		domain.Product{ID: 1, Name: "Linen Shirt", Price: 2500},
		domain.Product{ID: 2, Name: "Canvas Tote", Price: 1200},
	)
	pricing, err := services.NewPricingEngine(services.PricingEngineDeps{Catalog: catalog, FreeShippingThreshold: 5000, FlatShippingFee: 250})
	require.NoError(t, err)
	numbers, err := services.NewOrderNumberAllocator(services.OrderNumberAllocatorDeps{Orders: store})
	require.NoError(t, err)
	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:   store,
		Pricing:  pricing,
		Numbers:  numbers,
		Notifier: warehouse.NewStubNotifier(0),
	})
	require.NoError(t, err)

	verifier, err := auth.NewJWTVerifier([]byte(testSecret))
	require.NoError(t, err)
	authn := auth.NewAuthenticator(verifier)

	supportMiddlewares := []func(http.Handler) http.Handler{
		authn.Required(),
		auth.RequireCapability(domain.CapabilityManageOrders),
	}
	if cfg.supportLimiter != nil {
		supportMiddlewares = append(supportMiddlewares, ratelimit.Middleware(cfg.supportLimiter, "support"))
	}

	router := NewRouter(
		WithOrderRoutes(NewOrderHandlers(authn, orders,
			WithOrderIdempotency(idempotency.Middleware(idempotency.NewMemoryStore(), idempotency.WithOptionalKey())),
		).Routes),
		WithSupportRoutes(NewSupportHandlers(orders).Routes),
		WithSupportMiddlewares(supportMiddlewares...),
	)
	return &apiFixture{t: t, router: router, store: store, verifier: verifier}
}

func (f *apiFixture) token(uid string, role domain.Role, email string) string {
	f.t.Helper()
	token, err := f.verifier.Sign(auth.Claims{Subject: uid, Role: string(role), Email: email}, time.Hour)
	require.NoError(f.t, err)
	return token
}

func (f *apiFixture) do(method, path, token string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func (f *apiFixture) placeOrder(token string) orderPayload {
	f.t.Helper()
	rr := f.do(http.MethodPost, "/api/orders", token, validOrderBody())
	require.Equal(f.t, http.StatusCreated, rr.Code, rr.Body.String())
	var resp orderResponse
	require.NoError(f.t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Order
}

func validOrderBody() map[string]any {
	return map[string]any{
		"customer": map[string]any{"name": "Ana <b>Silva</b>", "email": "Ana@Example.com"},
		"shippingAddress": map[string]any{
			"line1": "1 Main St", "city": "Porto", "postalCode": "4000", "countryCode": "pt",
		},
		"items": []map[string]any{{"productId": 1, "quantity": 2, "selectedSize": "M"}},
	}
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func decodeOrder(t *testing.T, rr *httptest.ResponseRecorder) orderPayload {
	t.Helper()
	var resp orderResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	return resp.Order
}
