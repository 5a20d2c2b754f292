package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/techfy/storefront-api/internal/domain"
	"github.com/techfy/storefront-api/internal/platform/ratelimit"
)

func TestSupportRoutesRequireStaff(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(http.MethodGet, "/api/support/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = f.do(http.MethodGet, "/api/support/orders", f.token("cust-1", domain.RoleCustomer, ""), nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "forbidden", decodeBody(t, rr)["error"])

	for _, role := range []domain.Role{domain.RoleAdmin, domain.RoleSupport} {
		rr = f.do(http.MethodGet, "/api/support/orders", f.token("staff", role, ""), nil)
		assert.Equal(t, http.StatusOK, rr.Code, string(role))
	}
}

func TestSupportListOrders(t *testing.T) {
	f := newAPIFixture(t)
	staff := f.token("staff-1", domain.RoleSupport, "")
	for i := 0; i < 3; i++ {
		f.placeOrder("")
	}

	rr := f.do(http.MethodGet, "/api/support/orders?page=2&limit=2&q=ana", staff, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp supportOrderListResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Page)
	assert.Equal(t, 2, resp.Limit)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 2, resp.TotalPages)
	require.Len(t, resp.Orders, 1)
	assert.Equal(t, 1, resp.Orders[0].ItemsCount)
	assert.Equal(t, "ana@example.com", resp.Orders[0].CustomerEmail)

	rr = f.do(http.MethodGet, "/api/support/orders?status=shipped", staff, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Empty(t, resp.Orders)
	assert.Equal(t, 1, resp.TotalPages)
}

func TestSupportListOrdersRejectsBadQuery(t *testing.T) {
	f := newAPIFixture(t)
	staff := f.token("staff-1", domain.RoleAdmin, "")

	for _, path := range []string{
		"/api/support/orders?limit=51",
		"/api/support/orders?page=0",
		"/api/support/orders?status=LOST",
	} {
		rr := f.do(http.MethodGet, path, staff, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code, path)
		assert.Equal(t, "invalid_request", decodeBody(t, rr)["error"], path)
	}
}

func TestSupportLookup(t *testing.T) {
	f := newAPIFixture(t)
	staff := f.token("staff-1", domain.RoleSupport, "")
	order := f.placeOrder("")

	rr := f.do(http.MethodGet, "/api/support/orders/lookup?orderNumber="+order.OrderNumber+"&email=ANA@example.com", staff, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	found := decodeOrder(t, rr)
	assert.Equal(t, order.OrderNumber, found.OrderNumber)

	rr = f.do(http.MethodGet, "/api/support/orders/lookup?orderNumber="+order.OrderNumber+"&email=other@example.com", staff, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = f.do(http.MethodGet, "/api/support/orders/lookup?orderNumber=JJ", staff, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeBody(t, rr)["fields"], "orderNumber")

	rr = f.do(http.MethodGet, "/api/support/orders/lookup?orderNumber="+order.OrderNumber+"&email=nope", staff, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(http.MethodGet, "/api/support/orders/lookup?orderNumber=JJ99999999", staff, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSupportUpdateAddress(t *testing.T) {
	f := newAPIFixture(t)
	staff := f.token("staff-1", domain.RoleSupport, "")
	order := f.placeOrder("")
	path := "/api/support/orders/" + order.OrderNumber + "/address"
	body := map[string]any{
		"shippingAddress": map[string]any{"line1": "9 New Rd", "city": "Lisbon", "postalCode": "1000", "countryCode": "pt"},
		"reason":          "customer <i>moved</i>",
	}

	rr := f.do(http.MethodPatch, path, staff, body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp orderMutationResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "9 New Rd", resp.Order.ShippingAddress.Line1)
	require.NotNil(t, resp.Warehouse)
	assert.True(t, resp.Warehouse.Success)
	assert.Equal(t, "WMS-"+order.OrderNumber, resp.Warehouse.LabelID)
	require.Len(t, resp.Order.SupportLogs, 1)
	assert.Equal(t, string(domain.SupportActionChangeAddress), resp.Order.SupportLogs[0].Action)
	assert.Equal(t, "customer moved", resp.Order.SupportLogs[0].Details["reason"])

	for _, status := range []string{"SHIPPED", "DELIVERED"} {
		rr = f.do(http.MethodPatch, "/api/support/orders/"+order.OrderNumber+"/status", staff, map[string]any{"status": status})
		require.Equal(t, http.StatusOK, rr.Code)
		rr = f.do(http.MethodPatch, path, staff, body)
		assert.Equal(t, http.StatusConflict, rr.Code, status)
		assert.Equal(t, "order_locked", decodeBody(t, rr)["error"])
	}
}

func TestSupportUpdateAddressValidation(t *testing.T) {
	f := newAPIFixture(t)
	staff := f.token("staff-1", domain.RoleSupport, "")
	order := f.placeOrder("")

	rr := f.do(http.MethodPatch, "/api/support/orders/"+order.OrderNumber+"/address", staff, map[string]any{
		"shippingAddress": map[string]any{"line1": "", "city": "Lisbon", "postalCode": "1000", "countryCode": "p"},
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	fields, ok := decodeBody(t, rr)["fields"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, fields, "shippingAddress.line1")
	assert.Contains(t, fields, "shippingAddress.countryCode")
}

func TestSupportUpdateStatus(t *testing.T) {
	f := newAPIFixture(t)
	staff := f.token("staff-1", domain.RoleAdmin, "")
	order := f.placeOrder("")
	path := "/api/support/orders/" + order.OrderNumber + "/status"

	rr := f.do(http.MethodPatch, path, staff, map[string]any{"status": "delivered", "reason": "carrier scan"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp orderMutationResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "DELIVERED", resp.Order.Status)
	assert.NotNil(t, resp.Order.ShippedAt)
	assert.NotNil(t, resp.Order.DeliveredAt)
	require.Len(t, resp.Order.SupportLogs, 1)
	assert.Equal(t, "DELIVERED", resp.Order.SupportLogs[0].Details["status"])
	require.NotNil(t, resp.Warehouse)

	rr = f.do(http.MethodPatch, path, staff, map[string]any{"status": "LOST"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeBody(t, rr)["fields"], "status")

	rr = f.do(http.MethodPatch, "/api/support/orders/JJ99999999/status", staff, map[string]any{"status": "PACKING"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSupportRateLimited(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(1, time.Minute, nil)
	f := newAPIFixture(t, withSupportLimiter(limiter))
	staff := f.token("staff-1", domain.RoleSupport, "")

	rr := f.do(http.MethodGet, "/api/support/orders", staff, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(http.MethodGet, "/api/support/orders", staff, nil)
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", decodeBody(t, rr)["error"])
}
