package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/techfy/storefront-api/internal/domain"
	"github.com/techfy/storefront-api/internal/platform/auth"
)

var fixedTime = time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

func newOrderRequest(body, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req
}

func TestMiddleware_MissingHeaderRejectedByDefault(t *testing.T) {
	handlerCalled := false
	handler := Middleware(NewMemoryStore())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		handlerCalled = true
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newOrderRequest(`{"items":[]}`, ""))

	assert.False(t, handlerCalled, "handler should not be invoked when header is missing")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assertErrorResponse(t, rr.Body.Bytes(), "idempotency_key_required")
}

func TestMiddleware_OptionalKeyPassesThrough(t *testing.T) {
	store := NewMemoryStore()
	calls := 0
	handler := Middleware(store, WithOptionalKey())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, newOrderRequest(`{"items":[]}`, ""))
		assert.Equal(t, http.StatusCreated, rr.Code)
	}
	assert.Equal(t, 2, calls, "both keyless requests reach the handler")
	assert.Zero(t, store.Len())
}

func TestMiddleware_ReplaysStoredResponse(t *testing.T) {
	calls := 0
	handler := Middleware(NewMemoryStore(), WithClock(func() time.Time { return fixedTime }))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"order":{"orderNumber":"JJ00000001"}}`))
		}))

	rr1 := httptest.NewRecorder()
	handler.ServeHTTP(rr1, newOrderRequest(`{"items":[1]}`, "abc-123"))
	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, newOrderRequest(`{"items":[1]}`, "abc-123"))

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, rr2.Code)
	assert.Equal(t, "true", rr2.Header().Get(replayHeaderName))
	assert.Equal(t, "application/json", rr2.Header().Get("Content-Type"))
	assert.Equal(t, rr1.Body.String(), rr2.Body.String())
}

func TestMiddleware_KeysAreScopedToCaller(t *testing.T) {
	calls := 0
	handler := Middleware(NewMemoryStore())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for _, uid := range []string{"user-a", "user-b"} {
		req := newOrderRequest(`{"items":[1]}`, "shared-key")
		req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: uid, Role: domain.RoleCustomer}))
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, 2, calls, "each caller runs once")
}

func TestMiddleware_ConflictingFingerprintReturnsConflict(t *testing.T) {
	handler := Middleware(NewMemoryStore())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), newOrderRequest(`{"items":[1]}`, "same-key"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newOrderRequest(`{"items":[2]}`, "same-key"))

	assert.Equal(t, http.StatusConflict, rr.Code)
	assertErrorResponse(t, rr.Body.Bytes(), "idempotency_key_conflict")
}

func TestMiddleware_PendingReservationReturnsConflict(t *testing.T) {
	store := NewMemoryStore()
	var reached bool
	handler := Middleware(store, WithClock(func() time.Time { return fixedTime }))(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			reached = true
		}))

	req := newOrderRequest(`{"items":[1]}`, "pending-key")
	body, err := bufferBody(req)
	require.NoError(t, err)
	requester := requesterID(req.Context())
	fingerprint := requestFingerprint(req, body, requester)
	_, err = store.Reserve(req.Context(), "pending-key|"+requester, fingerprint, fixedTime, time.Hour)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.False(t, reached, "handler should not be invoked when reservation pending")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assertErrorResponse(t, rr.Body.Bytes(), "idempotency_in_progress")
}

func TestMiddleware_ServerErrorReleasesKey(t *testing.T) {
	store := NewMemoryStore()
	calls := 0
	handler := Middleware(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	rr1 := httptest.NewRecorder()
	handler.ServeHTTP(rr1, newOrderRequest(`{"items":[1]}`, "retry-key"))
	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, newOrderRequest(`{"items":[1]}`, "retry-key"))

	assert.Equal(t, http.StatusServiceUnavailable, rr1.Code)
	assert.Equal(t, http.StatusCreated, rr2.Code)
	assert.Equal(t, 2, calls, "retry reaches the handler")
}

func TestMiddleware_SaveFailureStillDeliversResponse(t *testing.T) {
	store := &stubStore{failSave: true}
	handler := Middleware(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newOrderRequest(`{"items":[1]}`, "fail-key"))

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
	assert.True(t, store.released, "reservation is released on failure")
}

func TestMiddleware_ReserveFailureIsUnavailable(t *testing.T) {
	store := &stubStore{failReserve: true}
	var reached bool
	handler := Middleware(store)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		reached = true
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newOrderRequest(`{}`, "k"))
	assert.False(t, reached, "handler should not run")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestMiddleware_IgnoresUnguardedMethods(t *testing.T) {
	called := false
	handler := Middleware(NewMemoryStore())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/orders/JJ1", nil))
	assert.True(t, called, "GET passes through")
}

func TestMemoryStoreCleanupExpired(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_, _ = store.Reserve(ctx, "old", "fp", fixedTime, time.Minute)
	_, _ = store.Reserve(ctx, "fresh", "fp", fixedTime.Add(time.Hour), time.Hour)

	job := NewCleanupJob(store, 10, nil)
	job.clock = func() time.Time { return fixedTime.Add(90 * time.Minute) }
	assert.Equal(t, 1, job.Run(ctx))
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStoreExpiredKeyIsReusable(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_, _ = store.Reserve(ctx, "k", "fp-1", fixedTime, time.Minute)

	res, err := store.Reserve(ctx, "k", "fp-2", fixedTime.Add(2*time.Minute), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ReservationStateNew, res.State)
}

type stubStore struct {
	failSave    bool
	failReserve bool
	released    bool
}

func (s *stubStore) Reserve(context.Context, string, string, time.Time, time.Duration) (Reservation, error) {
	if s.failReserve {
		return Reservation{}, errors.New("store down")
	}
	return Reservation{State: ReservationStateNew}, nil
}

func (s *stubStore) SaveResponse(context.Context, string, string, Response, time.Time, time.Duration) error {
	if s.failSave {
		return errors.New("save failed")
	}
	return nil
}

func (s *stubStore) Release(context.Context, string, string) error {
	s.released = true
	return nil
}

func (s *stubStore) CleanupExpired(context.Context, time.Time, int) (int, error) {
	return 0, nil
}

func assertErrorResponse(t *testing.T, payload []byte, expected string) {
	t.Helper()

	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(payload, &body))
	assert.Equal(t, expected, body.Error)
}
