package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techfy/storefront-api/internal/platform/requestctx"
)

func TestWriteErrorEnvelope(t *testing.T) {
	ctx := requestctx.WithTrace(context.Background(), requestctx.TraceInfo{TraceID: "trace-1"})
	rr := httptest.NewRecorder()

	WriteError(ctx, rr, NewError("invalid_request", "bad\ninput", http.StatusBadRequest).
		WithDetails(map[string]any{"fields": map[string]string{"email": "required"}}))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "invalid_request", body["error"])
	assert.Equal(t, "bad input", body["message"])
	assert.EqualValues(t, http.StatusBadRequest, body["status"])
	assert.Equal(t, "trace-1", body["trace_id"])
	assert.Contains(t, body, "fields")
}

func TestWriteErrorDetailsCannotOverrideCode(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(context.Background(), rr, NewError("forbidden", "nope", http.StatusForbidden).
		WithDetails(map[string]any{"error": "spoofed"}))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "forbidden", body["error"])
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	t.Run("ok", func(t *testing.T) {
		var dst payload
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}`))
		require.NoError(t, DecodeJSON(req, &dst, 0))
		assert.Equal(t, "a", dst.Name)
	})

	t.Run("unknown field", func(t *testing.T) {
		var dst payload
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"nope":1}`))
		err := DecodeJSON(req, &dst, 0)
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, DecodeError(err).Status)
	})

	t.Run("too large", func(t *testing.T) {
		var dst payload
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"abcdefghij"}`))
		err := DecodeJSON(req, &dst, 5)
		require.ErrorIs(t, err, ErrBodyTooLarge)
		assert.Equal(t, http.StatusRequestEntityTooLarge, DecodeError(err).Status)
	})

	t.Run("empty", func(t *testing.T) {
		var dst payload
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
		require.ErrorIs(t, DecodeJSON(req, &dst, 0), ErrEmptyBody)
	})
}
