package firestore

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestWrapErrorClassifiesCodes(t *testing.T) {
	cases := []struct {
		code                            codes.Code
		notFound, conflict, unavailable bool
	}{
		{codes.NotFound, true, false, false},
		{codes.AlreadyExists, false, true, false},
		{codes.Aborted, false, true, false},
		{codes.FailedPrecondition, false, true, false},
		{codes.Unavailable, false, false, true},
		{codes.ResourceExhausted, false, false, true},
		{codes.PermissionDenied, false, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.code.String(), func(t *testing.T) {
			err := WrapError("orders.get", status.Error(tc.code, "boom"))
			var fsErr *Error
			require.ErrorAs(t, err, &fsErr)
			assert.Equal(t, tc.notFound, fsErr.IsNotFound())
			assert.Equal(t, tc.conflict, fsErr.IsConflict())
			assert.Equal(t, tc.unavailable, fsErr.IsUnavailable())
		})
	}
}

func TestWrapErrorPassesContextErrors(t *testing.T) {
	assert.ErrorIs(t, WrapError("op", context.Canceled), context.Canceled)
	assert.ErrorIs(t, WrapError("op", status.Error(codes.DeadlineExceeded, "slow")), context.DeadlineExceeded)
	assert.NoError(t, WrapError("op", nil))
}

func TestWrapErrorKeepsClassifiedErrors(t *testing.T) {
	err := WrapError("transaction", fmt.Errorf("wrapped: %w", Conflict("orders.update", "version mismatch")))
	var fsErr *Error
	require.ErrorAs(t, err, &fsErr)
	assert.True(t, fsErr.IsConflict(), "conflict should survive wrapping")
}
