package requestctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestLoggerFallsBackToNoop(t *testing.T) {
	assert.Same(t, NoopLogger(), Logger(context.Background()))
	logger := zap.NewExample()
	assert.Same(t, logger, Logger(WithLogger(context.Background(), logger)))
	assert.Same(t, NoopLogger(), Logger(WithLogger(context.Background(), nil)), "nil logger stores the noop logger")
}

func TestTraceAndClientIP(t *testing.T) {
	ctx := WithTrace(context.Background(), TraceInfo{TraceID: "abc", SpanID: "def"})
	assert.Equal(t, "abc", TraceID(ctx))
	assert.Empty(t, TraceID(context.Background()))
	ctx = WithClientIP(ctx, "203.0.113.7")
	assert.Equal(t, "203.0.113.7", ClientIP(ctx))
}
