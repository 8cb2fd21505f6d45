package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	l := zap.NewExample()
	ctx := WithContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))

	wrong := context.WithValue(context.Background(), LoggerKey, "not a logger")
	assert.NotNil(t, FromContext(wrong))
}

func TestScopeHelpers(t *testing.T) {
	ctx := context.Background()
	l := zap.NewNop()

	ctx, l = WithCorrelationID(ctx, l, "cascade-7")
	ctx, l = WithDistrictID(ctx, l, "d-1")
	ctx, _ = WithUserID(ctx, l, "u-9")

	assert.Equal(t, "cascade-7", GetCorrelationID(ctx))
	assert.Equal(t, "d-1", GetDistrictID(ctx))
	assert.Equal(t, "u-9", GetUserID(ctx))
	assert.Empty(t, GetCorrelationID(context.Background()))
}

func TestTraceIDs(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
	assert.Empty(t, GetSpanID(context.Background()))

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", GetTraceID(ctx))
	assert.Equal(t, "0102030405060708", GetSpanID(ctx))
}

func TestContextLogger_EnrichesEntries(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	ctx := WithContext(context.Background(), zap.New(core))
	ctx = context.WithValue(ctx, DistrictIDKey, "d-1")
	ctx = context.WithValue(ctx, UserIDKey, "u-9")

	L(ctx).With(zap.String("component", "ranker")).Warn("link refused")

	logs := recorded.All()
	require.Len(t, logs, 1)
	fields := logs[0].ContextMap()
	assert.Equal(t, "d-1", fields["district_id"])
	assert.Equal(t, "u-9", fields["user_id"])
	assert.Equal(t, "ranker", fields["component"])
	assert.NotContains(t, fields, "correlation_id")
}

func TestContextLogger_NilLogger(t *testing.T) {
	cl := WithLogger(context.Background(), nil)
	assert.NotPanics(t, func() {
		cl.Info("nothing")
		cl.With(zap.Int("n", 1)).Error("still nothing")
		_ = cl.Zap()
	})
}
