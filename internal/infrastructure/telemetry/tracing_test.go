package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func TestStartSpan_AttributesAndError(t *testing.T) {
	rec := withRecorder(t)

	ctx, span := StartSpan(context.Background(), "sync.stage", SpanAttrStage, "orders", "count", 3, 42, "skipped")
	assert.NotEmpty(t, TraceID(ctx))
	EndSpan(span, errors.New("boom"))

	ended := rec.Ended()
	require.Len(t, ended, 1)
	s := ended[0]
	assert.Equal(t, "sync.stage", s.Name())
	assert.Equal(t, trace.SpanKindInternal, s.SpanKind())
	assert.Contains(t, s.Attributes(), attribute.String(SpanAttrStage, "orders"))
	assert.Contains(t, s.Attributes(), attribute.Int("count", 3))
	assert.Len(t, s.Attributes(), 2)
	assert.Equal(t, codes.Error, s.Status().Code)
	assert.Equal(t, "boom", s.Status().Description)
}

func TestStartClientSpan_Kind(t *testing.T) {
	rec := withRecorder(t)

	_, span := StartClientSpan(context.Background(), "shopify GET")
	EndSpan(span, nil)

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, trace.SpanKindClient, ended[0].SpanKind())
	assert.Equal(t, codes.Unset, ended[0].Status().Code)
}

func TestTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, TraceID(context.Background()))
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Contains(t, sampler(0.5).Description(), "TraceIDRatioBased")
}

func TestTracerProvider_Disabled(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer(TracerName))
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestLoggerProvider_DisabledBridgeIsIdentity(t *testing.T) {
	lp, err := NewLoggerProvider(context.Background(), LogsConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, lp.IsEnabled())

	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)
	assert.Same(t, base, lp.Bridge(base, zapcore.InfoLevel))

	lp.Bridge(base, zapcore.InfoLevel).Info("hello")
	assert.Equal(t, 1, logs.Len())
	require.NoError(t, lp.Shutdown(context.Background()))
}

func TestIncreaseLevelCore_DropsBelowMinimum(t *testing.T) {
	inner, logs := observer.New(zapcore.DebugLevel)
	filtered, err := zapcore.NewIncreaseLevelCore(inner, zapcore.WarnLevel)
	require.NoError(t, err)
	logger := zap.New(filtered)

	logger.Info("dropped")
	logger.Warn("kept")
	logger.With(zap.String("k", "v")).Error("kept too")

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "kept", logs.All()[0].Message)
}

func TestDBTracingPlugin_DisabledIsNoop(t *testing.T) {
	p := NewDBTracingPlugin(DefaultDBTracingConfig(), nil)
	require.NoError(t, p.Register(nil))
}
