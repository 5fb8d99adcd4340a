//go:build unit

package recovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newTestTracerProvider(t *testing.T) (*sdktrace.TracerProvider, *tracetest.SpanRecorder) {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
	})

	return provider, recorder
}

func panicEventAttributes(t *testing.T, span sdktrace.ReadOnlySpan) map[string]string {
	t.Helper()

	for _, event := range span.Events() {
		if event.Name != PanicSpanEventName {
			continue
		}

		attrMap := make(map[string]string)
		for _, attr := range event.Attributes {
			attrMap[string(attr.Key)] = attr.Value.AsString()
		}

		return attrMap
	}

	t.Fatal("panic.recovered event not found")

	return nil
}

func TestErrPanic(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "panic", ErrPanic.Error())
}

func TestPanicSpanEventName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "panic.recovered", PanicSpanEventName)
}

func TestRecordPanicToSpan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		panicValue    any
		goroutineName string
		wantValue     string
		wantMessage   string
	}{
		{
			name:          "string panic value",
			panicValue:    "something went wrong",
			goroutineName: "worker-1",
			wantValue:     "something went wrong",
			wantMessage:   "panic recovered in worker-1",
		},
		{
			name:          "error panic value",
			panicValue:    assert.AnError,
			goroutineName: "handler",
			wantValue:     assert.AnError.Error(),
			wantMessage:   "panic recovered in handler",
		},
		{
			name:          "nil panic value",
			panicValue:    nil,
			goroutineName: "main",
			wantValue:     "<nil>",
			wantMessage:   "panic recovered in main",
		},
		{
			name:          "struct panic value",
			panicValue:    struct{ Message string }{Message: "error"},
			goroutineName: "processor",
			wantValue:     "{error}",
			wantMessage:   "panic recovered in processor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			provider, recorder := newTestTracerProvider(t)
			tracer := provider.Tracer("test")
			ctx, span := tracer.Start(context.Background(), "test-span")

			RecordPanicToSpan(ctx, tt.panicValue, []byte("stack trace"), tt.goroutineName)
			span.End()

			spans := recorder.Ended()
			require.Len(t, spans, 1)

			recorded := spans[0]
			assert.Equal(t, codes.Error, recorded.Status().Code)
			assert.Equal(t, tt.wantMessage, recorded.Status().Description)

			attrs := panicEventAttributes(t, recorded)
			assert.Equal(t, tt.wantValue, attrs["panic.value"])
			assert.Equal(t, "stack trace", attrs["panic.stack"])
			assert.Equal(t, tt.goroutineName, attrs["panic.goroutine_name"])
			assert.NotContains(t, attrs, "panic.component")
		})
	}
}

func TestRecordPanicToSpanWithComponent(t *testing.T) {
	t.Parallel()

	provider, recorder := newTestTracerProvider(t)
	tracer := provider.Tracer("test")
	ctx, span := tracer.Start(context.Background(), "test-span")

	RecordPanicToSpanWithComponent(ctx, "panic error", []byte("stack"), "coordinator", "run_worker")
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	recorded := spans[0]
	assert.Equal(t, codes.Error, recorded.Status().Code)
	assert.Equal(t, "panic recovered in coordinator/run_worker", recorded.Status().Description)

	attrs := panicEventAttributes(t, recorded)
	assert.Equal(t, "coordinator", attrs["panic.component"])
	assert.Equal(t, "run_worker", attrs["panic.goroutine_name"])
}

func TestRecordPanicToSpan_RecordsException(t *testing.T) {
	t.Parallel()

	provider, recorder := newTestTracerProvider(t)
	tracer := provider.Tracer("test")
	ctx, span := tracer.Start(context.Background(), "test-span")

	RecordPanicToSpan(ctx, "test panic", []byte("stack"), "worker")
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	var hasExceptionEvent bool

	for _, event := range spans[0].Events() {
		if event.Name == "exception" {
			hasExceptionEvent = true
		}
	}

	assert.True(t, hasExceptionEvent, "expected exception event from RecordError")
}

func TestRecordPanicToSpan_NoActiveSpan(t *testing.T) {
	t.Parallel()

	require.NotPanics(t, func() {
		RecordPanicToSpan(context.Background(), "panic value", []byte("stack"), "goroutine")
	})
}

func TestRecordPanicToSpan_NonRecordingSpan(t *testing.T) {
	t.Parallel()

	provider := sdktrace.NewTracerProvider()

	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
	})

	tracer := provider.Tracer("test")
	_, endedSpan := tracer.Start(context.Background(), "test-span")
	endedSpan.End()

	ctx := trace.ContextWithSpan(context.Background(), endedSpan)

	require.NotPanics(t, func() {
		RecordPanicToSpan(ctx, "panic value", []byte("stack"), "goroutine")
	})
}
