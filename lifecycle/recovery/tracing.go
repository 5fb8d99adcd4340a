package recovery

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrPanic is the sentinel error wrapped around recovered panic values.
var ErrPanic = errors.New("panic")

// PanicSpanEventName is the span event name used when recording recovered panics.
const PanicSpanEventName = "panic.recovered"

// RecordPanicToSpan records a recovered panic as an event and error on the
// active span in ctx. It is a no-op when the span is not recording.
func RecordPanicToSpan(ctx context.Context, panicValue any, stack []byte, goroutineName string) {
	RecordPanicToSpanWithComponent(ctx, panicValue, stack, "", goroutineName)
}

// RecordPanicToSpanWithComponent is like RecordPanicToSpan with a component
// attribute and a component-qualified span status message.
func RecordPanicToSpanWithComponent(ctx context.Context, panicValue any, stack []byte, component, goroutineName string) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("panic.value", formatPanicValue(panicValue)),
		attribute.String("panic.stack", string(stack)),
		attribute.String("panic.goroutine_name", goroutineName),
	}

	if component != "" {
		attrs = append(attrs, attribute.String("panic.component", component))
	}

	span.AddEvent(PanicSpanEventName, trace.WithAttributes(attrs...))
	span.RecordError(fmt.Errorf("%w: %s", ErrPanic, formatPanicValue(panicValue)))
	span.SetStatus(codes.Error, panicStatusMessage(component, goroutineName))
}

func panicStatusMessage(component, goroutineName string) string {
	if component != "" {
		return fmt.Sprintf("panic recovered in %s/%s", component, goroutineName)
	}

	return "panic recovered in " + goroutineName
}
