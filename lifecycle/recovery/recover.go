package recovery

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/LerianStudio/lib-lifecycle/lifecycle/log"
)

// Logger is the minimal logging interface required by recovery helpers.
// It is satisfied by lifecycle/log.Logger.
type Logger interface {
	Log(ctx context.Context, level log.Level, msg string, fields ...log.Field)
}

// ToError converts a recovered panic value into an error wrapping ErrPanic.
// A nil panic value still produces an error: panic(nil) is a panic.
func ToError(panicValue any) error {
	return fmt.Errorf("%w: %s", ErrPanic, formatPanicValue(panicValue))
}

// Handle processes a panic value recovered by external code: it logs the
// panic with its stack, records it on the active span, reports it to the
// configured reporter, and increments the panic metric.
//
// A nil panicValue is a no-op so callers can invoke it unconditionally with
// the result of recover().
func Handle(ctx context.Context, logger Logger, panicValue any, component, goroutineName string) {
	if panicValue == nil {
		return
	}

	stack := debug.Stack()

	logPanicWithStack(logger, component, goroutineName, panicValue, stack)
	RecordPanicToSpanWithComponent(ctx, panicValue, stack, component, goroutineName)
	reportPanic(ctx, panicValue, stack, component, goroutineName)
	recordPanicMetric(ctx, component, goroutineName)
}

// Go launches fn on its own goroutine with panic recovery. A panic is handled
// through Handle and the goroutine exits; it never propagates.
func Go(ctx context.Context, logger Logger, component, goroutineName string, fn func(ctx context.Context)) {
	go func() {
		defer func() {
			if recovered := recover(); recovered != nil {
				Handle(ctx, logger, recovered, component, goroutineName)
			}
		}()

		fn(ctx)
	}()
}

// logPanicWithStack logs a recovered panic at error level. Safe with a nil logger.
func logPanicWithStack(logger Logger, component, goroutineName string, panicValue any, stack []byte) {
	if logger == nil {
		return
	}

	fields := []log.Field{
		log.String("component", component),
		log.String("goroutine_name", goroutineName),
		log.String("panic_value", formatPanicValue(panicValue)),
	}

	if !IsProductionMode() && len(stack) > 0 {
		fields = append(fields, log.String("stack", string(stack)))
	}

	logger.Log(context.Background(), log.LevelError, "panic recovered", fields...)
}

// formatPanicValue formats a panic value as a string.
func formatPanicValue(value any) string {
	if value == nil {
		return "<nil>"
	}

	switch val := value.(type) {
	case string:
		return val
	case error:
		return val.Error()
	default:
		return fmt.Sprintf("%v", value)
	}
}
