package recovery

import (
	"context"
	"sync"

	"github.com/LerianStudio/lib-lifecycle/lifecycle/metrics"
)

// ErrorReporter defines an interface for external error reporting services.
// This abstraction allows integration with error tracking services without
// creating a hard dependency on any specific SDK.
//
// Implementations should:
//   - Handle nil contexts gracefully
//   - Be safe for concurrent use
//   - Not panic themselves
type ErrorReporter interface {
	// CaptureException reports a panic/exception to the error tracking service.
	// The tags map can include metadata like "component", "goroutine_name", etc.
	CaptureException(ctx context.Context, err error, tags map[string]string)
}

var (
	reporterInstance ErrorReporter
	reporterMu       sync.RWMutex
)

// SetErrorReporter configures the global error reporter for panic reporting.
// Pass nil to disable error reporting. This should be called once during
// application startup if an external error tracking service is desired.
func SetErrorReporter(reporter ErrorReporter) {
	reporterMu.Lock()
	defer reporterMu.Unlock()

	reporterInstance = reporter
}

// GetErrorReporter returns the currently configured error reporter.
// Returns nil if no reporter has been configured.
func GetErrorReporter() ErrorReporter {
	reporterMu.RLock()
	defer reporterMu.RUnlock()

	return reporterInstance
}

var (
	// productionMode controls whether sensitive data is redacted in panic reports.
	// When true, stack traces and detailed panic values are suppressed.
	productionMode   bool
	productionModeMu sync.RWMutex
)

const redactedPanicMsg = "panic recovered (details redacted)"

// SetProductionMode enables or disables production mode. In production mode,
// stack traces and potentially sensitive panic details are redacted.
func SetProductionMode(enabled bool) {
	productionModeMu.Lock()
	defer productionModeMu.Unlock()

	productionMode = enabled
}

// IsProductionMode returns whether production mode is enabled.
func IsProductionMode() bool {
	productionModeMu.RLock()
	defer productionModeMu.RUnlock()

	return productionMode
}

const maxStackLen = 4096

// reportPanic forwards a recovered panic to the configured reporter, if any.
func reportPanic(ctx context.Context, panicValue any, stack []byte, component, goroutineName string) {
	reporter := GetErrorReporter()
	if reporter == nil {
		return
	}

	isProduction := IsProductionMode()

	err := toReportedError(panicValue, isProduction)

	tags := map[string]string{
		"component":      component,
		"goroutine_name": goroutineName,
		"panic_type":     "recovered",
	}

	if len(stack) > 0 && !isProduction {
		stackStr := string(stack)
		if len(stackStr) > maxStackLen {
			stackStr = stackStr[:maxStackLen] + "\n...[truncated]"
		}

		tags["stack_trace"] = stackStr
	}

	reporter.CaptureException(ctx, err, tags)
}

// reportedError wraps a panic value as an error for reporting.
type reportedError struct {
	message string
}

func (e *reportedError) Error() string {
	return e.message
}

func toReportedError(panicValue any, isProduction bool) error {
	if isProduction {
		return &reportedError{message: redactedPanicMsg}
	}

	if err, ok := panicValue.(error); ok {
		return err
	}

	return &reportedError{message: "panic: " + formatPanicValue(panicValue)}
}

var (
	panicMetricsFactory *metrics.Factory
	panicMetricsMu      sync.RWMutex
)

// InitPanicMetrics wires panic recording to a metrics factory. It should be
// called once during application startup after telemetry is initialized.
// Subsequent calls are no-ops; a nil factory is ignored.
func InitPanicMetrics(factory *metrics.Factory) {
	panicMetricsMu.Lock()
	defer panicMetricsMu.Unlock()

	if factory == nil {
		return
	}

	if panicMetricsFactory != nil {
		return
	}

	panicMetricsFactory = factory
}

// ResetPanicMetrics clears the panic metrics factory. This is primarily
// intended for testing to ensure test isolation.
func ResetPanicMetrics() {
	panicMetricsMu.Lock()
	defer panicMetricsMu.Unlock()

	panicMetricsFactory = nil
}

func recordPanicMetric(ctx context.Context, component, goroutineName string) {
	panicMetricsMu.RLock()
	factory := panicMetricsFactory
	panicMetricsMu.RUnlock()

	if factory == nil {
		return
	}

	counter, err := factory.Counter(metrics.MetricPanicRecovered)
	if err != nil {
		return
	}

	_ = counter.
		WithLabels(map[string]string{
			"component":      metrics.SanitizeLabel(component),
			"goroutine_name": metrics.SanitizeLabel(goroutineName),
		}).
		AddOne(ctx)
}
