package metrics

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/LerianStudio/lib-lifecycle/lifecycle/log"
)

// ErrNilMeter indicates that a nil OTEL meter was provided.
var ErrNilMeter = errors.New("metric meter cannot be nil")

// Factory is a thread-safe factory for creating and recording OpenTelemetry
// metrics with lazy instrument initialization.
type Factory struct {
	meter      metric.Meter
	counters   sync.Map // string -> metric.Int64Counter
	gauges     sync.Map // string -> metric.Int64Gauge
	histograms sync.Map // string -> metric.Float64Histogram
	logger     log.Logger
}

// Metric describes an instrument the factory can create.
type Metric struct {
	Name        string
	Description string
	Unit        string
	// For histograms: explicit bucket boundaries
	Buckets []float64
}

// Pre-configured lifecycle metrics.
var (
	// MetricWorkersStarted counts workers accepted by Coordinator.Start.
	MetricWorkersStarted = Metric{
		Name:        "lifecycle_workers_started_total",
		Unit:        "1",
		Description: "Total number of workers started by the coordinator.",
	}

	// MetricWorkersFailed counts workers that exited with a failure.
	MetricWorkersFailed = Metric{
		Name:        "lifecycle_workers_failed_total",
		Unit:        "1",
		Description: "Total number of workers that exited with an error.",
	}

	// MetricWorkersActive gauges the number of workers currently running.
	MetricWorkersActive = Metric{
		Name:        "lifecycle_workers_active",
		Unit:        "1",
		Description: "Number of workers currently running.",
	}

	// MetricPanicRecovered counts panics recovered from worker goroutines.
	MetricPanicRecovered = Metric{
		Name:        "lifecycle_panic_recovered_total",
		Unit:        "1",
		Description: "Total number of recovered panics.",
	}

	// MetricShutdownDuration measures how long the coordinator waited for
	// all workers to retire.
	MetricShutdownDuration = Metric{
		Name:        "lifecycle_shutdown_duration_seconds",
		Unit:        "s",
		Description: "Time spent waiting for workers to exit during shutdown.",
	}
)

// DefaultDurationBuckets for shutdown duration measurements (in seconds).
var DefaultDurationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60}

// NewFactory creates a new Factory instance.
func NewFactory(meter metric.Meter, logger log.Logger) (*Factory, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}

	if logger == nil {
		logger = log.NewNop()
	}

	return &Factory{
		meter:  meter,
		logger: logger,
	}, nil
}

// NewNopFactory returns a Factory backed by OpenTelemetry's no-op meter.
// It is safe for use as a fallback when a real meter is unavailable.
func NewNopFactory() *Factory {
	return &Factory{
		meter:  noop.NewMeterProvider().Meter("nop"),
		logger: log.NewNop(),
	}
}

// Counter creates or retrieves a counter metric and returns a builder.
func (f *Factory) Counter(m Metric) (*CounterBuilder, error) {
	counter, err := f.getOrCreateCounter(m)
	if err != nil {
		return nil, err
	}

	return &CounterBuilder{counter: counter, name: m.Name}, nil
}

// Gauge creates or retrieves a gauge metric and returns a builder.
func (f *Factory) Gauge(m Metric) (*GaugeBuilder, error) {
	gauge, err := f.getOrCreateGauge(m)
	if err != nil {
		return nil, err
	}

	return &GaugeBuilder{gauge: gauge, name: m.Name}, nil
}

// Histogram creates or retrieves a histogram metric and returns a builder.
func (f *Factory) Histogram(m Metric) (*HistogramBuilder, error) {
	if m.Buckets == nil {
		m.Buckets = DefaultDurationBuckets
	}

	histogram, err := f.getOrCreateHistogram(m)
	if err != nil {
		return nil, err
	}

	return &HistogramBuilder{histogram: histogram, name: m.Name}, nil
}

func (f *Factory) getOrCreateCounter(m Metric) (metric.Int64Counter, error) {
	if cached, exists := f.counters.Load(m.Name); exists {
		if c, ok := cached.(metric.Int64Counter); ok {
			return c, nil
		}

		return nil, fmt.Errorf("counter cache contains invalid type for %q", m.Name)
	}

	counter, err := f.meter.Int64Counter(m.Name, metric.WithDescription(m.Description), metric.WithUnit(m.Unit))
	if err != nil {
		f.logger.Log(context.Background(), log.LevelError, "failed to create counter metric",
			log.String("metric_name", m.Name), log.Err(err))

		return nil, fmt.Errorf("create counter %q: %w", m.Name, err)
	}

	if actual, loaded := f.counters.LoadOrStore(m.Name, counter); loaded {
		// Another goroutine created it first, use that one.
		if c, ok := actual.(metric.Int64Counter); ok {
			return c, nil
		}

		return nil, fmt.Errorf("counter cache contains invalid type for %q", m.Name)
	}

	return counter, nil
}

func (f *Factory) getOrCreateGauge(m Metric) (metric.Int64Gauge, error) {
	if cached, exists := f.gauges.Load(m.Name); exists {
		if g, ok := cached.(metric.Int64Gauge); ok {
			return g, nil
		}

		return nil, fmt.Errorf("gauge cache contains invalid type for %q", m.Name)
	}

	gauge, err := f.meter.Int64Gauge(m.Name, metric.WithDescription(m.Description), metric.WithUnit(m.Unit))
	if err != nil {
		f.logger.Log(context.Background(), log.LevelError, "failed to create gauge metric",
			log.String("metric_name", m.Name), log.Err(err))

		return nil, fmt.Errorf("create gauge %q: %w", m.Name, err)
	}

	if actual, loaded := f.gauges.LoadOrStore(m.Name, gauge); loaded {
		if g, ok := actual.(metric.Int64Gauge); ok {
			return g, nil
		}

		return nil, fmt.Errorf("gauge cache contains invalid type for %q", m.Name)
	}

	return gauge, nil
}

func (f *Factory) getOrCreateHistogram(m Metric) (metric.Float64Histogram, error) {
	if cached, exists := f.histograms.Load(m.Name); exists {
		if h, ok := cached.(metric.Float64Histogram); ok {
			return h, nil
		}

		return nil, fmt.Errorf("histogram cache contains invalid type for %q", m.Name)
	}

	histogram, err := f.meter.Float64Histogram(m.Name,
		metric.WithDescription(m.Description),
		metric.WithUnit(m.Unit),
		metric.WithExplicitBucketBoundaries(m.Buckets...),
	)
	if err != nil {
		f.logger.Log(context.Background(), log.LevelError, "failed to create histogram metric",
			log.String("metric_name", m.Name), log.Err(err))

		return nil, fmt.Errorf("create histogram %q: %w", m.Name, err)
	}

	if actual, loaded := f.histograms.LoadOrStore(m.Name, histogram); loaded {
		if h, ok := actual.(metric.Float64Histogram); ok {
			return h, nil
		}

		return nil, fmt.Errorf("histogram cache contains invalid type for %q", m.Name)
	}

	return histogram, nil
}

var labelSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_]`)

const maxLabelLength = 64

// SanitizeLabel normalizes a metric label value: lowercased, non-alphanumeric
// characters replaced with underscores, truncated to a bounded length.
// Empty values become "unknown" so label cardinality stays predictable.
func SanitizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}

	value = labelSanitizer.ReplaceAllString(value, "_")
	if len(value) > maxLabelLength {
		value = value[:maxLabelLength]
	}

	return value
}
