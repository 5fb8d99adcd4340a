package metrics

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrNilCounter is returned when a counter builder has no instrument.
	ErrNilCounter = errors.New("counter instrument is nil")
	// ErrNilGauge is returned when a gauge builder has no instrument.
	ErrNilGauge = errors.New("gauge instrument is nil")
	// ErrNilHistogram is returned when a histogram builder has no instrument.
	ErrNilHistogram = errors.New("histogram instrument is nil")
)

// CounterBuilder provides a fluent API for recording counter metrics with optional labels.
type CounterBuilder struct {
	counter metric.Int64Counter
	name    string
	attrs   []attribute.KeyValue
}

// WithLabels returns a builder with labels added as string attributes.
func (c *CounterBuilder) WithLabels(labels map[string]string) *CounterBuilder {
	return &CounterBuilder{
		counter: c.counter,
		name:    c.name,
		attrs:   appendLabels(c.attrs, labels),
	}
}

// Add records a counter increment.
func (c *CounterBuilder) Add(ctx context.Context, value int64) error {
	if c.counter == nil {
		return ErrNilCounter
	}

	c.counter.Add(ctx, value, metric.WithAttributes(c.attrs...))

	return nil
}

// AddOne increments the counter by one.
func (c *CounterBuilder) AddOne(ctx context.Context) error {
	return c.Add(ctx, 1)
}

// GaugeBuilder provides a fluent API for recording gauge metrics with optional labels.
type GaugeBuilder struct {
	gauge metric.Int64Gauge
	name  string
	attrs []attribute.KeyValue
}

// WithLabels returns a builder with labels added as string attributes.
func (g *GaugeBuilder) WithLabels(labels map[string]string) *GaugeBuilder {
	return &GaugeBuilder{
		gauge: g.gauge,
		name:  g.name,
		attrs: appendLabels(g.attrs, labels),
	}
}

// Record records the current gauge value.
func (g *GaugeBuilder) Record(ctx context.Context, value int64) error {
	if g.gauge == nil {
		return ErrNilGauge
	}

	g.gauge.Record(ctx, value, metric.WithAttributes(g.attrs...))

	return nil
}

// HistogramBuilder provides a fluent API for recording histogram metrics with optional labels.
type HistogramBuilder struct {
	histogram metric.Float64Histogram
	name      string
	attrs     []attribute.KeyValue
}

// WithLabels returns a builder with labels added as string attributes.
func (h *HistogramBuilder) WithLabels(labels map[string]string) *HistogramBuilder {
	return &HistogramBuilder{
		histogram: h.histogram,
		name:      h.name,
		attrs:     appendLabels(h.attrs, labels),
	}
}

// Record records an observation.
func (h *HistogramBuilder) Record(ctx context.Context, value float64) error {
	if h.histogram == nil {
		return ErrNilHistogram
	}

	h.histogram.Record(ctx, value, metric.WithAttributes(h.attrs...))

	return nil
}

func appendLabels(attrs []attribute.KeyValue, labels map[string]string) []attribute.KeyValue {
	merged := make([]attribute.KeyValue, 0, len(attrs)+len(labels))
	merged = append(merged, attrs...)

	for key, value := range labels {
		merged = append(merged, attribute.String(key, value))
	}

	return merged
}
