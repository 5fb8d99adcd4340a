// Package metrics provides an OpenTelemetry-backed factory for the
// lifecycle metric set.
//
// Instruments are created lazily and cached, and recording uses fluent
// builders so call sites stay compact. A no-op factory is available as a
// fallback when no meter is configured.
package metrics
