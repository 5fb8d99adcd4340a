// Package zap provides a zap-backed implementation of the lifecycle log
// abstraction.
//
// It bridges lifecycle/log to zap while preserving structured fields and
// correlating log entries with the active OpenTelemetry span.
package zap
