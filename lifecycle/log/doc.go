// Package log defines the logging interface and typed logging fields used
// across lib-lifecycle.
//
// Adapters (such as the zap package) implement Logger so coordinator and
// worker code can keep logging calls consistent across backends.
package log
