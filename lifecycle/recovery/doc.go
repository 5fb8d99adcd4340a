// Package recovery converts recovered panic values into errors and records
// them to logs, the active trace span, and the lifecycle metric set.
//
// The coordinator uses it so a panicking worker surfaces as a worker failure
// instead of crashing the process. It can also be used directly by callers
// that launch their own goroutines.
package recovery
