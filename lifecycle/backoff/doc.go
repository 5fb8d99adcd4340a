// Package backoff provides retry delay helpers with exponential growth and jitter.
//
// Workers that poll for cancellation use SleepContext so delays never outlive
// a shutdown request; ExponentialWithJitter spaces retries of failing work.
package backoff
