// Package lifecycle coordinates background workers under a single
// cancellation signal and a single completion barrier.
//
// A Coordinator starts workers, broadcasts one shutdown request to all of
// them, and blocks in Wait until every worker has exited. Cancellation is
// cooperative: each worker receives a read-only Token and must check it at
// every point it would otherwise block indefinitely. Worker failures are
// accumulated and surfaced together by Wait, never interpreted or retried.
//
// Higher-level types should delegate to one Coordinator instance instead of
// reinventing per-type Stop/Quit plumbing; Shutdown composes Cancel and Wait
// into the single uniform shutdown contract.
package lifecycle
