// Package server adapts HTTP and gRPC servers into coordinator workers.
// Each registered server runs as a worker that serves until cancellation,
// then shuts its listener down gracefully before the worker exits.
package server
