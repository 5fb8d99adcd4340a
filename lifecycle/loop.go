package lifecycle

import (
	"context"
	"time"
)

// Loop invokes fn every interval until the token is cancelled or fn returns
// an error. Cancellation is a clean exit (nil); an fn error stops the loop
// and becomes the worker's failure.
//
// This is the select-over-ticker-and-cancellation shape every polling worker
// needs; using it keeps the cooperative-cancellation contract honored by
// construction.
func Loop(token Token, interval time.Duration, fn func(ctx context.Context) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-token.Done():
			return nil
		case <-ticker.C:
			if err := fn(token.Context()); err != nil {
				return err
			}
		}
	}
}

// LoopWorker wraps Loop as a Worker for Coordinator.Start.
func LoopWorker(name string, interval time.Duration, fn func(ctx context.Context) error) Worker {
	return Worker{
		Name: name,
		Run: func(token Token) error {
			return Loop(token, interval, fn)
		},
	}
}
