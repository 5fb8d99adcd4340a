package lifecycle

import "context"

// Token is a one-shot, broadcast, read-only view of the coordinator's
// cancellation signal. Workers observe it; only the coordinator can trip it,
// and once cancelled it never reverts.
//
// The zero Token is never cancelled.
type Token struct {
	ctx context.Context
}

func (t Token) context() context.Context {
	if t.ctx != nil {
		return t.ctx
	}

	return context.Background()
}

// Done returns a channel that is closed when shutdown has been requested.
// Workers select on it at every point they would otherwise block indefinitely.
func (t Token) Done() <-chan struct{} {
	return t.context().Done()
}

// Cancelled reports whether shutdown has been requested. It never blocks.
func (t Token) Cancelled() bool {
	return t.context().Err() != nil
}

// Context returns a context that is cancelled together with the token, for
// passing to context-aware APIs inside worker code.
func (t Token) Context() context.Context {
	return t.context()
}
