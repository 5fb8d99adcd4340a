package lifecycle

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Worker is a unit of background work owned by the coordinator that started
// it. Run receives the coordinator's cancellation token and must return
// promptly once the token reports cancellation; a worker that never checks
// the token can block Wait forever.
type Worker struct {
	// Name identifies the worker in logs, metrics, and failure reports.
	// Empty names get a generated diagnostic name.
	Name string

	// Run performs the work. A non-nil return value is recorded as this
	// worker's failure and surfaced by Wait; it does not cancel the other
	// workers.
	Run func(token Token) error
}

const generatedNameLength = 8

func (w Worker) effectiveName() string {
	if name := strings.TrimSpace(w.Name); name != "" {
		return name
	}

	return "worker-" + uuid.NewString()[:generatedNameLength]
}

// WorkerError attributes a failure to the worker that produced it.
// Wait joins all WorkerError values into one aggregate error.
type WorkerError struct {
	Name string
	Err  error
}

// Error returns the worker-qualified failure message.
func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker %q: %v", e.Name, e.Err)
}

// Unwrap returns the underlying failure for errors.Is/As.
func (e *WorkerError) Unwrap() error {
	return e.Err
}
