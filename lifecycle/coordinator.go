package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/LerianStudio/lib-lifecycle/lifecycle/assert"
	"github.com/LerianStudio/lib-lifecycle/lifecycle/log"
	"github.com/LerianStudio/lib-lifecycle/lifecycle/metrics"
	"github.com/LerianStudio/lib-lifecycle/lifecycle/recovery"
)

var (
	// ErrNilCoordinator is returned when a method is called on a nil receiver.
	ErrNilCoordinator = errors.New("coordinator is nil")
	// ErrNilWorker is returned when a worker with a nil Run function is started.
	ErrNilWorker = errors.New("worker run function is nil")
	// ErrAlreadyStopping is returned by Start once shutdown has begun.
	ErrAlreadyStopping = errors.New("coordinator is stopping: new workers are not accepted")
	// ErrIncompleteShutdown is returned by WaitTimeout when workers are still
	// running after the wait bound. The workers are not cancelled or abandoned;
	// only the waiting stops.
	ErrIncompleteShutdown = errors.New("workers still running after wait deadline")
	// ErrWorkerPanicked wraps the failure recorded for a worker whose Run panicked.
	ErrWorkerPanicked = errors.New("worker panicked")
)

const component = "coordinator"

// Coordinator owns the cancellation signal and the set of started workers.
//
// Start, Cancel, Wait, and Shutdown are safe to call from any goroutine.
// Start and Cancel share one mutex so a worker can never slip in after
// shutdown has begun.
type Coordinator struct {
	mu       sync.Mutex
	stopping bool
	started  int
	finished int
	running  int
	failures []error

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	logger  log.Logger
	metrics *metrics.Factory
}

// Option configures a Coordinator.
type Option func(c *Coordinator)

// WithLogger sets the logger used for worker lifecycle events.
func WithLogger(logger log.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithMetrics wires the coordinator to a lifecycle metrics factory.
func WithMetrics(factory *metrics.Factory) Option {
	return func(c *Coordinator) {
		c.metrics = factory
	}
}

// New creates a Coordinator whose cancellation signal is tripped only by
// Cancel or Shutdown.
func New(opts ...Option) *Coordinator {
	return NewWithContext(context.Background(), opts...)
}

// NewWithContext creates a Coordinator whose cancellation signal additionally
// trips when the parent context is cancelled. Start treats parent
// cancellation the same as Cancel: new workers are rejected.
func NewWithContext(ctx context.Context, opts ...Option) *Coordinator {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, cancel := context.WithCancel(ctx)

	c := &Coordinator{
		ctx:    ctx,
		cancel: cancel,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = log.NewNop()
	}

	return c
}

// Token returns the read-only cancellation view shared with workers.
func (c *Coordinator) Token() Token {
	if c == nil {
		return Token{}
	}

	return Token{ctx: c.ctx}
}

// Start registers a worker and begins running it concurrently.
//
// The completion barrier is incremented under the coordinator mutex before
// the worker goroutine launches, so Wait can never return while a worker is
// mid-start. Once Cancel has been called (or the parent context is
// cancelled), Start fails with ErrAlreadyStopping and the worker does not run.
func (c *Coordinator) Start(worker Worker) error {
	if c == nil {
		asserter := assert.New(context.Background(), nil, component, "Start")
		_ = asserter.Never(context.Background(), "coordinator receiver is nil")

		return ErrNilCoordinator
	}

	if worker.Run == nil {
		return fmt.Errorf("start worker %q: %w", worker.Name, ErrNilWorker)
	}

	name := worker.effectiveName()

	c.mu.Lock()

	if c.stopping || c.ctx.Err() != nil {
		c.mu.Unlock()

		return fmt.Errorf("start worker %q: %w", name, ErrAlreadyStopping)
	}

	c.wg.Add(1)
	c.started++
	c.running++
	running := c.running

	c.mu.Unlock()

	c.logger.Log(c.ctx, log.LevelInfo, "worker starting", log.String("worker", name))
	c.recordStarted(name, running)

	go c.run(name, worker.Run)

	return nil
}

// Cancel transitions the cancellation signal to its terminal state. It is
// idempotent, never blocks, and does not wait for workers to observe the
// signal.
func (c *Coordinator) Cancel() {
	if c == nil {
		return
	}

	c.mu.Lock()
	first := !c.stopping
	c.stopping = true
	c.mu.Unlock()

	c.cancel()

	if first {
		c.logger.Log(context.Background(), log.LevelInfo, "cancellation requested")
	}
}

// Wait blocks until every started worker has exited, then returns the joined
// failures (nil if all succeeded). With zero started workers it returns
// immediately. Failures are joined in completion order with worker attribution.
func (c *Coordinator) Wait() error {
	if c == nil {
		return ErrNilCoordinator
	}

	c.wg.Wait()

	return c.collectFailures()
}

// WaitTimeout is Wait with a bound. If workers are still running when the
// bound elapses it returns ErrIncompleteShutdown wrapped with the remaining
// count; the workers keep running and a later Wait still observes them.
func (c *Coordinator) WaitTimeout(bound time.Duration) error {
	if c == nil {
		return ErrNilCoordinator
	}

	done := make(chan struct{})

	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return c.collectFailures()
	case <-time.After(bound):
	}

	// The barrier may have dropped to zero while the timer fired.
	select {
	case <-done:
		return c.collectFailures()
	default:
	}

	c.mu.Lock()
	remaining := c.running
	c.mu.Unlock()

	c.logger.Log(context.Background(), log.LevelWarn, "wait bound elapsed before workers retired",
		log.Int("remaining", remaining), log.Duration("bound", bound))

	return fmt.Errorf("%w: %d worker(s) remaining after %s", ErrIncompleteShutdown, remaining, bound)
}

// Shutdown cancels and then waits: the single uniform shutdown contract.
// It returns whatever Wait returns.
func (c *Coordinator) Shutdown() error {
	if c == nil {
		return ErrNilCoordinator
	}

	c.Cancel()

	waitStarted := time.Now()
	err := c.Wait()

	c.recordShutdownDuration(time.Since(waitStarted))
	c.logger.Log(context.Background(), log.LevelInfo, "graceful shutdown completed",
		log.Duration("waited", time.Since(waitStarted)))

	return err
}

// ShutdownTimeout is Shutdown with a bounded wait, for callers that refuse to
// hang on a worker that ignores cancellation.
func (c *Coordinator) ShutdownTimeout(bound time.Duration) error {
	if c == nil {
		return ErrNilCoordinator
	}

	c.Cancel()

	waitStarted := time.Now()
	err := c.WaitTimeout(bound)

	c.recordShutdownDuration(time.Since(waitStarted))

	return err
}

// Running returns the number of workers that have started and not yet exited.
func (c *Coordinator) Running() int {
	if c == nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}

// run executes a worker on its own goroutine. A panic is recovered, recorded
// through the recovery package, and converted into this worker's failure.
func (c *Coordinator) run(name string, fn func(Token) error) {
	var failure error

	defer func() {
		if recovered := recover(); recovered != nil {
			recovery.Handle(c.ctx, c.logger, recovered, component, name)

			failure = fmt.Errorf("%w: %v", ErrWorkerPanicked, recovered)
		}

		c.finish(name, failure)
	}()

	failure = fn(Token{ctx: c.ctx})
}

// finish records a worker exit. The failure is appended before the barrier is
// released so Wait always observes the complete failure set.
func (c *Coordinator) finish(name string, failure error) {
	c.mu.Lock()

	c.finished++
	c.running--
	running := c.running

	if c.finished > c.started {
		asserter := assert.New(c.ctx, c.logger, component, "finish")
		_ = asserter.Never(c.ctx, "worker completions exceed starts",
			"finished", c.finished, "started", c.started)
	}

	if failure != nil {
		c.failures = append(c.failures, &WorkerError{Name: name, Err: failure})
	}

	c.mu.Unlock()

	if failure != nil {
		c.logger.Log(context.Background(), log.LevelError, "worker failed",
			log.String("worker", name), log.Err(failure))
		c.recordFailed(name)
	} else {
		c.logger.Log(context.Background(), log.LevelInfo, "worker finished",
			log.String("worker", name))
	}

	c.recordActive(running)
	c.wg.Done()
}

func (c *Coordinator) collectFailures() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.failures) == 0 {
		return nil
	}

	return errors.Join(c.failures...)
}

func (c *Coordinator) recordStarted(name string, running int) {
	if c.metrics == nil {
		return
	}

	if counter, err := c.metrics.Counter(metrics.MetricWorkersStarted); err == nil {
		_ = counter.
			WithLabels(map[string]string{"worker": metrics.SanitizeLabel(name)}).
			AddOne(c.ctx)
	}

	c.recordActive(running)
}

func (c *Coordinator) recordFailed(name string) {
	if c.metrics == nil {
		return
	}

	if counter, err := c.metrics.Counter(metrics.MetricWorkersFailed); err == nil {
		_ = counter.
			WithLabels(map[string]string{"worker": metrics.SanitizeLabel(name)}).
			AddOne(context.Background())
	}
}

func (c *Coordinator) recordActive(running int) {
	if c.metrics == nil {
		return
	}

	if gauge, err := c.metrics.Gauge(metrics.MetricWorkersActive); err == nil {
		_ = gauge.Record(context.Background(), int64(running))
	}
}

func (c *Coordinator) recordShutdownDuration(elapsed time.Duration) {
	if c.metrics == nil {
		return
	}

	if histogram, err := c.metrics.Histogram(metrics.MetricShutdownDuration); err == nil {
		_ = histogram.Record(context.Background(), elapsed.Seconds())
	}
}
