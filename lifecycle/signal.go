package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/LerianStudio/lib-lifecycle/lifecycle/log"
)

// CancelOnSignal arranges for Cancel to be called when one of the given OS
// signals is delivered. With no signals it defaults to os.Interrupt and
// SIGTERM. The returned stop function releases the signal registration; it is
// safe to call more than once.
//
// Typical wiring at process startup:
//
//	coord := lifecycle.New(lifecycle.WithLogger(logger))
//	defer coord.CancelOnSignal()()
func (c *Coordinator) CancelOnSignal(signals ...os.Signal) func() {
	if c == nil {
		return func() {}
	}

	if len(signals) == 0 {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}

	notify := make(chan os.Signal, 1)
	signal.Notify(notify, signals...)

	stopped := make(chan struct{})

	go func() {
		defer signal.Stop(notify)

		select {
		case sig := <-notify:
			c.logger.Log(context.Background(), log.LevelInfo, "termination signal received",
				log.String("signal", sig.String()))
			c.Cancel()
		case <-stopped:
		case <-c.ctx.Done():
		}
	}()

	var once sync.Once

	return func() {
		once.Do(func() {
			close(stopped)
		})
	}
}

// CancelOnClose arranges for Cancel to be called when the given channel is
// closed. This lets tests trigger shutdown deterministically instead of
// relying on OS signals.
func (c *Coordinator) CancelOnClose(trigger <-chan struct{}) {
	if c == nil || trigger == nil {
		return
	}

	go func() {
		select {
		case <-trigger:
			c.Cancel()
		case <-c.ctx.Done():
		}
	}()
}
