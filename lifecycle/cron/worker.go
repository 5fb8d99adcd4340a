package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/LerianStudio/lib-lifecycle/lifecycle"
	"github.com/LerianStudio/lib-lifecycle/lifecycle/backoff"
)

// Worker builds a coordinator worker that runs job every time the cron
// expression fires. The worker sleeps until the next scheduled tick,
// wakes to run the job, and exits cleanly when its token is cancelled.
// A job error stops the worker and is reported through the coordinator;
// other workers keep running.
func Worker(name, expr string, job func(ctx context.Context) error) (lifecycle.Worker, error) {
	sched, err := Parse(expr)
	if err != nil {
		return lifecycle.Worker{}, fmt.Errorf("cron worker %q: %w", name, err)
	}

	return lifecycle.Worker{
		Name: name,
		Run: func(token lifecycle.Token) error {
			for {
				next, err := sched.Next(time.Now())
				if err != nil {
					return fmt.Errorf("cron worker %q: %w", name, err)
				}

				if err := backoff.SleepContext(token.Context(), time.Until(next)); err != nil {
					// Cancelled while waiting for the next tick.
					return nil
				}

				if err := job(token.Context()); err != nil {
					return fmt.Errorf("cron worker %q: %w", name, err)
				}
			}
		},
	}, nil
}
