//go:build unit

package cron_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LerianStudio/lib-lifecycle/lifecycle"
	"github.com/LerianStudio/lib-lifecycle/lifecycle/cron"
)

func TestParse_Valid(t *testing.T) {
	t.Parallel()

	exprs := []string{
		"* * * * *",
		"0 0 * * *",
		"*/15 * * * *",
		"30 14 * * 1",
		"0 9-17 * * 1-5",
		"0,30 * 1,15 * *",
		"5/10 * * * *",
		"  0 12 * * *  ",
	}

	for _, expr := range exprs {
		t.Run(expr, func(t *testing.T) {
			t.Parallel()

			sched, err := cron.Parse(expr)
			require.NoError(t, err)
			assert.NotNil(t, sched)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		expr string
	}{
		{name: "empty", expr: ""},
		{name: "too few fields", expr: "* * * *"},
		{name: "too many fields", expr: "* * * * * *"},
		{name: "minute out of range", expr: "60 * * * *"},
		{name: "hour out of range", expr: "* 24 * * *"},
		{name: "day of month zero", expr: "* * 0 * *"},
		{name: "month out of range", expr: "* * * 13 *"},
		{name: "day of week out of range", expr: "* * * * 7"},
		{name: "garbage value", expr: "x * * * *"},
		{name: "inverted range", expr: "30-10 * * * *"},
		{name: "range out of bounds", expr: "* 20-25 * * *"},
		{name: "zero step", expr: "*/0 * * * *"},
		{name: "negative step", expr: "*/-5 * * * *"},
		{name: "bad step", expr: "*/x * * * *"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := cron.Parse(tt.expr)
			assert.ErrorIs(t, err, cron.ErrInvalidExpression)
		})
	}
}

func TestNext(t *testing.T) {
	t.Parallel()

	// Monday 2025-06-02 10:07:30 UTC.
	from := time.Date(2025, 6, 2, 10, 7, 30, 0, time.UTC)

	tests := []struct {
		name string
		expr string
		want time.Time
	}{
		{
			name: "every minute",
			expr: "* * * * *",
			want: time.Date(2025, 6, 2, 10, 8, 0, 0, time.UTC),
		},
		{
			name: "every quarter hour",
			expr: "*/15 * * * *",
			want: time.Date(2025, 6, 2, 10, 15, 0, 0, time.UTC),
		},
		{
			name: "daily at midnight",
			expr: "0 0 * * *",
			want: time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "mondays at 14:30",
			expr: "30 14 * * 1",
			want: time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC),
		},
		{
			name: "next monday when today's slot passed",
			expr: "0 9 * * 1",
			want: time.Date(2025, 6, 9, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "first of next month",
			expr: "0 0 1 * *",
			want: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "specific month",
			expr: "0 0 25 12 *",
			want: time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sched, err := cron.Parse(tt.expr)
			require.NoError(t, err)

			got, err := sched.Next(from)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNext_NoMatch(t *testing.T) {
	t.Parallel()

	sched, err := cron.Parse("0 0 31 2 *")
	require.NoError(t, err)

	_, err = sched.Next(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, cron.ErrNoMatch)
}

func TestWorker_InvalidExpression(t *testing.T) {
	t.Parallel()

	_, err := cron.Worker("reporter", "not a cron expr", func(_ context.Context) error {
		return nil
	})

	require.ErrorIs(t, err, cron.ErrInvalidExpression)
	assert.Contains(t, err.Error(), "reporter")
}

func TestWorker_StopsOnCancellation(t *testing.T) {
	t.Parallel()

	// Far-future schedule: the worker spends its life sleeping.
	worker, err := cron.Worker("yearly", "0 0 1 1 *", func(_ context.Context) error {
		t.Error("job must not run before its schedule")

		return nil
	})
	require.NoError(t, err)

	coord := lifecycle.New()
	require.NoError(t, coord.Start(worker))

	done := make(chan error, 1)

	go func() {
		done <- coord.Shutdown()
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("cron worker must stop promptly on cancellation")
	}
}
