//go:build unit

package recovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LerianStudio/lib-lifecycle/lifecycle/log"
)

var errTestPanic = errors.New("test error")

// testLogger captures log calls for assertions.
type testLogger struct {
	mu       sync.Mutex
	messages []string
	fields   [][]log.Field
}

func (logger *testLogger) Log(_ context.Context, _ log.Level, msg string, fields ...log.Field) {
	logger.mu.Lock()
	defer logger.mu.Unlock()

	logger.messages = append(logger.messages, msg)
	logger.fields = append(logger.fields, fields)
}

func (logger *testLogger) logged() bool {
	logger.mu.Lock()
	defer logger.mu.Unlock()

	return len(logger.messages) > 0
}

func (logger *testLogger) fieldValue(key string) (any, bool) {
	logger.mu.Lock()
	defer logger.mu.Unlock()

	for _, fields := range logger.fields {
		for _, field := range fields {
			if field.Key == key {
				return field.Value, true
			}
		}
	}

	return nil, false
}

func TestToError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		panicValue any
		wantSubstr string
	}{
		{name: "string value", panicValue: "something went wrong", wantSubstr: "something went wrong"},
		{name: "error value", panicValue: errTestPanic, wantSubstr: "test error"},
		{name: "int value", panicValue: 42, wantSubstr: "42"},
		{name: "nil value", panicValue: nil, wantSubstr: "<nil>"},
		{name: "struct value", panicValue: struct{ Code int }{Code: 500}, wantSubstr: "{500}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ToError(tt.panicValue)

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrPanic)
			assert.Contains(t, err.Error(), tt.wantSubstr)
		})
	}
}

func TestHandle_NilPanicValueIsNoop(t *testing.T) {
	t.Parallel()

	logger := &testLogger{}

	Handle(context.Background(), logger, nil, "component", "worker")

	assert.False(t, logger.logged())
}

func TestHandle_NilLoggerIsSafe(t *testing.T) {
	t.Parallel()

	require.NotPanics(t, func() {
		Handle(context.Background(), nil, "boom", "component", "worker")
	})
}

func TestHandle_LogsPanic(t *testing.T) {
	t.Parallel()

	logger := &testLogger{}

	Handle(context.Background(), logger, "boom", "coordinator", "worker-1")

	require.True(t, logger.logged())

	value, found := logger.fieldValue("panic_value")
	require.True(t, found)
	assert.Equal(t, "boom", value)

	name, found := logger.fieldValue("goroutine_name")
	require.True(t, found)
	assert.Equal(t, "worker-1", name)
}

func TestHandle_ReportsToErrorReporter(t *testing.T) {
	reporter := &capturingReporter{}

	SetErrorReporter(reporter)
	t.Cleanup(func() { SetErrorReporter(nil) })

	Handle(context.Background(), nil, errTestPanic, "coordinator", "worker-1")

	captured, tags := reporter.last()
	require.Equal(t, errTestPanic, captured)
	assert.Equal(t, "coordinator", tags["component"])
	assert.Equal(t, "worker-1", tags["goroutine_name"])
	assert.Contains(t, tags, "stack_trace")
}

func TestHandle_ProductionModeRedacts(t *testing.T) {
	reporter := &capturingReporter{}

	SetErrorReporter(reporter)
	SetProductionMode(true)
	t.Cleanup(func() {
		SetErrorReporter(nil)
		SetProductionMode(false)
	})

	Handle(context.Background(), nil, "sensitive detail", "coordinator", "worker-1")

	captured, tags := reporter.last()
	require.Error(t, captured)
	assert.NotContains(t, captured.Error(), "sensitive detail")
	assert.NotContains(t, tags, "stack_trace")
}

func TestGo_RecoversPanic(t *testing.T) {
	t.Parallel()

	logger := &testLogger{}
	done := make(chan struct{})

	Go(context.Background(), logger, "coordinator", "panicking-worker", func(_ context.Context) {
		defer close(done)

		panic("goroutine panic")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not finish")
	}

	// The deferred close runs before the recover handler; poll briefly.
	require.Eventually(t, logger.logged, time.Second, 5*time.Millisecond)
}

func TestGo_RunsFunction(t *testing.T) {
	t.Parallel()

	done := make(chan struct{})

	Go(context.Background(), nil, "coordinator", "worker", func(_ context.Context) {
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not run")
	}
}

type capturingReporter struct {
	mu   sync.Mutex
	err  error
	tags map[string]string
}

func (r *capturingReporter) CaptureException(_ context.Context, err error, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.err = err
	r.tags = tags
}

func (r *capturingReporter) last() (error, map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.err, r.tags
}
