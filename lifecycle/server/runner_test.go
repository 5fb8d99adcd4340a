//go:build unit

package server_test

import (
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/LerianStudio/lib-lifecycle/lifecycle"
	"github.com/LerianStudio/lib-lifecycle/lifecycle/server"
)

func newQuietApp() *fiber.App {
	return fiber.New(fiber.Config{DisableStartupMessage: true})
}

func TestRegister_NoServersConfigured(t *testing.T) {
	t.Parallel()

	coord := lifecycle.New()
	runner := server.NewRunner(nil)

	err := runner.Register(coord)

	assert.ErrorIs(t, err, server.ErrNoServersConfigured)
	assert.Equal(t, 0, coord.Running())
}

func TestRegister_NilCoordinator(t *testing.T) {
	t.Parallel()

	runner := server.NewRunner(nil).WithHTTPServer(newQuietApp(), "127.0.0.1:0")

	err := runner.Register(nil)

	assert.ErrorIs(t, err, lifecycle.ErrNilCoordinator)
}

func TestRegister_AfterCancelFails(t *testing.T) {
	t.Parallel()

	coord := lifecycle.New()
	coord.Cancel()

	runner := server.NewRunner(nil).WithHTTPServer(newQuietApp(), "127.0.0.1:0")

	err := runner.Register(coord)

	assert.ErrorIs(t, err, lifecycle.ErrAlreadyStopping)
}

func TestHTTPServer_ShutsDownWithCoordinator(t *testing.T) {
	t.Parallel()

	coord := lifecycle.New()

	runner := server.NewRunner(nil).WithHTTPServer(newQuietApp(), "127.0.0.1:0")

	require.NoError(t, runner.Register(coord))
	require.Equal(t, 1, coord.Running())

	// Give the listener a moment to bind before asking it to stop.
	time.Sleep(100 * time.Millisecond)

	done := make(chan error, 1)

	go func() {
		done <- coord.Shutdown()
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("HTTP server worker must exit on coordinator shutdown")
	}
}

func TestGRPCServer_ShutsDownWithCoordinator(t *testing.T) {
	t.Parallel()

	coord := lifecycle.New()

	runner := server.NewRunner(nil).
		WithGRPCServer(grpc.NewServer(), "127.0.0.1:0").
		WithStopTimeout(time.Second)

	require.NoError(t, runner.Register(coord))

	time.Sleep(100 * time.Millisecond)

	done := make(chan error, 1)

	go func() {
		done <- coord.Shutdown()
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("gRPC server worker must exit on coordinator shutdown")
	}
}

func TestBothServers_RunAsSeparateWorkers(t *testing.T) {
	t.Parallel()

	coord := lifecycle.New()

	runner := server.NewRunner(nil).
		WithHTTPServer(newQuietApp(), "127.0.0.1:0").
		WithGRPCServer(grpc.NewServer(), "127.0.0.1:0").
		WithStopTimeout(time.Second)

	require.NoError(t, runner.Register(coord))
	assert.Equal(t, 2, coord.Running())

	time.Sleep(100 * time.Millisecond)

	require.NoError(t, coord.Shutdown())
	assert.Equal(t, 0, coord.Running())
}

func TestGRPCServer_ListenFailureReported(t *testing.T) {
	t.Parallel()

	coord := lifecycle.New()

	runner := server.NewRunner(nil).WithGRPCServer(grpc.NewServer(), "256.256.256.256:0")

	require.NoError(t, runner.Register(coord))

	err := coord.Shutdown()

	require.Error(t, err)

	var workerErr *lifecycle.WorkerError

	require.ErrorAs(t, err, &workerErr)
	assert.Equal(t, "grpc-server", workerErr.Name)
	assert.Contains(t, workerErr.Err.Error(), "gRPC listen")
}
