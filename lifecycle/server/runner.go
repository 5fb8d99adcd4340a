package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"google.golang.org/grpc"

	"github.com/LerianStudio/lib-lifecycle/lifecycle"
	"github.com/LerianStudio/lib-lifecycle/lifecycle/log"
)

// ErrNoServersConfigured indicates no servers were configured for the runner
var ErrNoServersConfigured = errors.New("no servers configured: use WithHTTPServer() or WithGRPCServer()")

const defaultStopTimeout = 30 * time.Second

// Runner registers HTTP and gRPC servers as coordinator workers.
// It can manage HTTP servers, gRPC servers, or both simultaneously.
type Runner struct {
	httpServer  *fiber.App
	grpcServer  *grpc.Server
	logger      log.Logger
	httpAddress string
	grpcAddress string
	stopTimeout time.Duration
}

// NewRunner creates a new Runner. If logger is nil, a no-op logger is
// used so the runner stays nil-safe throughout the server lifecycle.
func NewRunner(logger log.Logger) *Runner {
	if logger == nil {
		logger = log.NewNop()
	}

	return &Runner{
		logger:      logger,
		stopTimeout: defaultStopTimeout,
	}
}

// WithHTTPServer configures the HTTP server for the Runner.
func (r *Runner) WithHTTPServer(app *fiber.App, address string) *Runner {
	r.httpServer = app
	r.httpAddress = address

	return r
}

// WithGRPCServer configures the gRPC server for the Runner.
func (r *Runner) WithGRPCServer(server *grpc.Server, address string) *Runner {
	r.grpcServer = server
	r.grpcAddress = address

	return r
}

// WithStopTimeout configures the maximum duration to wait for gRPC
// GracefulStop before forcing a hard stop. Defaults to 30 seconds.
func (r *Runner) WithStopTimeout(d time.Duration) *Runner {
	r.stopTimeout = d

	return r
}

// Register starts one worker per configured server on the coordinator.
// Each worker serves until the coordinator is cancelled, shuts its server
// down gracefully, and reports serve failures through the coordinator's
// failure aggregation.
func (r *Runner) Register(coord *lifecycle.Coordinator) error {
	if coord == nil {
		return lifecycle.ErrNilCoordinator
	}

	if r.httpServer == nil && r.grpcServer == nil {
		return ErrNoServersConfigured
	}

	if r.httpServer != nil {
		if err := coord.Start(lifecycle.Worker{Name: "http-server", Run: r.runHTTP}); err != nil {
			return fmt.Errorf("register HTTP server: %w", err)
		}
	}

	if r.grpcServer != nil {
		if err := coord.Start(lifecycle.Worker{Name: "grpc-server", Run: r.runGRPC}); err != nil {
			return fmt.Errorf("register gRPC server: %w", err)
		}
	}

	return nil
}

// runHTTP serves the Fiber app until cancellation or listener failure.
// Listen blocks, so it runs in a sub-goroutine while the worker waits on
// either the serve result or the token.
func (r *Runner) runHTTP(token lifecycle.Token) error {
	r.logger.Log(context.Background(), log.LevelInfo, "starting HTTP server",
		log.String("address", r.httpAddress))

	serveErr := make(chan error, 1)

	go func() {
		serveErr <- r.httpServer.Listen(r.httpAddress)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("HTTP server: %w", err)
		}

		return nil
	case <-token.Done():
		r.logger.Log(context.Background(), log.LevelInfo, "shutting down HTTP server")

		if err := r.httpServer.Shutdown(); err != nil {
			return fmt.Errorf("HTTP server shutdown: %w", err)
		}

		// Listen returns once Shutdown completes; drain its result so the
		// goroutine does not leak.
		if err := <-serveErr; err != nil {
			return fmt.Errorf("HTTP server: %w", err)
		}

		return nil
	}
}

// runGRPC serves the gRPC server until cancellation or listener failure.
// On cancellation it attempts GracefulStop bounded by the stop timeout,
// then falls back to a hard Stop.
func (r *Runner) runGRPC(token lifecycle.Token) error {
	r.logger.Log(context.Background(), log.LevelInfo, "starting gRPC server",
		log.String("address", r.grpcAddress))

	listener, err := net.Listen("tcp", r.grpcAddress)
	if err != nil {
		return fmt.Errorf("gRPC listen: %w", err)
	}

	serveErr := make(chan error, 1)

	go func() {
		serveErr <- r.grpcServer.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("gRPC serve: %w", err)
		}

		return nil
	case <-token.Done():
		r.logger.Log(context.Background(), log.LevelInfo, "shutting down gRPC server")

		stopped := make(chan struct{})

		go func() {
			r.grpcServer.GracefulStop()
			close(stopped)
		}()

		select {
		case <-stopped:
			r.logger.Log(context.Background(), log.LevelInfo, "gRPC server stopped gracefully")
		case <-time.After(r.stopTimeout):
			r.logger.Log(context.Background(), log.LevelWarn, "gRPC graceful stop timed out, forcing stop")
			r.grpcServer.Stop()
		}

		// Serve returns ErrServerStopped after Stop/GracefulStop; that is a
		// clean exit, not a failure.
		if err := <-serveErr; err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gRPC serve: %w", err)
		}

		return nil
	}
}
