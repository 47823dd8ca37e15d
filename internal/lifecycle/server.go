package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jordansnyder/maestra-core/internal/logger"
)

const (
	ShutdownTimeout = 10 * time.Second

	defaultShutdownWait = 100 * time.Millisecond
	defaultErrChan      = 2
)

var (
	errShutdownTimeout = errors.New("timeout shutting down")
	errServiceStop     = errors.New("service stop failed")
)

// Service defines the long-running component RunServer starts and stops
// alongside the HTTP front. In cmd/maestra-core it is the MQTT<->NATS
// bridge relay.
type Service interface {
	Start(context.Context) error
	Stop(context.Context) error
}

// ServerOptions holds configuration for running the HTTP front alongside a
// Service implementation that owns the rest of the process (bus connections,
// store handles, background workers).
type ServerOptions struct {
	ListenAddr   string
	ServiceName  string
	Service      Service
	Handler      http.Handler
	LoggerConfig *logger.Config
	Logger       logger.Logger // Optional: if provided, uses this logger instead of creating a new one
}

// RunServer starts the HTTP front and the supplied Service, then blocks until
// a shutdown signal, a fatal error, or context cancellation occurs.
func RunServer(ctx context.Context, opts *ServerOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var log logger.Logger

	if opts.Logger == nil {
		createdLogger, err := CreateComponentLogger(opts.ServiceName, opts.LoggerConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		log = createdLogger
	} else {
		log = opts.Logger
	}

	httpServer := &http.Server{
		Addr:              opts.ListenAddr,
		Handler:           opts.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		if err := opts.Service.Start(ctx); err != nil {
			errChan <- fmt.Errorf("service start failed: %w", err)
		}
	}()

	go func() {
		log.Info().Str("address", opts.ListenAddr).Msg("Starting HTTP server")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	return handleShutdown(ctx, cancel, httpServer, opts.Service, errChan, log)
}

// handleShutdown manages the graceful shutdown process.
func handleShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	httpServer *http.Server,
	svc Service,
	errChan chan error,
	log logger.Logger,
) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received signal, initiating shutdown")
	case err := <-errChan:
		log.Error().Err(err).Msg("Received error, initiating shutdown")

		return err
	case <-ctx.Done():
		log.Info().Msg("Context canceled, initiating shutdown")

		return ctx.Err()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer shutdownCancel()

	cancel()

	errChanShutdown := make(chan error, defaultErrChan)

	go func() {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("HTTP server shutdown error")
		}
	}()

	go func() {
		if err := svc.Stop(shutdownCtx); err != nil {
			errChanShutdown <- fmt.Errorf("%w: %w", errServiceStop, err)
		}
	}()

	select {
	case <-shutdownCtx.Done():
		log.Error().Msg("Shutdown timed out")

		return fmt.Errorf("%w: %w", errShutdownTimeout, shutdownCtx.Err())
	case err := <-errChanShutdown:
		return err
	case <-time.After(defaultShutdownWait):
		return nil
	}
}
