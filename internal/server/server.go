package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// Server wraps the admin control-surface HTTP API (spec §8) with
// graceful shutdown: accepted connections are drained rather than cut
// when a monitord process is asked to stop.
type Server struct {
	httpServer      *http.Server
	logger          *zerolog.Logger
	shutdownTimeout time.Duration
}

// ServerOptions configures the admin API's HTTP listener.
type ServerOptions struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewServer wraps router behind an http.Server bound to opts.Port,
// applying the admin API's default timeouts where opts leaves them zero.
func NewServer(router http.Handler, logger *zerolog.Logger, opts ServerOptions) *Server {
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 15 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 15 * time.Second
	}
	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = 60 * time.Second
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = 30 * time.Second
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      router,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  opts.IdleTimeout,
	}

	return &Server{
		httpServer:      httpServer,
		logger:          logger,
		shutdownTimeout: opts.ShutdownTimeout,
	}
}

// Start serves the admin API until a shutdown signal, ctx cancellation,
// or a listener error arrives, then drains in-flight requests within
// shutdownTimeout before returning.
func (s *Server) Start(ctx context.Context) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info().
			Str("addr", s.httpServer.Addr).
			Msg("admin api listening")

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("admin api listener error: %w", err)
	case <-stop:
		s.logger.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		s.logger.Info().Msg("context cancelled, shutting down admin api")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	s.logger.Info().Msg("draining admin api connections")

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("admin api shutdown error")
		return err
	}

	s.logger.Info().Msg("admin api stopped")
	return nil
}

// Shutdown performs graceful shutdown
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
