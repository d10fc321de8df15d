package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/callgear-sync/cg-webhook/internal/config"
	"github.com/callgear-sync/cg-webhook/internal/logging"
)

// Server runs the HTTP listener until its context is cancelled.
type Server struct {
	http            *http.Server
	shutdownTimeout time.Duration
	logger          *logging.Logger
}

func New(cfg config.ServerConfig, handler http.Handler, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Default()
	}
	return &Server{
		http: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		shutdownTimeout: cfg.WriteTimeout,
		logger:          logger,
	}
}

// Run serves until ctx is done, then drains in-flight requests for at most
// the write timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("webhook listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}
