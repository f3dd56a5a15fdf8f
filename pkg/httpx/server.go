// Package httpx holds the HTTP plumbing shared by the sampler's status server
// and the solver API client.
package httpx

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Server is an http.Server with logged start and graceful stop.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer creates a server on addr. A nil logger uses slog.Default.
func NewServer(addr string, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger.With("component", "status-server"),
	}
}

// SetTLSConfig must be called before ListenTLS.
func (s *Server) SetTLSConfig(cfg *tls.Config) {
	s.srv.TLSConfig = cfg
}

// Listen serves plain HTTP until Stop is called.
func (s *Server) Listen() error {
	s.logger.Info("status server listening", "addr", s.srv.Addr, "tls", false)
	return s.serveResult(s.srv.ListenAndServe())
}

// ListenTLS serves HTTPS with the given key pair until Stop is called.
func (s *Server) ListenTLS(certFile, keyFile string) error {
	s.logger.Info("status server listening", "addr", s.srv.Addr, "tls", true)
	return s.serveResult(s.srv.ListenAndServeTLS(certFile, keyFile))
}

func (s *Server) serveResult(err error) error {
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("status server: %w", err)
}

// Stop drains open connections for at most timeout.
func (s *Server) Stop(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("status server shutdown: %w", err)
	}
	s.logger.Info("status server stopped")
	return nil
}
