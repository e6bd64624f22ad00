package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/therealutkarshpriyadarshi/logwatch/internal/health"
	"github.com/therealutkarshpriyadarshi/logwatch/internal/logging"
)

// Server provides HTTP endpoints for metrics and health checks on one address
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	logger     *logging.Logger
}

// Config holds server configuration
type Config struct {
	Address         string
	MetricsPath     string
	HealthPath      string
	MetricsRegistry *prometheus.Registry
	HealthChecker   *health.Checker
	Logger          *logging.Logger
}

// New creates a new server
func New(cfg Config) *Server {
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.HealthPath == "" {
		cfg.HealthPath = "/health"
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}

	mux := http.NewServeMux()
	if cfg.MetricsRegistry != nil {
		mux.Handle(cfg.MetricsPath, promhttp.HandlerFor(
			cfg.MetricsRegistry,
			promhttp.HandlerOpts{
				EnableOpenMetrics: true,
			},
		))
	}
	if cfg.HealthChecker != nil {
		mux.HandleFunc(cfg.HealthPath, cfg.HealthChecker.HTTPHandler())
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Address,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       5 * time.Second,
			WriteTimeout:      10 * time.Second,
		},
		logger: cfg.Logger.WithComponent("server"),
	}
}

// Start binds the address and serves in the background. Bind failures are
// returned immediately.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("metrics server error: %w", err)
	}
	s.listener = ln

	s.logger.Info().
		Str("address", ln.Addr().String()).
		Msg("Starting metrics server")

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Metrics server stopped")
		}
	}()

	return nil
}

// Addr returns the bound address once Start has succeeded
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.httpServer.Addr
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}

	s.logger.Info().Msg("Shutting down metrics server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down metrics server")
		return err
	}
	return nil
}
