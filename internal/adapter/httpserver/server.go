package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pscheid92/streamrelay/internal/adapter/metrics"
)

// Server is the inbound HTTP endpoint: the EventSub webhook plus health, version and metrics.
type Server struct {
	echo *echo.Echo
	port string

	webhookHandler http.Handler
	webhookRate    float64
	webhookBurst   int
	registry       *prometheus.Registry
	httpMetrics    *metrics.HTTPMetrics
	healthChecks   []HealthCheck

	clock     clockwork.Clock
	startTime time.Time
}

type Option func(*Server)

// WithMetrics exposes reg on /metrics and records per-route request metrics.
func WithMetrics(reg *prometheus.Registry, m *metrics.HTTPMetrics) Option {
	return func(s *Server) {
		s.registry = reg
		s.httpMetrics = m
	}
}

func WithHealthChecks(checks ...HealthCheck) Option {
	return func(s *Server) { s.healthChecks = append(s.healthChecks, checks...) }
}

func WithClock(clock clockwork.Clock) Option {
	return func(s *Server) { s.clock = clock }
}

func NewServer(port string, webhookHandler http.Handler, opts ...Option) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:           e,
		port:           port,
		webhookHandler: webhookHandler,
		webhookRate:    defaultWebhookRate,
		webhookBurst:   defaultWebhookBurst,
		clock:          clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(srv)
	}
	srv.startTime = srv.clock.Now()

	srv.registerRoutes()

	return srv
}

// Start blocks serving requests until Shutdown. A graceful shutdown is not an error.
func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.port)
	if err := s.echo.Start(":" + s.port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}
