package httpserver

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/pscheid92/streamrelay/internal/adapter/metrics"
)

// WebhookPath is the route the EventSub callback URL must point at.
const WebhookPath = "/webhooks/eventsub"

func (s *Server) registerRoutes() {
	s.echo.Use(requestLogger(), middleware.Recover())
	if s.httpMetrics != nil {
		s.echo.Use(s.httpMetrics.Middleware())
	}

	s.registerHealthRoutes()
	if s.registry != nil {
		s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler(s.registry)))
	}

	limit := newRateLimiter(s.webhookRate, s.webhookBurst)
	s.echo.POST(WebhookPath, echo.WrapHandler(s.webhookHandler), limit)
}

// requestLogger logs one line per request. Rejected requests (4xx/5xx) are logged at warn so
// forged or malformed webhook deliveries stand out.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper:      isHealthOrScrape,
		LogMethod:    true,
		LogRoutePath: true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= http.StatusBadRequest {
				level = slog.LevelWarn
			}

			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("route", v.RoutePath),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.Any("error", v.Error))
			}
			slog.LogAttrs(c.Request().Context(), level, "HTTP request", attrs...)
			return nil
		},
	})
}

// isHealthOrScrape keeps liveness polling and scrapes out of the request log.
func isHealthOrScrape(c echo.Context) bool {
	p := c.Request().URL.Path
	return p == "/metrics" || strings.HasPrefix(p, "/health/")
}
