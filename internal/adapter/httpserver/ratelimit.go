package httpserver

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

const (
	// EventSub delivers at most a handful of notifications per broadcaster; anything far above
	// that from one address is someone probing the signature check.
	defaultWebhookRate  = 5.0
	defaultWebhookBurst = 20

	rateLimiterExpiry = 5 * time.Minute
)

// WithWebhookRateLimit overrides the per-client-IP limit of the webhook route.
func WithWebhookRateLimit(ratePerSecond float64, burst int) Option {
	return func(s *Server) {
		s.webhookRate = ratePerSecond
		s.webhookBurst = burst
	}
}

func newRateLimiter(ratePerSecond float64, burst int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(ratePerSecond),
			Burst:     burst,
			ExpiresIn: rateLimiterExpiry,
		},
	)
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		Store: store,
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return c.String(http.StatusTooManyRequests, "rate limit exceeded")
		},
	})
}
