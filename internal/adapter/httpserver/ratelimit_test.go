package httpserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRemoteAddr = "1.2.3.4:1234"

func TestRateLimiterAllowsRequestsUnderLimit(t *testing.T) {
	e := echo.New()
	mw := newRateLimiter(10, 3)

	handler := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	for range 3 {
		req := httptest.NewRequest(http.MethodPost, WebhookPath, nil)
		req.RemoteAddr = testRemoteAddr
		rec := httptest.NewRecorder()

		require.NoError(t, handler(e.NewContext(req, rec)))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestRateLimiterBlocksExcessiveRequests(t *testing.T) {
	e := echo.New()
	mw := newRateLimiter(0.01, 1)

	handler := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	codes := make([]int, 0, 2)
	for range 2 {
		req := httptest.NewRequest(http.MethodPost, WebhookPath, nil)
		req.RemoteAddr = testRemoteAddr
		rec := httptest.NewRecorder()
		require.NoError(t, handler(e.NewContext(req, rec)))
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusNoContent, http.StatusTooManyRequests}, codes)
}

func TestRateLimiterIsPerClient(t *testing.T) {
	e := echo.New()
	mw := newRateLimiter(0.01, 1)

	handler := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	for _, addr := range []string{"1.1.1.1:1000", "2.2.2.2:2000"} {
		req := httptest.NewRequest(http.MethodPost, WebhookPath, nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		require.NoError(t, handler(e.NewContext(req, rec)))
		assert.Equal(t, http.StatusNoContent, rec.Code, addr)
	}
}

func TestWebhookRoute_RateLimited(t *testing.T) {
	webhook := &recordingWebhook{}
	srv := NewServer("0", webhook, WithWebhookRateLimit(0.01, 2))

	var codes []int
	for range 3 {
		rec := serve(t, srv, http.MethodPost, WebhookPath, strings.Repeat("x", 4))
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
	assert.Equal(t, 2, webhook.calls)
}
