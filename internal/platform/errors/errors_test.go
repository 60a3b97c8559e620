package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{AuthenticationError("bad signature"), http.StatusForbidden},
		{MalformedError("bad json", nil), http.StatusBadRequest},
		{UpstreamError("helix down", nil), http.StatusBadGateway},
		{DeliveryError("discord down", nil), http.StatusBadGateway},
		{InternalError("boom", nil), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.err.Type), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatus())
		})
	}
}

func TestTransient(t *testing.T) {
	assert.True(t, UpstreamError("x", nil).Transient())
	assert.True(t, DeliveryError("x", nil).Transient())
	assert.True(t, EnrichmentError("x", nil).Transient())
	assert.False(t, AuthenticationError("x").Transient())
	assert.False(t, MalformedError("x", nil).Transient())
}

func TestError_UnwrapAndMessage(t *testing.T) {
	cause := errors.New("connection reset")
	err := DeliveryError("failed to send clip", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "delivery: failed to send clip: connection reset", err.Error())
	assert.Equal(t, "authentication: missing signature", AuthenticationError("missing signature").Error())
}

func TestAsStructuredError(t *testing.T) {
	assert.Nil(t, AsStructuredError(nil))

	original := UpstreamError("list clips", nil)
	wrapped := fmt.Errorf("poll: %w", original)
	assert.Same(t, original, AsStructuredError(wrapped))

	plain := errors.New("plain")
	got := AsStructuredError(plain)
	assert.Equal(t, TypeInternal, got.Type)
	assert.ErrorIs(t, got, plain)
}

func TestLogAttrs(t *testing.T) {
	err := DeliveryError("send failed", errors.New("503")).WithContext("clip_id", "c2")
	attrs := err.LogAttrs()

	assert.Contains(t, attrs, "clip_id")
	assert.Contains(t, attrs, "c2")
	assert.Contains(t, attrs, "cause")
}

func TestLogAttrs_SortedContext(t *testing.T) {
	cause := errors.New("503")
	err := UpstreamError("list clips", cause).
		WithContext("login", "alice").
		WithContext("broadcaster_id", "1337")

	assert.Equal(t, []any{
		"error_type", TypeUpstream,
		"message", "list clips",
		"broadcaster_id", "1337",
		"login", "alice",
		"cause", cause,
	}, err.LogAttrs())
}
