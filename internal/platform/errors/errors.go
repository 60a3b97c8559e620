// Package errors classifies failures of the relay into the categories the loops and the webhook
// endpoint act on: reject (authentication, malformed), log and retry on the next cycle (upstream),
// or isolate to one item (delivery, enrichment).
package errors

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
)

type ErrorType string

const (
	// TypeAuthentication is a missing or invalid webhook signature (HTTP 403).
	TypeAuthentication ErrorType = "authentication"
	// TypeMalformed is an unparseable inbound request (HTTP 400).
	TypeMalformed ErrorType = "malformed"
	// TypeUpstream is a failed streaming-platform or messaging-platform call.
	TypeUpstream ErrorType = "upstream"
	// TypeDelivery is a single outbound notification that could not be sent.
	TypeDelivery ErrorType = "delivery"
	// TypeEnrichment is an unavailable or rate-limited text generator.
	TypeEnrichment ErrorType = "enrichment"
	// TypeInternal is anything else.
	TypeInternal ErrorType = "internal"
)

type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeAuthentication:
		return http.StatusForbidden
	case TypeMalformed:
		return http.StatusBadRequest
	case TypeUpstream, TypeDelivery, TypeEnrichment:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Transient reports whether the failure heals on its own on the next natural cycle.
func (e *Error) Transient() bool {
	return e.Type == TypeUpstream || e.Type == TypeDelivery || e.Type == TypeEnrichment
}

func newError(t ErrorType, message string, cause error) *Error {
	return &Error{Type: t, Message: message, Cause: cause, Context: make(map[string]any)}
}

func AuthenticationError(message string) *Error { return newError(TypeAuthentication, message, nil) }

func MalformedError(message string, cause error) *Error {
	return newError(TypeMalformed, message, cause)
}

func UpstreamError(message string, cause error) *Error {
	return newError(TypeUpstream, message, cause)
}

func DeliveryError(message string, cause error) *Error {
	return newError(TypeDelivery, message, cause)
}

func EnrichmentError(message string, cause error) *Error {
	return newError(TypeEnrichment, message, cause)
}

func InternalError(message string, cause error) *Error {
	return newError(TypeInternal, message, cause)
}

// WithContext adds a diagnostic field (chainable).
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// LogAttrs flattens the error into slog key/value pairs, context keys in sorted order.
func (e *Error) LogAttrs() []any {
	attrs := []any{"error_type", e.Type, "message", e.Message}
	for _, k := range slices.Sorted(maps.Keys(e.Context)) {
		attrs = append(attrs, k, e.Context[k])
	}
	if e.Cause != nil {
		attrs = append(attrs, "cause", e.Cause)
	}
	return attrs
}

// AsStructuredError returns err as an *Error, wrapping unknown errors as internal.
func AsStructuredError(err error) *Error {
	if err == nil {
		return nil
	}

	if se, ok := errors.AsType[*Error](err); ok {
		return se
	}
	return InternalError("unexpected error", err)
}
