// Package correlation tags a unit of work (one inbound webhook, one poll cycle, one announced
// stream event) so every log line emitted while handling it can be grouped afterwards.
package correlation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// Scope identifies one unit of work.
type Scope struct {
	Kind string // "webhook", "poll_cycle", "stream_event"
	ID   string
}

type scopeKey struct{}

// NewID returns 8 random hex characters.
func NewID() string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// WithID attaches a scope with a known id, such as an EventSub message id.
// An empty id falls back to a generated one.
func WithID(ctx context.Context, kind, id string) context.Context {
	if id == "" {
		id = NewID()
	}
	return context.WithValue(ctx, scopeKey{}, Scope{Kind: kind, ID: id})
}

// Start attaches a scope with a generated id.
func Start(ctx context.Context, kind string) context.Context {
	return WithID(ctx, kind, "")
}

func FromContext(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(Scope)
	return s, ok
}

// Handler adds "correlation_id" and "work" to every record logged with a scoped context.
type Handler struct {
	next slog.Handler
}

var _ slog.Handler = (*Handler)(nil)

func NewHandler(next slog.Handler) *Handler {
	return &Handler{next: next}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if s, ok := FromContext(ctx); ok {
		r.AddAttrs(slog.String("correlation_id", s.ID), slog.String("work", s.Kind))
	}
	if err := h.next.Handle(ctx, r); err != nil {
		return fmt.Errorf("correlation handler: %w", err)
	}
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewHandler(h.next.WithAttrs(attrs))
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return NewHandler(h.next.WithGroup(name))
}
