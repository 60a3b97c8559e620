package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/streamrelay/internal/domain"
	"github.com/pscheid92/streamrelay/internal/platform/correlation"
	"github.com/pscheid92/streamrelay/internal/platform/retry"
)

const (
	DefaultCleanupTimeout    = 15 * time.Second
	DefaultRestartBackoff    = time.Second
	DefaultMaxRestartBackoff = 5 * time.Minute

	eventBufferSize = 16
)

// StreamAnnouncer is the part of the Notifier the listener needs.
type StreamAnnouncer interface {
	StreamsEnabled() bool
	AnnounceStream(ctx context.Context, event domain.StreamOnlineEvent) error
}

// WebhookTransport is the inbound HTTP server the platform calls back on.
// Start blocks until Shutdown and returns nil after a graceful shutdown.
type WebhookTransport interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// TransportFactory builds the webhook transport that delivers verified events to handler.
type TransportFactory func(handler domain.StreamOnlineHandler) WebhookTransport

type ListenerConfig struct {
	Login          string
	CleanupTimeout time.Duration

	// RestartBackoff is the first wait after a failed run; it doubles up to MaxRestartBackoff.
	RestartBackoff    time.Duration
	MaxRestartBackoff time.Duration
	Clock             clockwork.Clock
}

// StreamListener keeps a "stream online" EventSub subscription for one broadcaster and
// announces every event it receives. It implements domain.StreamOnlineHandler.
type StreamListener struct {
	openSession  SessionOpener
	newTransport TransportFactory
	announcer    StreamAnnouncer
	cfg          ListenerConfig

	events chan domain.StreamOnlineEvent
}

func NewStreamListener(openSession SessionOpener, newTransport TransportFactory, announcer StreamAnnouncer, cfg ListenerConfig) *StreamListener {
	if cfg.CleanupTimeout <= 0 {
		cfg.CleanupTimeout = DefaultCleanupTimeout
	}
	if cfg.RestartBackoff <= 0 {
		cfg.RestartBackoff = DefaultRestartBackoff
	}
	if cfg.MaxRestartBackoff < cfg.RestartBackoff {
		cfg.MaxRestartBackoff = max(DefaultMaxRestartBackoff, cfg.RestartBackoff)
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &StreamListener{
		openSession:  openSession,
		newTransport: newTransport,
		announcer:    announcer,
		cfg:          cfg,
		events:       make(chan domain.StreamOnlineEvent, eventBufferSize),
	}
}

// HandleStreamOnline queues event for announcement without blocking the webhook response.
func (l *StreamListener) HandleStreamOnline(ctx context.Context, event domain.StreamOnlineEvent) {
	select {
	case l.events <- event:
		slog.InfoContext(ctx, "Stream online event queued", "broadcaster_id", event.BroadcasterID, "broadcaster_name", event.BroadcasterName)
	default:
		slog.WarnContext(ctx, "Stream online event dropped, queue full", "broadcaster_id", event.BroadcasterID)
	}
}

// Run keeps a listener session alive until ctx is cancelled. A session that fails to set up or
// whose transport dies is torn down and started again after a capped exponential backoff.
// Returns immediately when no streams destination is configured.
func (l *StreamListener) Run(ctx context.Context) error {
	if !l.announcer.StreamsEnabled() {
		slog.Info("Stream listener disabled, no streams destination configured")
		return nil
	}

	p := retry.Policy{
		MaxAttempts:    math.MaxInt,
		InitialBackoff: l.cfg.RestartBackoff,
		MaxBackoff:     l.cfg.MaxRestartBackoff,
		Clock:          l.cfg.Clock,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.ErrorContext(ctx, "Stream listener failed, restarting", "attempt", attempt, "backoff", backoff, "error", err)
		},
	}
	// Only shutdown ends the loop; a timeout inside one run is just another failed run.
	restartUnlessStopping := func(error) retry.Action {
		if ctx.Err() != nil {
			return retry.Stop
		}
		return retry.Retry
	}
	err := retry.DoVoid(ctx, p, restartUnlessStopping, func() error { return l.runSession(ctx) })
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// runSession sets up the subscription and announces events until ctx is cancelled or the
// transport fails. On the way out it stops the transport, removes the subscription and closes
// the session, each best-effort and bounded by the cleanup timeout.
func (l *StreamListener) runSession(ctx context.Context) error {
	session, err := l.openSession(ctx)
	if err != nil {
		return fmt.Errorf("open platform session: %w", err)
	}

	var (
		transport WebhookTransport
		sub       *domain.Subscription
	)
	defer func() {
		l.cleanup(ctx, transport, session, sub)
	}()

	user, err := session.ResolveUser(ctx, l.cfg.Login)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", l.cfg.Login, err)
	}

	// Stale subscriptions from a previous run would announce every stream twice.
	if err := session.UnsubscribeAll(ctx); err != nil {
		slog.WarnContext(ctx, "Failed to clear old subscriptions", "error", err)
	}

	transport = l.newTransport(l)
	serveErr := make(chan error, 1)
	go func() { serveErr <- transport.Start() }()

	sub, err = session.Subscribe(ctx, domain.SubscriptionTypeStreamOnline, user.ID)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", domain.SubscriptionTypeStreamOnline, err)
	}

	slog.Info("Stream listener started", "login", user.Login, "broadcaster_id", user.ID, "subscription_id", sub.ID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-serveErr:
			if err == nil {
				err = errors.New("webhook transport stopped unexpectedly")
			}
			return err
		case event := <-l.events:
			eventCtx := correlation.Start(ctx, "stream_event")
			// Delivery failures are logged by the announcer; the listener keeps going.
			_ = l.announcer.AnnounceStream(eventCtx, event)
		}
	}
}

func (l *StreamListener) cleanup(ctx context.Context, transport WebhookTransport, session domain.PlatformSession, sub *domain.Subscription) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.cfg.CleanupTimeout)
	defer cancel()

	if transport != nil {
		if err := transport.Shutdown(cleanupCtx); err != nil {
			slog.Warn("Webhook transport shutdown failed", "error", err)
		}
	}

	if sub != nil {
		if err := session.Unsubscribe(cleanupCtx, sub.ID); err != nil {
			slog.Warn("Failed to remove subscription", "subscription_id", sub.ID, "error", err)
		}
	}

	if err := session.Close(); err != nil {
		slog.Warn("Failed to close platform session", "error", err)
	}

	slog.Info("Stream listener stopped")
}
