package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pscheid92/streamrelay/internal/adapter/metrics"
	"github.com/pscheid92/streamrelay/internal/domain"
	apperrors "github.com/pscheid92/streamrelay/internal/platform/errors"
)

const (
	kindStream = "stream"
	kindClip   = "clip"
)

// Announcer composes the long-form "went live" text. Implementations never fail; they fall back
// to a fixed template themselves.
type Announcer interface {
	Announcement(ctx context.Context, event domain.StreamOnlineEvent) string
}

type NotifierConfig struct {
	StreamsWebhookURL string
	ClipsWebhookURL   string
}

// Notifier formats announcements and hands them to the message sender.
// An empty destination disables the corresponding path.
type Notifier struct {
	sender    domain.MessageSender
	cfg       NotifierConfig
	announcer Announcer
	metrics   *metrics.NotifierMetrics
}

// NewNotifier creates a notifier. announcer may be nil, in which case stream announcements use
// the plain template.
func NewNotifier(sender domain.MessageSender, cfg NotifierConfig, announcer Announcer, m *metrics.NotifierMetrics) *Notifier {
	return &Notifier{sender: sender, cfg: cfg, announcer: announcer, metrics: m}
}

func (n *Notifier) StreamsEnabled() bool { return n.cfg.StreamsWebhookURL != "" }

func (n *Notifier) ClipsEnabled() bool { return n.cfg.ClipsWebhookURL != "" }

// AnnounceStream posts a "went live" message to the streams destination.
func (n *Notifier) AnnounceStream(ctx context.Context, event domain.StreamOnlineEvent) error {
	var content string
	if n.announcer != nil {
		content = n.announcer.Announcement(ctx, event)
	} else {
		content = PlainStreamAnnouncement(event.BroadcasterName)
	}

	return n.send(ctx, kindStream, n.cfg.StreamsWebhookURL, domain.Message{Content: content},
		"broadcaster_id", event.BroadcasterID, "broadcaster_name", event.BroadcasterName)
}

// AnnounceClip posts a rich embed for clip to the clips destination.
func (n *Notifier) AnnounceClip(ctx context.Context, clip domain.Clip) error {
	msg := domain.Message{Embeds: []domain.Embed{{
		Title:       clip.Title,
		URL:         clip.URL,
		Description: "New clip by " + clip.CreatorName,
		ImageURL:    clip.ThumbnailURL,
		Timestamp:   clip.CreatedAt,
	}}}

	return n.send(ctx, kindClip, n.cfg.ClipsWebhookURL, msg, "clip_id", clip.ID)
}

func (n *Notifier) send(ctx context.Context, kind, destination string, msg domain.Message, attrs ...any) error {
	if destination == "" {
		return apperrors.DeliveryError("no destination configured", domain.ErrNoDestination).WithContext("kind", kind)
	}

	if err := n.sender.Send(ctx, destination, msg); err != nil {
		n.metrics.Sent.WithLabelValues(kind, "failed").Inc()

		deliveryErr := apperrors.DeliveryError(fmt.Sprintf("failed to send %s announcement", kind), err).
			WithContext("kind", kind).
			WithContext("destination", destinationName(kind))
		slog.ErrorContext(ctx, "Announcement failed", append(deliveryErr.LogAttrs(), attrs...)...)
		return deliveryErr
	}

	n.metrics.Sent.WithLabelValues(kind, "sent").Inc()
	slog.InfoContext(ctx, "Announcement sent", append([]any{"kind", kind}, attrs...)...)
	return nil
}

// destinationName identifies the webhook in logs without leaking its token.
func destinationName(kind string) string {
	if kind == kindStream {
		return "discord_streams"
	}
	return "discord_clips"
}

// PlainStreamAnnouncement is the message sent when enrichment is not configured.
func PlainStreamAnnouncement(name string) string {
	return fmt.Sprintf("🔴 **%s is live!**\n%s%s", name, domain.StreamURLBase, name)
}
