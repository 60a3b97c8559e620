package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/streamrelay/internal/adapter/metrics"
	"github.com/pscheid92/streamrelay/internal/domain"
	apperrors "github.com/pscheid92/streamrelay/internal/platform/errors"
)

const enrichmentTimeout = 30 * time.Second

const announcementPrompt = `Write a long announcement that a Twitch streamer is beginning a stream.
It should be in third-person.
This is for the streamer's Discord fan server, so there is no need to introduce them or give a ton of details.
For example, no need to share their whole PC specs. Maybe reference current events, weather, etc.
Use many of the following emojis and stock ones, at least one per sentence: %s

All info:

%s`

// announcementContext is the structured data handed to the text generator.
type announcementContext struct {
	CurrentDatetime     string   `json:"current_datetime"`
	UserDisplayName     string   `json:"user_display_name"`
	UserCreatedAt       string   `json:"user_created_at"`
	UserBroadcasterType string   `json:"user_broadcaster_type"`
	UserDescription     string   `json:"user_description"`
	ChannelTitle        string   `json:"channel_message_of_the_day,omitempty"`
	ChannelGame         string   `json:"channel_game,omitempty"`
	ChannelTags         []string `json:"channel_tags,omitempty"`
}

type EnricherConfig struct {
	Location *time.Location
	Emojis   string
}

// Enricher asks a text generator for a long-form "went live" announcement built from the
// broadcaster's profile and current channel settings, looked up through a session opened per
// announcement.
type Enricher struct {
	openReader ReaderOpener
	generator  domain.TextGenerator
	cfg        EnricherConfig
	clock      clockwork.Clock
	metrics    *metrics.NotifierMetrics
}

func NewEnricher(openReader ReaderOpener, generator domain.TextGenerator, cfg EnricherConfig, clock clockwork.Clock, m *metrics.NotifierMetrics) *Enricher {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Enricher{openReader: openReader, generator: generator, cfg: cfg, clock: clock, metrics: m}
}

// Announcement returns the generated text followed by the stream link, or the fallback
// template when anything along the way fails.
func (e *Enricher) Announcement(ctx context.Context, event domain.StreamOnlineEvent) string {
	ctx, cancel := context.WithTimeout(ctx, enrichmentTimeout)
	defer cancel()

	login := event.BroadcasterLogin
	if login == "" {
		login = event.BroadcasterName
	}
	link := domain.StreamURLBase + login

	text, name, err := e.generate(ctx, event, login)
	if err != nil {
		result := "fallback"
		if errors.Is(err, domain.ErrRateLimited) {
			result = "rate_limited"
		}
		e.metrics.Enrichment.WithLabelValues(result).Inc()

		enrichErr := apperrors.EnrichmentError("announcement generation failed, using template", err).
			WithContext("broadcaster_login", login)
		slog.WarnContext(ctx, "Enrichment failed", enrichErr.LogAttrs()...)

		return FallbackStreamAnnouncement(name, login)
	}

	e.metrics.Enrichment.WithLabelValues("generated").Inc()
	return text + "\n" + link
}

// generate returns the generated text and the best display name known so far, which the
// caller needs for the fallback even when generation fails.
func (e *Enricher) generate(ctx context.Context, event domain.StreamOnlineEvent, login string) (string, string, error) {
	name := event.BroadcasterName

	var (
		user    *domain.User
		channel *domain.ChannelInfo
	)
	err := withReader(ctx, e.openReader, func(r domain.PlatformReader) error {
		var err error
		if user, err = r.ResolveUser(ctx, login); err != nil {
			return fmt.Errorf("resolve user: %w", err)
		}
		channel = e.channelInfo(ctx, r, user.ID)
		return nil
	})
	if err != nil {
		return "", name, err
	}
	if user.DisplayName != "" {
		name = user.DisplayName
	}

	prompt, err := e.prompt(user, channel)
	if err != nil {
		return "", name, err
	}

	slog.DebugContext(ctx, "Generating announcement", "prompt", prompt)

	text, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		return "", name, err
	}
	return text, name, nil
}

// channelInfo is optional context; a failed lookup returns nil and the prompt goes without it.
func (e *Enricher) channelInfo(ctx context.Context, r domain.StreamPlatform, broadcasterID string) *domain.ChannelInfo {
	channel, err := r.GetChannelInfo(ctx, broadcasterID)
	if err != nil {
		slog.WarnContext(ctx, "Channel info lookup failed", "broadcaster_id", broadcasterID, "error", err)
		return nil
	}
	return channel
}

func (e *Enricher) prompt(user *domain.User, channel *domain.ChannelInfo) (string, error) {
	data := announcementContext{
		CurrentDatetime:     e.clock.Now().In(e.cfg.Location).Format(time.RFC3339),
		UserDisplayName:     user.DisplayName,
		UserCreatedAt:       user.CreatedAt.In(e.cfg.Location).Format(time.RFC3339),
		UserBroadcasterType: user.BroadcasterType,
		UserDescription:     user.Description,
	}
	if channel != nil {
		data.ChannelTitle = channel.Title
		data.ChannelGame = channel.GameName
		data.ChannelTags = channel.Tags
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal announcement context: %w", err)
	}
	return fmt.Sprintf(announcementPrompt, e.cfg.Emojis, raw), nil
}

// FallbackStreamAnnouncement is used when the generator is unavailable.
func FallbackStreamAnnouncement(name, login string) string {
	return fmt.Sprintf("%s is now live!\n%s%s", name, domain.StreamURLBase, login)
}
