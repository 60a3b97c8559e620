package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/streamrelay/internal/adapter/clipstore"
	"github.com/pscheid92/streamrelay/internal/adapter/discord"
	"github.com/pscheid92/streamrelay/internal/adapter/httpserver"
	"github.com/pscheid92/streamrelay/internal/adapter/metrics"
	"github.com/pscheid92/streamrelay/internal/adapter/openai"
	"github.com/pscheid92/streamrelay/internal/adapter/redis"
	"github.com/pscheid92/streamrelay/internal/adapter/twitch"
	"github.com/pscheid92/streamrelay/internal/app"
	"github.com/pscheid92/streamrelay/internal/domain"
	"github.com/pscheid92/streamrelay/internal/platform/config"
	"github.com/pscheid92/streamrelay/internal/platform/logging"
	"github.com/pscheid92/streamrelay/internal/platform/version"
)

const startupTimeout = 30 * time.Second

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// setupClipCache selects the redis cache when REDIS_URL is set and the flat file otherwise.
func setupClipCache(ctx context.Context, cfg *config.Config) (domain.ClipCache, func()) {
	if cfg.RedisURL == "" {
		slog.Info("Using file clip cache", "path", cfg.ClipCachePath)
		return clipstore.NewFileCache(cfg.ClipCachePath), func() {}
	}

	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("Using redis clip cache", "key", redis.DefaultClipCacheKey)
	return redis.NewClipCache(client, ""), func() { _ = client.Close() }
}

// readerOpener hands out a read-only Twitch client with a fresh app token per unit of work.
func readerOpener(cfg *config.Config) app.ReaderOpener {
	return func(ctx context.Context) (domain.PlatformReader, error) {
		client, err := twitch.NewClient(ctx, cfg.TwitchClientID, cfg.TwitchClientSecret, "", "")
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// checkPlatformCredentials fails fast on bad Twitch credentials instead of at the first poll.
func checkPlatformCredentials(ctx context.Context, open app.ReaderOpener) {
	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	reader, err := open(ctx)
	if err != nil {
		slog.Error("Failed to create Twitch client", "error", err)
		os.Exit(1)
	}
	_ = reader.Close()
}

func callbackURL(cfg *config.Config) string {
	return strings.TrimSuffix(cfg.TwitchInboundURL, "/") + httpserver.WebhookPath
}

func run() error {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "version", version.Get().String(),
		"streams_enabled", cfg.StreamsEnabled(), "clips_enabled", cfg.ClipsEnabled(), "enrichment_enabled", cfg.EnrichmentEnabled())

	ctx := context.Background()

	reg := metrics.NewRegistry()
	webhookMetrics := metrics.NewWebhookMetrics(reg)
	pollerMetrics := metrics.NewPollerMetrics(reg)
	notifierMetrics := metrics.NewNotifierMetrics(reg)
	httpMetrics := metrics.NewHTTPMetrics(reg)

	cache, closeCache := setupClipCache(ctx, cfg)
	defer closeCache()

	openReader := readerOpener(cfg)
	checkPlatformCredentials(ctx, openReader)

	// Nil interface unless enrichment is enabled.
	var announcer app.Announcer
	if cfg.EnrichmentEnabled() {
		generator := openai.NewGenerator(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		announcer = app.NewEnricher(openReader, generator, app.EnricherConfig{
			Location: cfg.Location(),
			Emojis:   cfg.EmojiString,
		}, clock, notifierMetrics)
	}

	notifier := app.NewNotifier(discord.NewSender(nil, cfg.DiscordRateLimit), app.NotifierConfig{
		StreamsWebhookURL: cfg.DiscordStreamsWebhookURL,
		ClipsWebhookURL:   cfg.DiscordClipsWebhookURL,
	}, announcer, notifierMetrics)

	poller := app.NewClipPoller(openReader, cache, notifier, app.PollerConfig{
		Login:    cfg.TwitchUsername,
		Interval: cfg.ClipPollInterval,
		Lookback: cfg.ClipLookback,
	}, clock, pollerMetrics)

	openSession := func(ctx context.Context) (domain.PlatformSession, error) {
		client, err := twitch.NewClient(ctx, cfg.TwitchClientID, cfg.TwitchClientSecret, callbackURL(cfg), cfg.WebhookSecret)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	newTransport := func(h domain.StreamOnlineHandler) app.WebhookTransport {
		webhook := twitch.NewWebhookHandler(cfg.WebhookSecret, h, webhookMetrics, clock)
		return httpserver.NewServer(cfg.Port, webhook,
			httpserver.WithMetrics(reg, httpMetrics),
			httpserver.WithHealthChecks(httpserver.HealthCheck{
				Name: "clip_cache",
				Check: func(ctx context.Context) error {
					_, err := cache.Load(ctx)
					return err
				},
			}),
			httpserver.WithClock(clock),
		)
	}
	listener := app.NewStreamListener(openSession, newTransport, notifier, app.ListenerConfig{
		Login: cfg.TwitchUsername,
		Clock: clock,
	})

	err := app.NewOrchestrator(listener, poller).Run(ctx)
	slog.Info("Application stopped")
	return err
}

func main() {
	if err := run(); err != nil {
		slog.Error("Application exited with error", "error", err)
		os.Exit(1)
	}
}
