// Command announce posts one stream announcement for the configured broadcaster and exits.
// It uses the same configuration as the relay and is meant for manual or scheduled runs.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pscheid92/streamrelay/internal/adapter/discord"
	"github.com/pscheid92/streamrelay/internal/adapter/metrics"
	"github.com/pscheid92/streamrelay/internal/adapter/openai"
	"github.com/pscheid92/streamrelay/internal/adapter/twitch"
	"github.com/pscheid92/streamrelay/internal/app"
	"github.com/pscheid92/streamrelay/internal/domain"
	"github.com/pscheid92/streamrelay/internal/platform/config"
	"github.com/pscheid92/streamrelay/internal/platform/correlation"
	"github.com/pscheid92/streamrelay/internal/platform/logging"
	"github.com/pscheid92/streamrelay/internal/platform/version"
)

const announceTimeout = 2 * time.Minute

func run() error {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Posting one stream announcement", "version", version.Get().String(),
		"login", cfg.TwitchUsername, "enrichment_enabled", cfg.EnrichmentEnabled())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, announceTimeout)
	defer cancel()
	ctx = correlation.Start(ctx, "announce")

	openReader := func(ctx context.Context) (domain.PlatformReader, error) {
		client, err := twitch.NewClient(ctx, cfg.TwitchClientID, cfg.TwitchClientSecret, "", "")
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	// Nothing scrapes a one-shot run; the registry only satisfies the collectors.
	notifierMetrics := metrics.NewNotifierMetrics(prometheus.NewRegistry())

	var announcer app.Announcer
	if cfg.EnrichmentEnabled() {
		generator := openai.NewGenerator(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		announcer = app.NewEnricher(openReader, generator, app.EnricherConfig{
			Location: cfg.Location(),
			Emojis:   cfg.EmojiString,
		}, clockwork.NewRealClock(), notifierMetrics)
	}

	notifier := app.NewNotifier(discord.NewSender(nil, cfg.DiscordRateLimit), app.NotifierConfig{
		StreamsWebhookURL: cfg.DiscordStreamsWebhookURL,
	}, announcer, notifierMetrics)

	return app.AnnounceNow(ctx, openReader, notifier, cfg.TwitchUsername)
}

func main() {
	if err := run(); err != nil {
		slog.Error("Stream announcement failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Stream announcement posted")
}
