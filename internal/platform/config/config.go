package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	TwitchClientID     string `env:"TWITCH_CLIENT_ID"`
	TwitchClientSecret string `env:"TWITCH_CLIENT_SECRET"`
	TwitchUsername     string `env:"TWITCH_USERNAME"`
	// TwitchInboundURL is the public base URL of this service; the webhook route is appended to it.
	TwitchInboundURL string `env:"TWITCH_INBOUND_URL"`
	WebhookSecret    string `env:"TWITCH_EVENTSUB_SECRET"`

	DiscordStreamsWebhookURL string  `env:"DISCORD_STREAMS_WEBHOOK_URL"`
	DiscordClipsWebhookURL   string  `env:"DISCORD_CLIPS_WEBHOOK_URL"`
	DiscordRateLimit         float64 `env:"DISCORD_RATE_LIMIT" default:"1"`

	OpenAIAPIKey string `env:"OPENAI_API_KEY"`
	OpenAIModel  string `env:"OPENAI_MODEL" default:"gpt-4.1-nano"`
	Timezone     string `env:"TIMEZONE" default:"UTC"`
	EmojiString  string `env:"EMOJI_STRING"`

	ClipCachePath    string        `env:"CLIP_CACHE_PATH" default:"posted_clips.txt"`
	ClipPollInterval time.Duration `env:"CLIP_POLL_INTERVAL" default:"10s"`
	ClipLookback     time.Duration `env:"CLIP_LOOKBACK" default:"1h"`
	RedisURL         string        `env:"REDIS_URL"`
}

// StreamsEnabled reports whether the stream announcement path is configured.
func (c *Config) StreamsEnabled() bool { return c.DiscordStreamsWebhookURL != "" }

// ClipsEnabled reports whether the clip announcement path is configured.
func (c *Config) ClipsEnabled() bool { return c.DiscordClipsWebhookURL != "" }

// EnrichmentEnabled reports whether stream announcements are composed by the text generator.
func (c *Config) EnrichmentEnabled() bool { return c.OpenAIAPIKey != "" }

// Location returns the configured timezone. Validated by Load.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	required := []struct{ name, value string }{
		{"TWITCH_CLIENT_ID", cfg.TwitchClientID},
		{"TWITCH_CLIENT_SECRET", cfg.TwitchClientSecret},
		{"TWITCH_USERNAME", cfg.TwitchUsername},
	}
	if cfg.StreamsEnabled() {
		required = append(required,
			struct{ name, value string }{"TWITCH_INBOUND_URL", cfg.TwitchInboundURL},
			struct{ name, value string }{"TWITCH_EVENTSUB_SECRET", cfg.WebhookSecret},
		)
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s is required", r.name)
		}
	}

	if cfg.StreamsEnabled() {
		if len(cfg.WebhookSecret) < 10 || len(cfg.WebhookSecret) > 100 {
			return errors.New("TWITCH_EVENTSUB_SECRET must be between 10 and 100 characters")
		}
		if u, err := url.Parse(cfg.TwitchInboundURL); err != nil || u.Scheme != "https" {
			return errors.New("TWITCH_INBOUND_URL must be an https URL")
		}
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE is not a valid IANA timezone: %w", err)
	}

	if cfg.ClipPollInterval <= 0 {
		return errors.New("CLIP_POLL_INTERVAL must be positive")
	}
	if cfg.ClipLookback <= 0 {
		return errors.New("CLIP_LOOKBACK must be positive")
	}
	if cfg.DiscordRateLimit <= 0 {
		return errors.New("DISCORD_RATE_LIMIT must be positive")
	}

	return nil
}
