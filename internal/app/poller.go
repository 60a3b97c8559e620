package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/streamrelay/internal/adapter/metrics"
	"github.com/pscheid92/streamrelay/internal/domain"
	"github.com/pscheid92/streamrelay/internal/platform/correlation"
	apperrors "github.com/pscheid92/streamrelay/internal/platform/errors"
)

const (
	DefaultPollInterval = 10 * time.Second
	DefaultClipLookback = time.Hour

	cacheSaveTimeout = 10 * time.Second
)

// ClipAnnouncer is the part of the Notifier the poller needs.
type ClipAnnouncer interface {
	ClipsEnabled() bool
	AnnounceClip(ctx context.Context, clip domain.Clip) error
}

type PollerConfig struct {
	Login    string
	Interval time.Duration
	Lookback time.Duration
}

// ClipPoller periodically fetches recent clips and announces the ones not yet in the cache.
// Each cycle talks to the platform through its own session. Only one poller may run per cache.
type ClipPoller struct {
	openReader ReaderOpener
	cache      domain.ClipCache
	announcer  ClipAnnouncer
	cfg        PollerConfig
	clock      clockwork.Clock
	metrics    *metrics.PollerMetrics

	broadcasterID string
}

func NewClipPoller(openReader ReaderOpener, cache domain.ClipCache, announcer ClipAnnouncer, cfg PollerConfig, clock clockwork.Clock, m *metrics.PollerMetrics) *ClipPoller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultClipLookback
	}
	return &ClipPoller{
		openReader: openReader,
		cache:      cache,
		announcer:  announcer,
		cfg:        cfg,
		clock:      clock,
		metrics:    m,
	}
}

// Run polls until ctx is cancelled. A failed cycle is logged and the loop goes on.
// Returns immediately when no clips destination is configured.
func (p *ClipPoller) Run(ctx context.Context) error {
	if !p.announcer.ClipsEnabled() {
		slog.Info("Clip poller disabled, no clips destination configured")
		return nil
	}

	slog.Info("Clip poller started", "login", p.cfg.Login, "interval", p.cfg.Interval, "lookback", p.cfg.Lookback)
	for ctx.Err() == nil {
		cycleCtx := correlation.Start(ctx, "poll_cycle")
		if err := p.Poll(cycleCtx); err != nil {
			se := apperrors.AsStructuredError(err)
			slog.Log(cycleCtx, cycleFailureLevel(se), "Clip poll cycle failed", se.LogAttrs()...)
		}

		select {
		case <-ctx.Done():
		case <-p.clock.After(p.cfg.Interval):
		}
	}

	slog.Info("Clip poller stopped")
	return nil
}

// Poll runs one cycle: fetch, load cache, dedup in fetch order, save, announce.
// The cache is saved before any announcement, so a crash can lose a notification but never
// repeat one. Once the fetch has succeeded, the save completes even if ctx is cancelled.
// A failed announcement does not stop the remaining ones.
func (p *ClipPoller) Poll(ctx context.Context) error {
	start := p.clock.Now()
	defer func() { p.metrics.CycleDuration.Observe(p.clock.Since(start).Seconds()) }()

	newClips, err := p.collect(ctx)
	if err != nil {
		p.metrics.Cycles.WithLabelValues("failed").Inc()
		return err
	}

	failed := 0
	for _, clip := range newClips {
		if err := p.announcer.AnnounceClip(ctx, clip); err != nil {
			failed++
		}
	}

	result := "ok"
	if failed > 0 {
		result = "partial"
	}
	p.metrics.Cycles.WithLabelValues(result).Inc()

	slog.DebugContext(ctx, "Clip poll cycle done", "new", len(newClips), "failed", failed)
	return nil
}

// cycleFailureLevel keeps failures that heal on the next cycle at warn; anything else is an error.
func cycleFailureLevel(err *apperrors.Error) slog.Level {
	if err.Transient() {
		return slog.LevelWarn
	}
	return slog.LevelError
}

// fetch lists the recent clips through a session scoped to this cycle.
func (p *ClipPoller) fetch(ctx context.Context) ([]domain.Clip, error) {
	var clips []domain.Clip
	err := withReader(ctx, p.openReader, func(r domain.PlatformReader) error {
		broadcasterID, err := p.resolveBroadcaster(ctx, r)
		if err != nil {
			return err
		}

		since := p.clock.Now().Add(-p.cfg.Lookback)
		clips, err = r.ListRecentClips(ctx, broadcasterID, since)
		if err != nil {
			return apperrors.UpstreamError("failed to list clips", err).WithContext("broadcaster_id", broadcasterID)
		}
		return nil
	})
	return clips, err
}

// collect performs the read-dedup-write part of a cycle and returns the clips to announce.
func (p *ClipPoller) collect(ctx context.Context) ([]domain.Clip, error) {
	clips, err := p.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if len(clips) == 0 {
		return nil, nil
	}

	ids, err := p.cache.Load(ctx)
	if err != nil {
		return nil, apperrors.InternalError("failed to load clip cache", err)
	}

	seen := make(map[string]struct{}, len(ids)+len(clips))
	for _, id := range ids {
		seen[id] = struct{}{}
	}

	var newClips []domain.Clip
	for _, clip := range clips {
		if _, ok := seen[clip.ID]; ok {
			p.metrics.ClipsSeen.WithLabelValues("seen").Inc()
			slog.DebugContext(ctx, "Clip already seen", "clip_id", clip.ID)
			continue
		}
		seen[clip.ID] = struct{}{}
		ids = append(ids, clip.ID)
		newClips = append(newClips, clip)
		p.metrics.ClipsSeen.WithLabelValues("new").Inc()
		slog.InfoContext(ctx, "New clip", "clip_id", clip.ID, "title", clip.Title)
	}

	if len(newClips) == 0 {
		return nil, nil
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheSaveTimeout)
	defer cancel()
	if err := p.cache.Save(saveCtx, ids); err != nil {
		return nil, apperrors.InternalError("failed to save clip cache", err)
	}
	p.metrics.CacheSize.Set(float64(len(ids)))

	return newClips, nil
}

// resolveBroadcaster resolves the login once and caches the id; a failure is retried next cycle.
func (p *ClipPoller) resolveBroadcaster(ctx context.Context, r domain.StreamPlatform) (string, error) {
	if p.broadcasterID != "" {
		return p.broadcasterID, nil
	}

	user, err := r.ResolveUser(ctx, p.cfg.Login)
	if err != nil {
		return "", apperrors.UpstreamError(fmt.Sprintf("failed to resolve %q", p.cfg.Login), err)
	}
	p.broadcasterID = user.ID
	return user.ID, nil
}
