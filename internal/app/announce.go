package app

import (
	"context"
	"log/slog"

	"github.com/pscheid92/streamrelay/internal/domain"
	apperrors "github.com/pscheid92/streamrelay/internal/platform/errors"
)

// AnnounceNow posts a single "went live" announcement for login without waiting for a
// stream.online notification. It resolves the broadcaster so the message carries the same
// fields a webhook event would.
func AnnounceNow(ctx context.Context, open ReaderOpener, announcer StreamAnnouncer, login string) error {
	if !announcer.StreamsEnabled() {
		return apperrors.DeliveryError("no streams destination configured", domain.ErrNoDestination)
	}

	var event domain.StreamOnlineEvent
	err := withReader(ctx, open, func(r domain.PlatformReader) error {
		user, err := r.ResolveUser(ctx, login)
		if err != nil {
			return apperrors.UpstreamError("failed to resolve broadcaster", err).WithContext("login", login)
		}
		event = domain.StreamOnlineEvent{
			BroadcasterID:    user.ID,
			BroadcasterLogin: user.Login,
			BroadcasterName:  user.DisplayName,
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Posting stream announcement", "broadcaster_id", event.BroadcasterID, "login", event.BroadcasterLogin)
	return announcer.AnnounceStream(ctx, event)
}
