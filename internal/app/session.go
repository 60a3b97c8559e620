package app

import (
	"context"
	"log/slog"

	"github.com/pscheid92/streamrelay/internal/domain"
	apperrors "github.com/pscheid92/streamrelay/internal/platform/errors"
)

// SessionOpener creates a platform session for one listener run.
type SessionOpener func(ctx context.Context) (domain.PlatformSession, error)

// ReaderOpener creates a read-only platform session for one poll cycle or one enrichment.
// Every call authenticates afresh, so an expired or revoked token only costs one unit of work.
type ReaderOpener func(ctx context.Context) (domain.PlatformReader, error)

// withReader runs fn against a freshly opened reader and closes it afterwards.
func withReader(ctx context.Context, open ReaderOpener, fn func(domain.PlatformReader) error) error {
	reader, err := open(ctx)
	if err != nil {
		return apperrors.UpstreamError("failed to open platform session", err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			slog.WarnContext(ctx, "Failed to close platform session", "error", err)
		}
	}()
	return fn(reader)
}
