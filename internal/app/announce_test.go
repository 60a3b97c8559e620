package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/streamrelay/internal/domain"
	apperrors "github.com/pscheid92/streamrelay/internal/platform/errors"
)

func TestAnnounceNow_PostsOnceWithResolvedBroadcaster(t *testing.T) {
	platform := newFakePlatform()
	opener := &fakeOpener{platform: platform}
	sender := &fakeSender{}

	err := AnnounceNow(context.Background(), opener.openReader, newTestNotifier(sender, nil), "alice")
	require.NoError(t, err)

	sent := sender.getSent()
	require.Len(t, sent, 1)
	assert.Equal(t, testStreamsURL, sent[0].Destination)
	assert.Contains(t, sent[0].Message.Content, "Alice is live!")
	assert.Equal(t, []string{"resolve:alice", "close"}, platform.getCalls())
	assert.Equal(t, 1, opener.count())
}

func TestAnnounceNow_UsesEnricher(t *testing.T) {
	platform := newFakePlatform()
	sender := &fakeSender{}
	gen := &fakeGenerator{text: "Alice is speedrunning Celeste, come watch!"}
	enricher := newTestEnricher(t, readerOf(platform), gen)

	err := AnnounceNow(context.Background(), readerOf(platform), newTestNotifier(sender, enricher), "alice")
	require.NoError(t, err)

	sent := sender.getSent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Message.Content, "Alice is speedrunning Celeste")
}

func TestAnnounceNow_UnknownBroadcasterSendsNothing(t *testing.T) {
	platform := newFakePlatform()
	platform.resolveErr = domain.ErrUserNotFound
	sender := &fakeSender{}

	err := AnnounceNow(context.Background(), readerOf(platform), newTestNotifier(sender, nil), "nobody")
	require.ErrorIs(t, err, domain.ErrUserNotFound)
	assert.Equal(t, apperrors.TypeUpstream, apperrors.AsStructuredError(err).Type)
	assert.Empty(t, sender.getSent())
	assert.Contains(t, platform.getCalls(), "close")
}

func TestAnnounceNow_SessionOpenFailure(t *testing.T) {
	opener := &fakeOpener{platform: newFakePlatform(), failOpens: 1}
	sender := &fakeSender{}

	err := AnnounceNow(context.Background(), opener.openReader, newTestNotifier(sender, nil), "alice")
	require.ErrorIs(t, err, errBoom)
	assert.Empty(t, sender.getSent())
}

func TestAnnounceNow_StreamsDisabled(t *testing.T) {
	opener := &fakeOpener{platform: newFakePlatform()}
	n := NewNotifier(&fakeSender{}, NotifierConfig{ClipsWebhookURL: testClipsURL}, nil, newNotifierMetrics())

	err := AnnounceNow(context.Background(), opener.openReader, n, "alice")
	require.ErrorIs(t, err, domain.ErrNoDestination)
	assert.Zero(t, opener.count())
}
