package twitch

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Its-donkey/kappopher/helix"
	"github.com/pscheid92/streamrelay/internal/domain"
)

const (
	appTokenTimeout = 15 * time.Second
	clipsPageSize   = 100
)

// Client is the app-token Helix client used by one listener or poller run.
// It implements domain.PlatformSession; after Close every call fails with domain.ErrClientClosed.
type Client struct {
	api *helix.Client

	callbackURL string
	secret      string

	closed atomic.Bool
}

var _ domain.PlatformSession = (*Client)(nil)

type options struct {
	tokenURL   string
	apiBaseURL string
	helixOpts  []helix.Option
}

// Option configures a Client.
type Option func(*options)

// WithEndpoints replaces the OAuth token endpoint and the Helix base URL. Empty values keep the defaults.
func WithEndpoints(tokenURL, apiBaseURL string) Option {
	return func(o *options) {
		o.tokenURL = tokenURL
		o.apiBaseURL = apiBaseURL
	}
}

// WithHelixOptions passes extra options through to the Helix client.
func WithHelixOptions(opts ...helix.Option) Option {
	return func(o *options) {
		o.helixOpts = append(o.helixOpts, opts...)
	}
}

// NewClient authenticates with client credentials. callbackURL and secret are only needed for
// EventSub subscription management and may be empty for a read-only client.
//
// The app token is fetched once and never refreshed, so a Client is meant to live for one unit
// of work (a poll cycle, an announcement, a listener session) and then be closed.
func NewClient(ctx context.Context, clientID, clientSecret, callbackURL, secret string, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithTimeout(ctx, appTokenTimeout)
	defer cancel()

	auth := helix.NewAuthClient(helix.AuthConfig{ClientID: clientID, ClientSecret: clientSecret})
	auth.SetEndpoints(o.tokenURL, "", "", "", "", "", "")
	if _, err := auth.GetAppAccessToken(ctx); err != nil {
		return nil, fmt.Errorf("failed to get app access token: %w", err)
	}

	helixOpts := o.helixOpts
	if o.apiBaseURL != "" {
		helixOpts = append([]helix.Option{helix.WithBaseURL(o.apiBaseURL)}, helixOpts...)
	}

	return &Client{
		api:         helix.NewClient(clientID, auth, helixOpts...),
		callbackURL: callbackURL,
		secret:      secret,
	}, nil
}

func (c *Client) ResolveUser(ctx context.Context, login string) (*domain.User, error) {
	if c.closed.Load() {
		return nil, domain.ErrClientClosed
	}

	resp, err := c.api.GetUsers(ctx, &helix.GetUsersParams{Logins: []string{login}})
	if err != nil {
		return nil, fmt.Errorf("failed to get user %q: %w", login, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrUserNotFound, login)
	}

	u := resp.Data[0]
	return &domain.User{
		ID:              u.ID,
		Login:           u.Login,
		DisplayName:     u.DisplayName,
		BroadcasterType: u.BroadcasterType,
		Description:     u.Description,
		CreatedAt:       u.CreatedAt,
	}, nil
}

func (c *Client) GetChannelInfo(ctx context.Context, broadcasterID string) (*domain.ChannelInfo, error) {
	if c.closed.Load() {
		return nil, domain.ErrClientClosed
	}

	resp, err := c.api.GetChannelInformation(ctx, &helix.GetChannelInformationParams{BroadcasterIDs: []string{broadcasterID}})
	if err != nil {
		return nil, fmt.Errorf("failed to get channel information: %w", err)
	}
	if len(resp.Data) == 0 {
		return &domain.ChannelInfo{}, nil
	}

	ch := resp.Data[0]
	return &domain.ChannelInfo{Title: ch.Title, GameName: ch.GameName, Tags: ch.Tags}, nil
}

// ListRecentClips returns clips created since the given time, following pagination.
// Helix does not apply started_at reliably, so callers must still deduplicate.
func (c *Client) ListRecentClips(ctx context.Context, broadcasterID string, since time.Time) ([]domain.Clip, error) {
	if c.closed.Load() {
		return nil, domain.ErrClientClosed
	}

	params := helix.GetClipsParams{
		BroadcasterID:    broadcasterID,
		StartedAt:        since,
		PaginationParams: &helix.PaginationParams{First: clipsPageSize},
	}

	var clips []domain.Clip
	for {
		resp, err := c.api.GetClips(ctx, &params)
		if err != nil {
			return nil, fmt.Errorf("failed to get clips: %w", err)
		}

		for _, clip := range resp.Data {
			clips = append(clips, domain.Clip{
				ID:           clip.ID,
				Title:        clip.Title,
				URL:          clip.URL,
				ThumbnailURL: clip.ThumbnailURL,
				CreatorName:  clip.CreatorName,
				CreatedAt:    clip.CreatedAt,
			})
		}

		if resp.Pagination == nil || resp.Pagination.Cursor == "" {
			break
		}
		params.PaginationParams.After = resp.Pagination.Cursor
	}

	return clips, nil
}

// Close releases the session. It is safe to call more than once.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	slog.Debug("Twitch client closed")
	return nil
}
