package twitch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Its-donkey/kappopher/helix"
	"github.com/pscheid92/streamrelay/internal/domain"
	"github.com/pscheid92/streamrelay/internal/platform/retry"
)

const (
	eventSubMaxAttempts      = 3
	eventSubInitialBackoff   = 1 * time.Second
	eventSubRateLimitBackoff = 30 * time.Second

	conditionBroadcaster = "broadcaster_user_id"
)

// ListSubscriptions walks every page of the application's EventSub subscriptions.
func (c *Client) ListSubscriptions(ctx context.Context) ([]domain.Subscription, error) {
	if c.closed.Load() {
		return nil, domain.ErrClientClosed
	}

	params := &helix.GetEventSubSubscriptionsParams{}
	var out []domain.Subscription
	for {
		page, err := c.api.GetEventSubSubscriptions(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("failed to list subscriptions: %w", err)
		}
		for _, s := range page.Data {
			out = append(out, domain.Subscription{
				ID:            s.ID,
				Type:          s.Type,
				Status:        s.Status,
				BroadcasterID: s.Condition[conditionBroadcaster],
			})
		}

		if page.Pagination == nil || page.Pagination.Cursor == "" {
			return out, nil
		}
		params.PaginationParams = &helix.PaginationParams{After: page.Pagination.Cursor}
	}
}

// UnsubscribeAll deletes every subscription owned by the application so stale webhook
// subscriptions from a previous run do not produce duplicate notifications.
// It keeps going past individual failures and reports them together.
func (c *Client) UnsubscribeAll(ctx context.Context) error {
	subs, err := c.ListSubscriptions(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, s := range subs {
		if err := c.Unsubscribe(ctx, s.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		slog.InfoContext(ctx, "Removed stale EventSub subscription", "subscription_id", s.ID, "type", s.Type, "status", s.Status)
	}
	return errors.Join(errs...)
}

// Subscribe creates a webhook subscription pointing at the client's callback URL.
// A conflict means the subscription already exists; the existing one is returned instead.
func (c *Client) Subscribe(ctx context.Context, subscriptionType, broadcasterID string) (*domain.Subscription, error) {
	if c.closed.Load() {
		return nil, domain.ErrClientClosed
	}

	p := eventSubPolicy(ctx, "subscribe", "type", subscriptionType, "broadcaster_id", broadcasterID)
	sub, err := retry.Do(ctx, p, classifyEventSubError, func() (*domain.Subscription, error) {
		return c.createSubscription(ctx, subscriptionType, broadcasterID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s for %s: %w", subscriptionType, broadcasterID, err)
	}

	slog.InfoContext(ctx, "Subscribed to EventSub", "type", sub.Type, "broadcaster_id", broadcasterID, "subscription_id", sub.ID, "status", sub.Status)
	return sub, nil
}

func (c *Client) createSubscription(ctx context.Context, subscriptionType, broadcasterID string) (*domain.Subscription, error) {
	created, err := c.api.CreateEventSubSubscription(ctx, &helix.CreateEventSubSubscriptionParams{
		Type:      subscriptionType,
		Version:   "1",
		Condition: map[string]string{conditionBroadcaster: broadcasterID},
		Transport: helix.CreateEventSubTransport{
			Method:   "webhook",
			Callback: c.callbackURL,
			Secret:   c.secret,
		},
	})
	switch {
	case isConflict(err):
		slog.InfoContext(ctx, "EventSub subscription already exists", "type", subscriptionType, "broadcaster_id", broadcasterID)
		return c.existingSubscription(ctx, subscriptionType, broadcasterID)
	case err != nil:
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	case created == nil:
		return nil, errors.New("create subscription returned no data")
	}

	return &domain.Subscription{
		ID:            created.ID,
		Type:          subscriptionType,
		Status:        created.Status,
		BroadcasterID: broadcasterID,
	}, nil
}

func (c *Client) existingSubscription(ctx context.Context, subscriptionType, broadcasterID string) (*domain.Subscription, error) {
	subs, err := c.ListSubscriptions(ctx)
	if err != nil {
		return nil, err
	}

	for i := range subs {
		if subs[i].Type == subscriptionType && subs[i].BroadcasterID == broadcasterID {
			return &subs[i], nil
		}
	}
	return nil, fmt.Errorf("conflicting %s subscription for %s is not listed", subscriptionType, broadcasterID)
}

func (c *Client) Unsubscribe(ctx context.Context, subscriptionID string) error {
	if c.closed.Load() {
		return domain.ErrClientClosed
	}

	p := eventSubPolicy(ctx, "unsubscribe", "subscription_id", subscriptionID)
	if err := retry.DoVoid(ctx, p, classifyEventSubError, func() error {
		return c.api.DeleteEventSubSubscription(ctx, subscriptionID)
	}); err != nil {
		return fmt.Errorf("failed to delete subscription %s: %w", subscriptionID, err)
	}
	return nil
}

func isConflict(err error) bool {
	apiErr, ok := errors.AsType[*helix.APIError](err)
	return ok && apiErr.StatusCode == http.StatusConflict
}

// classifyEventSubError retries network failures and 5xx, waits out 429 and gives up on any other status.
// Helix retries 429 itself and reports exhaustion as a RateLimitError rather than an APIError.
func classifyEventSubError(err error) retry.Action {
	if errors.Is(err, domain.ErrClientClosed) || errors.Is(err, context.Canceled) {
		return retry.Stop
	}
	if _, ok := errors.AsType[*helix.RateLimitError](err); ok {
		return retry.After
	}

	apiErr, ok := errors.AsType[*helix.APIError](err)
	switch {
	case !ok:
		return retry.Retry
	case apiErr.StatusCode == http.StatusTooManyRequests:
		return retry.After
	case apiErr.StatusCode >= http.StatusInternalServerError:
		return retry.Retry
	default:
		return retry.Stop
	}
}

// eventSubPolicy returns the shared subscription-management policy, logging each retry with attrs.
func eventSubPolicy(ctx context.Context, op string, attrs ...any) retry.Policy {
	return retry.Policy{
		MaxAttempts:      eventSubMaxAttempts,
		InitialBackoff:   eventSubInitialBackoff,
		RateLimitBackoff: eventSubRateLimitBackoff,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			args := append([]any{"op", op, "attempt", attempt, "backoff", backoff, "error", err}, attrs...)
			slog.WarnContext(ctx, "EventSub call failed, retrying", args...)
		},
	}
}
