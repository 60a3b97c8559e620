package domain

import (
	"context"
	"time"
)

// EventSub subscription type for "stream went online" notifications.
const SubscriptionTypeStreamOnline = "stream.online"

// StreamURLBase is the public channel URL prefix; the login or display name is appended.
const StreamURLBase = "https://twitch.tv/"

// StreamOnlineEvent is produced when a tracked broadcaster starts streaming.
type StreamOnlineEvent struct {
	BroadcasterID    string
	BroadcasterLogin string
	BroadcasterName  string
}

// User is the subset of a Twitch user profile the relay needs.
type User struct {
	ID              string
	Login           string
	DisplayName     string
	BroadcasterType string
	Description     string
	CreatedAt       time.Time
}

// ChannelInfo describes what a broadcaster's channel is currently set up to stream.
type ChannelInfo struct {
	Title    string
	GameName string
	Tags     []string
}

// Subscription is an EventSub subscription owned by this application.
type Subscription struct {
	ID            string
	Type          string
	Status        string
	BroadcasterID string
}

// StreamPlatform is the read side of the streaming platform API.
type StreamPlatform interface {
	ResolveUser(ctx context.Context, login string) (*User, error)
	GetChannelInfo(ctx context.Context, broadcasterID string) (*ChannelInfo, error)
	ListRecentClips(ctx context.Context, broadcasterID string, since time.Time) ([]Clip, error)
}

// SubscriptionManager manages EventSub webhook subscriptions.
type SubscriptionManager interface {
	ListSubscriptions(ctx context.Context) ([]Subscription, error)
	UnsubscribeAll(ctx context.Context) error
	Subscribe(ctx context.Context, subscriptionType, broadcasterID string) (*Subscription, error)
	Unsubscribe(ctx context.Context, subscriptionID string) error
}

// PlatformReader is a read-only session holding fresh credentials for one unit of work
// (a poll cycle, an enrichment). Close it when the work is done.
type PlatformReader interface {
	StreamPlatform
	Close() error
}

// PlatformSession is a streaming platform client holding credentials for the lifetime of one listener run.
type PlatformSession interface {
	PlatformReader
	SubscriptionManager
}

// StreamOnlineHandler receives verified "stream went online" events from the webhook dispatcher.
type StreamOnlineHandler interface {
	HandleStreamOnline(ctx context.Context, event StreamOnlineEvent)
}
