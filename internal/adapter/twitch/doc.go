// Package twitch integrates with Twitch: the Helix API client (users, channels, clips, EventSub
// subscriptions) and the EventSub webhook endpoint with its HMAC signature verification.
package twitch
