// Package domain defines the core types and the collaborator interfaces of the relay.
//
// Twitch (user lookup, channel info, clips, EventSub subscriptions), Discord (message delivery) and the
// text generator are all consumed through interfaces declared here; adapters implement them.
package domain
