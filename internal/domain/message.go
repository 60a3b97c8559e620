package domain

import (
	"context"
	"time"
)

// Message is an outbound chat message: plain content, rich embeds, or both.
type Message struct {
	Content string
	Embeds  []Embed
}

// Embed is a rich-formatted message block.
type Embed struct {
	Title       string
	URL         string
	Description string
	ImageURL    string
	Timestamp   time.Time
}

// MessageSender delivers a message to a destination (a Discord webhook URL).
type MessageSender interface {
	Send(ctx context.Context, destination string, msg Message) error
}

// TextGenerator produces free-form text for a prompt.
// Implementations return an error wrapping ErrRateLimited when throttled.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
