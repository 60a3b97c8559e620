package domain

import (
	"context"
	"time"
)

// Clip is a clip created on the tracked channel. Identity is ID alone.
type Clip struct {
	ID           string
	Title        string
	URL          string
	ThumbnailURL string
	CreatorName  string
	CreatedAt    time.Time
}

// ClipCache persists the ids of clips that were already announced.
// Load returns ids in the order they were recorded; Save replaces the stored list.
type ClipCache interface {
	Load(ctx context.Context) ([]string, error)
	Save(ctx context.Context, ids []string) error
}
