// Package discord delivers messages to Discord channels through incoming webhooks.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pscheid92/streamrelay/internal/domain"
	"github.com/pscheid92/streamrelay/internal/platform/version"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 512
)

type webhookPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []embedPayload `json:"embeds,omitempty"`
}

type embedPayload struct {
	Title       string        `json:"title,omitempty"`
	URL         string        `json:"url,omitempty"`
	Description string        `json:"description,omitempty"`
	Timestamp   string        `json:"timestamp,omitempty"`
	Image       *imagePayload `json:"image,omitempty"`
}

type imagePayload struct {
	URL string `json:"url"`
}

// Sender posts messages to Discord webhook URLs. A shared token bucket paces all destinations.
type Sender struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewSender creates a sender allowing perSecond messages per second (burst 1).
// A nil client falls back to one with a default timeout.
func NewSender(client *http.Client, perSecond float64) *Sender {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Sender{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

// Send posts msg to the webhook at destination. Non-2xx responses are errors;
// 429 wraps domain.ErrRateLimited.
func (s *Sender) Send(ctx context.Context, destination string, msg domain.Message) error {
	if destination == "" {
		return domain.ErrNoDestination
	}

	body, err := json.Marshal(toPayload(msg))
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for send slot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, destination, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: webhook returned status 429: %s", domain.ErrRateLimited, bytes.TrimSpace(detail))
	}
	return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
}

func toPayload(msg domain.Message) webhookPayload {
	p := webhookPayload{Content: msg.Content}
	for _, e := range msg.Embeds {
		ep := embedPayload{
			Title:       e.Title,
			URL:         e.URL,
			Description: e.Description,
		}
		if !e.Timestamp.IsZero() {
			ep.Timestamp = e.Timestamp.UTC().Format(time.RFC3339)
		}
		if e.ImageURL != "" {
			ep.Image = &imagePayload{URL: e.ImageURL}
		}
		p.Embeds = append(p.Embeds, ep)
	}
	return p
}
