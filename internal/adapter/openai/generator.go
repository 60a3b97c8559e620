// Package openai implements domain.TextGenerator on the OpenAI chat completions API,
// guarded by a circuit breaker so a failing upstream is skipped instead of retried on every event.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"github.com/pscheid92/streamrelay/internal/domain"
)

const (
	DefaultModel = "gpt-4.1-nano"

	breakerMaxRequests = 1
	breakerInterval    = 5 * time.Minute
	breakerTimeout     = 2 * time.Minute
	breakerTripAfter   = 3
)

var ErrEmptyCompletion = errors.New("completion returned no text")

type Generator struct {
	client *goopenai.Client
	model  string
	cb     *gobreaker.CircuitBreaker
}

// NewGenerator creates a generator for apiKey. Empty model selects DefaultModel.
func NewGenerator(apiKey, model string) *Generator {
	return NewGeneratorWithConfig(goopenai.DefaultConfig(apiKey), model)
}

// NewGeneratorWithConfig allows overriding the base URL and HTTP client.
func NewGeneratorWithConfig(cfg goopenai.ClientConfig, model string) *Generator {
	if model == "" {
		model = DefaultModel
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openai",
		MaxRequests: breakerMaxRequests,
		Interval:    breakerInterval,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTripAfter
		},
		IsSuccessful: func(err error) bool {
			// Rate limiting is the upstream working as intended; it must not trip the breaker.
			return err == nil || errors.Is(err, domain.ErrRateLimited)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
		},
	})

	return &Generator{
		client: goopenai.NewClientWithConfig(cfg),
		model:  model,
		cb:     cb,
	}
}

// Generate sends prompt as a single user message and returns the trimmed reply.
// HTTP 429 is reported as domain.ErrRateLimited; an open breaker returns gobreaker.ErrOpenState.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := g.cb.Execute(func() (interface{}, error) {
		return g.complete(ctx, prompt)
	})
	if err != nil {
		return "", fmt.Errorf("generate text: %w", err)
	}
	return out.(string), nil
}

func (g *Generator) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: g.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		if statusCode(err) == http.StatusTooManyRequests {
			return "", fmt.Errorf("%w: %w", domain.ErrRateLimited, err)
		}
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

// State reports the breaker state for health output and tests.
func (g *Generator) State() gobreaker.State {
	return g.cb.State()
}

func statusCode(err error) int {
	if apiErr, ok := errors.AsType[*goopenai.APIError](err); ok {
		return apiErr.HTTPStatusCode
	}
	if reqErr, ok := errors.AsType[*goopenai.RequestError](err); ok {
		return reqErr.HTTPStatusCode
	}
	return 0
}
