package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/streamrelay/internal/domain"
)

type fakeCompletions struct {
	status  atomic.Int32
	reply   string
	calls   atomic.Int32
	lastReq atomic.Pointer[goopenai.ChatCompletionRequest]
}

func (f *fakeCompletions) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)

	var req goopenai.ChatCompletionRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	f.lastReq.Store(&req)

	w.Header().Set("Content-Type", "application/json")
	if status := int(f.status.Load()); status != 0 && status != http.StatusOK {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream says no","type":"error"}}`))
		return
	}

	_ = json.NewEncoder(w).Encode(goopenai.ChatCompletionResponse{
		Choices: []goopenai.ChatCompletionChoice{
			{Message: goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleAssistant, Content: f.reply}},
		},
	})
}

func newTestGenerator(t *testing.T, fake *fakeCompletions) *Generator {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	cfg := goopenai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	cfg.HTTPClient = srv.Client()
	return NewGeneratorWithConfig(cfg, "")
}

func TestGenerate_ReturnsTrimmedReply(t *testing.T) {
	fake := &fakeCompletions{reply: "  Alice is back with more chaos!  \n"}
	g := newTestGenerator(t, fake)

	text, err := g.Generate(context.Background(), "write something")
	require.NoError(t, err)
	assert.Equal(t, "Alice is back with more chaos!", text)

	req := fake.lastReq.Load()
	require.NotNil(t, req)
	assert.Equal(t, DefaultModel, req.Model)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, goopenai.ChatMessageRoleUser, req.Messages[0].Role)
	assert.Equal(t, "write something", req.Messages[0].Content)
}

func TestGenerate_RateLimited(t *testing.T) {
	fake := &fakeCompletions{}
	fake.status.Store(http.StatusTooManyRequests)
	g := newTestGenerator(t, fake)

	_, err := g.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestGenerate_RateLimitDoesNotTripBreaker(t *testing.T) {
	fake := &fakeCompletions{}
	fake.status.Store(http.StatusTooManyRequests)
	g := newTestGenerator(t, fake)

	for range breakerTripAfter + 1 {
		_, _ = g.Generate(context.Background(), "prompt")
	}
	assert.Equal(t, gobreaker.StateClosed, g.State())
}

func TestGenerate_EmptyReply(t *testing.T) {
	fake := &fakeCompletions{reply: "   "}
	g := newTestGenerator(t, fake)

	_, err := g.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestGenerate_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	fake := &fakeCompletions{}
	fake.status.Store(http.StatusInternalServerError)
	g := newTestGenerator(t, fake)

	for range breakerTripAfter {
		_, err := g.Generate(context.Background(), "prompt")
		require.Error(t, err)
	}
	require.Equal(t, gobreaker.StateOpen, g.State())

	callsBefore := fake.calls.Load()
	_, err := g.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, callsBefore, fake.calls.Load(), "open breaker must not reach upstream")
}
