package twitch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Its-donkey/kappopher/helix"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/streamrelay/internal/adapter/metrics"
	"github.com/pscheid92/streamrelay/internal/domain"
	"github.com/pscheid92/streamrelay/internal/platform/correlation"
	apperrors "github.com/pscheid92/streamrelay/internal/platform/errors"
)

const (
	maxWebhookBodyBytes   = 1 << 20
	messageTypeRevocation = "revocation"

	// EventSub redelivers a notification under the same message id until it is acknowledged.
	redeliveryWindow = 10 * time.Minute
)

// webhookEnvelope is one inbound EventSub request, kept only for the duration of dispatch.
type webhookEnvelope struct {
	MessageID   string
	Timestamp   string
	MessageType string
	Signature   string
	RawBody     []byte
	Payload     webhookPayload
}

type webhookPayload struct {
	Subscription struct {
		ID     string `json:"id"`
		Type   string `json:"type"`
		Status string `json:"status"`
	} `json:"subscription"`
	Event     json.RawMessage `json:"event"`
	Challenge *string         `json:"challenge"`
}

type streamOnlinePayload struct {
	BroadcasterUserID    string `json:"broadcaster_user_id"`
	BroadcasterUserLogin string `json:"broadcaster_user_login"`
	BroadcasterUserName  string `json:"broadcaster_user_name"`
}

// WebhookHandler terminates EventSub webhook calls: it verifies the signature, answers the
// subscription handshake and hands "stream went online" notifications to the stream handler.
// It never answers with a 5xx; outbound delivery problems are the stream handler's concern.
type WebhookHandler struct {
	secret  string
	streams domain.StreamOnlineHandler
	metrics *metrics.WebhookMetrics
	clock   clockwork.Clock

	mu   sync.Mutex
	seen map[string]time.Time
}

func NewWebhookHandler(secret string, streams domain.StreamOnlineHandler, m *metrics.WebhookMetrics, clock clockwork.Clock) *WebhookHandler {
	return &WebhookHandler{
		secret:  secret,
		streams: streams,
		metrics: m,
		clock:   clock,
		seen:    make(map[string]time.Time),
	}
}

func (wh *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	messageID := r.Header.Get(helix.EventSubHeaderMessageID)
	ctx := correlation.WithID(r.Context(), "webhook", messageID)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		wh.reject(ctx, w, apperrors.MalformedError("failed to read request body", err))
		return
	}

	env := webhookEnvelope{
		MessageID:   messageID,
		Timestamp:   r.Header.Get(helix.EventSubHeaderMessageTimestamp),
		MessageType: r.Header.Get(helix.EventSubHeaderMessageType),
		Signature:   r.Header.Get(helix.EventSubHeaderMessageSignature),
		RawBody:     body,
	}

	if !VerifySignature(wh.secret, env.MessageID, env.Timestamp, env.RawBody, env.Signature) {
		wh.reject(ctx, w, apperrors.AuthenticationError("signature verification failed"))
		return
	}

	if err := json.Unmarshal(env.RawBody, &env.Payload); err != nil {
		wh.reject(ctx, w, apperrors.MalformedError("request body is not valid JSON", err))
		return
	}

	wh.dispatch(ctx, w, &env)
}

func (wh *WebhookHandler) dispatch(ctx context.Context, w http.ResponseWriter, env *webhookEnvelope) {
	subscriptionType := env.Payload.Subscription.Type

	// Handshakes are only honoured for the one subscription type this service creates.
	if subscriptionType == domain.SubscriptionTypeStreamOnline && env.Payload.Challenge != nil {
		slog.InfoContext(ctx, "EventSub webhook verification", "subscription_type", subscriptionType)
		wh.metrics.Requests.WithLabelValues("challenge").Inc()
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, *env.Payload.Challenge)
		return
	}

	if env.MessageType == messageTypeRevocation {
		slog.WarnContext(ctx, "EventSub subscription revoked", "type", subscriptionType, "reason", env.Payload.Subscription.Status)
		wh.acknowledge(w, "revocation")
		return
	}

	if subscriptionType != domain.SubscriptionTypeStreamOnline {
		slog.DebugContext(ctx, "Ignoring EventSub notification", "subscription_type", subscriptionType)
		wh.acknowledge(w, "ignored")
		return
	}

	// Verified but unusable events are acknowledged so Twitch does not keep redelivering them.
	payload, err := decodeStreamOnline(env.Payload.Event)
	if err != nil {
		slog.WarnContext(ctx, "Dropping stream.online notification without usable event",
			"message_id", env.MessageID, "error", err)
		wh.acknowledge(w, "invalid_event")
		return
	}

	if wh.isRedelivery(env.MessageID) {
		slog.InfoContext(ctx, "Skipping redelivered EventSub notification", "message_id", env.MessageID)
		wh.acknowledge(w, "duplicate")
		return
	}

	event := domain.StreamOnlineEvent{
		BroadcasterID:    payload.BroadcasterUserID,
		BroadcasterLogin: payload.BroadcasterUserLogin,
		BroadcasterName:  payload.BroadcasterUserName,
	}
	slog.InfoContext(ctx, "Stream went online", "broadcaster", event.BroadcasterName, "broadcaster_id", event.BroadcasterID)

	wh.streams.HandleStreamOnline(ctx, event)
	wh.acknowledge(w, "stream_online")
}

func decodeStreamOnline(raw json.RawMessage) (streamOnlinePayload, error) {
	var payload streamOnlinePayload
	if len(raw) == 0 || string(raw) == "null" {
		return payload, errors.New("event is missing")
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return payload, fmt.Errorf("event is malformed: %w", err)
	}
	if payload.BroadcasterUserLogin == "" && payload.BroadcasterUserName == "" {
		return payload, errors.New("event names no broadcaster")
	}
	return payload, nil
}

func (wh *WebhookHandler) acknowledge(w http.ResponseWriter, outcome string) {
	wh.metrics.Requests.WithLabelValues(outcome).Inc()
	w.WriteHeader(http.StatusNoContent)
}

func (wh *WebhookHandler) reject(ctx context.Context, w http.ResponseWriter, err *apperrors.Error) {
	slog.WarnContext(ctx, "Rejected EventSub request", err.LogAttrs()...)
	wh.metrics.Requests.WithLabelValues(string(err.Type)).Inc()
	http.Error(w, err.Message, err.HTTPStatus())
}

// isRedelivery records messageID and reports whether it was already seen within the redelivery window.
func (wh *WebhookHandler) isRedelivery(messageID string) bool {
	if messageID == "" {
		return false
	}

	now := wh.clock.Now()

	wh.mu.Lock()
	defer wh.mu.Unlock()

	for id, at := range wh.seen {
		if now.Sub(at) > redeliveryWindow {
			delete(wh.seen, id)
		}
	}

	if _, ok := wh.seen[messageID]; ok {
		return true
	}
	wh.seen[messageID] = now
	return false
}
