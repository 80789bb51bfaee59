package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/streamhall/backend/internal/logging"
	"github.com/streamhall/backend/internal/metrics"
	"github.com/streamhall/backend/internal/middleware"
	"github.com/streamhall/backend/internal/videos"
	"github.com/streamhall/backend/internal/webhooks"
)

// Event types announcing a new identity-provider account.
var accountCreatedEvents = map[string]struct{}{
	"user.created":    {},
	"account.created": {},
}

// DefaultArchiveTimeout bounds the payload archive so a slow object store
// cannot hold up the delivery response.
const DefaultArchiveTimeout = 2 * time.Second

// WebhookHandler receives signed account events from the identity provider.
type WebhookHandler struct {
	// Verifier is nil when no signing secret is configured.
	Verifier WebhookVerifier
	Accounts AccountRecorder
	Archive  PayloadArchive
	Limiter  RateLimiter

	// ClientIPs keys the limiter; nil keys on the direct peer.
	ClientIPs      *middleware.ClientIPResolver
	// ArchiveTimeout defaults to DefaultArchiveTimeout.
	ArchiveTimeout time.Duration
}

type accountEvent struct {
	Type string `json:"type"`
	Data struct {
		ID             string `json:"id"`
		EmailAddresses []struct {
			EmailAddress string `json:"email_address"`
		} `json:"email_addresses"`
	} `json:"data"`
}

// email is the first listed address, or empty when none is listed.
func (e accountEvent) email() string {
	if len(e.Data.EmailAddresses) == 0 {
		return ""
	}
	return strings.TrimSpace(e.Data.EmailAddresses[0].EmailAddress)
}

type statusResponse struct {
	Status string `json:"status"`
}

// Handle implements POST /api/clerk-webhook.
func (h WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, h.ClientIPs, r, "webhook") {
		respondError(ctx, w, http.StatusTooManyRequests, "too many requests")
		return
	}

	if h.Verifier == nil || h.Accounts == nil {
		logger.Error("identity webhook not configured", "hasVerifier", h.Verifier != nil, "hasAccounts", h.Accounts != nil)
		respondError(ctx, w, http.StatusInternalServerError, "webhook not configured")
		return
	}

	headers := webhooks.HeadersFrom(r.Header)
	if !headers.Complete() {
		metrics.WebhookEvents.WithLabelValues("unknown", "missing_headers").Inc()
		respondError(ctx, w, http.StatusBadRequest, "missing signature headers")
		return
	}

	payload, err := readBody(w, r)
	if err != nil {
		logger.Warn("read webhook body", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Verifier.Verify(payload, headers); err != nil {
		logger.Warn("webhook verification failed", "svixId", headers.ID, "error", err)
		metrics.WebhookEvents.WithLabelValues("unknown", "invalid_signature").Inc()
		respondError(ctx, w, http.StatusBadRequest, "could not verify webhook")
		return
	}

	h.archive(ctx, headers.ID, payload)

	var event accountEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		logger.Warn("decode webhook event", "svixId", headers.ID, "error", err)
		metrics.WebhookEvents.WithLabelValues("unknown", "invalid").Inc()
		respondError(ctx, w, http.StatusBadRequest, "invalid event data")
		return
	}

	if _, ok := accountCreatedEvents[event.Type]; !ok {
		logger.Info("ignoring webhook event", "type", event.Type)
		metrics.WebhookEvents.WithLabelValues("other", "ignored").Inc()
		respondJSON(ctx, w, http.StatusOK, statusResponse{Status: "ignored"})
		return
	}

	outcome, err := h.Accounts.RecordAccountCreated(ctx, event.Data.ID, event.email())
	switch {
	case errors.Is(err, videos.ErrInvalidAccount):
		metrics.WebhookEvents.WithLabelValues(event.Type, "invalid").Inc()
		respondError(ctx, w, http.StatusBadRequest, "invalid event data")
		return
	case err != nil:
		logger.Error("record account", "accountId", event.Data.ID, "error", err)
		metrics.WebhookEvents.WithLabelValues(event.Type, "error").Inc()
		respondError(ctx, w, http.StatusInternalServerError, "could not record account")
		return
	}

	metrics.WebhookEvents.WithLabelValues(event.Type, outcome.String()).Inc()
	if outcome == videos.OutcomeConflict {
		respondError(ctx, w, http.StatusConflict, "account already exists")
		return
	}

	logger.Info("account replicated", "accountId", event.Data.ID)
	respondJSON(ctx, w, http.StatusCreated, statusResponse{Status: "created"})
}

func (h WebhookHandler) archive(ctx context.Context, deliveryID string, payload []byte) {
	if h.Archive == nil {
		return
	}
	timeout := h.ArchiveTimeout
	if timeout <= 0 {
		timeout = DefaultArchiveTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger := logging.FromContext(ctx)
	key, err := h.Archive.Archive(ctx, deliveryID, payload)
	if err != nil {
		logger.Warn("archive webhook payload", "svixId", deliveryID, "error", err)
		return
	}
	logger.Debug("archived webhook payload", "key", key)
}
