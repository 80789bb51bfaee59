package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/streamhall/backend/internal/logging"
	"github.com/streamhall/backend/internal/metrics"
	"github.com/streamhall/backend/internal/playback"
	"github.com/streamhall/backend/internal/repositories"
)

// PlaybackHandler issues signed playback tokens for registered videos.
type PlaybackHandler struct {
	Guard  Authorizer
	Videos VideoCatalog
	Tokens TokenIssuer
}

type playbackResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Token implements GET /api/videos/{id}/playback.
func (h PlaybackHandler) Token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if _, err := h.Guard.Authorize(r); err != nil {
		respondAuthError(w, r, err)
		return
	}

	videoID := chi.URLParam(r, "id")
	mediaID, err := h.Videos.GetMediaID(ctx, videoID)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		metrics.PlaybackTokensIssued.WithLabelValues("not_found").Inc()
		respondError(ctx, w, http.StatusNotFound, "video not found")
		return
	case err != nil:
		logger.Error("lookup media id", "videoId", videoID, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "internal server error")
		return
	}

	token, err := h.Tokens.Issue(mediaID)
	if err != nil {
		outcome := "signing_error"
		switch {
		case errors.Is(err, playback.ErrNotConfigured):
			outcome = "not_configured"
		case errors.Is(err, playback.ErrKeyImport):
			outcome = "key_error"
		}
		metrics.PlaybackTokensIssued.WithLabelValues(outcome).Inc()
		logger.Error("issue playback token", "videoId", videoID, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "internal server error")
		return
	}

	metrics.PlaybackTokensIssued.WithLabelValues("issued").Inc()
	respondJSON(ctx, w, http.StatusOK, playbackResponse{Token: token.Value, ExpiresAt: token.ExpiresAt})
}
