package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/streamhall/backend/internal/logging"
	"github.com/streamhall/backend/internal/models"
	"github.com/streamhall/backend/internal/repositories"
)

// VideoHandler lists and describes registered videos.
type VideoHandler struct {
	Guard  Authorizer
	Videos VideoCatalog
}

type videoSummary struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	ExternalMediaID string    `json:"external_media_id"`
	CreatedAt       time.Time `json:"created_at"`
}

func summarize(v models.Video) videoSummary {
	return videoSummary{
		ID:              v.ID,
		Title:           v.Title,
		Description:     v.Description,
		ExternalMediaID: v.ExternalMediaID,
		CreatedAt:       v.CreatedAt.UTC(),
	}
}

// List implements GET /api/videos, newest first.
func (h VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, err := h.Guard.Authorize(r); err != nil {
		respondAuthError(w, r, err)
		return
	}

	list, err := h.Videos.ListResources(ctx)
	if err != nil {
		logging.FromContext(ctx).Error("list videos", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]videoSummary, 0, len(list))
	for _, v := range list {
		out = append(out, summarize(v))
	}
	respondJSON(ctx, w, http.StatusOK, out)
}

// Get implements GET /api/videos/{id}.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, err := h.Guard.Authorize(r); err != nil {
		respondAuthError(w, r, err)
		return
	}

	video, err := h.Videos.GetResource(ctx, chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		respondError(ctx, w, http.StatusNotFound, "video not found")
		return
	case err != nil:
		logging.FromContext(ctx).Error("get video", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "internal server error")
		return
	}

	respondJSON(ctx, w, http.StatusOK, summarize(video))
}
