package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/streamhall/backend/internal/auth"
	"github.com/streamhall/backend/internal/logging"
	"github.com/streamhall/backend/internal/middleware"
	"github.com/streamhall/backend/internal/models"
	"github.com/streamhall/backend/internal/validation"
	"github.com/streamhall/backend/internal/videos"
)

// UploadHandler lets admins reserve direct uploads at the streaming platform.
type UploadHandler struct {
	Guard   Authorizer
	Uploads   UploadCreator
	Limiter   RateLimiter
	ClientIPs *middleware.ClientIPResolver
}

type uploadRequest struct {
	Name        string `json:"name" validate:"required_without=Title,max=256"`
	Title       string `json:"title" validate:"max=256"`
	Description string `json:"description" validate:"max=5000"`
	Size        int64  `json:"size" validate:"gt=0"`
}

type uploadResponse struct {
	ID        string `json:"id"`
	UploadURL string `json:"uploadURL"`
}

// Create implements POST /api/upload.
func (h UploadHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, h.ClientIPs, r, "upload") {
		respondError(ctx, w, http.StatusTooManyRequests, "too many requests")
		return
	}

	if h.Guard == nil || h.Uploads == nil {
		logger.Error("upload dependencies unavailable", "hasGuard", h.Guard != nil, "hasUploads", h.Uploads != nil)
		respondError(ctx, w, http.StatusInternalServerError, "upload service unavailable")
		return
	}

	accountID, err := h.Guard.AuthorizeRole(r, models.RoleAdmin)
	if err != nil {
		respondAuthError(w, r, err)
		return
	}

	var req uploadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid upload payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Title = strings.TrimSpace(req.Title)

	if err := validation.Struct(req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.Uploads.CreateUploadSlot(ctx, videos.UploadInput{
		OwnerID:     accountID,
		Name:        req.Name,
		Title:       req.Title,
		Description: req.Description,
		SizeBytes:   req.Size,
	})
	switch {
	case errors.Is(err, videos.ErrInvalidUpload):
		respondError(ctx, w, http.StatusBadRequest, "invalid upload request")
		return
	case err != nil:
		logger.Error("create upload slot", "accountId", accountID, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to create upload URL")
		return
	}

	logger.Info("upload slot created", "accountId", accountID, "videoId", result.ResourceID, "mediaId", result.MediaID)
	respondJSON(ctx, w, http.StatusOK, uploadResponse{ID: result.ResourceID, UploadURL: result.UploadURL})
}

// respondAuthError maps guard failures to 401, 403 or 500 without echoing detail.
func respondAuthError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, auth.ErrForbidden):
		respondError(ctx, w, http.StatusForbidden, "forbidden")
	default:
		logging.FromContext(ctx).Error("authorize request", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "internal server error")
	}
}
