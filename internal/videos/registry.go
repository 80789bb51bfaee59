// Package videos is the resource registry: replicated accounts and the
// uploaded videos bound to their streaming-platform media ids.
package videos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/streamhall/backend/internal/ids"
	"github.com/streamhall/backend/internal/logging"
	"github.com/streamhall/backend/internal/metrics"
	"github.com/streamhall/backend/internal/models"
	"github.com/streamhall/backend/internal/repositories"
	"github.com/streamhall/backend/internal/stream"
)

var (
	// ErrInvalidAccount indicates an account notification without id or email.
	ErrInvalidAccount = errors.New("videos: account id and email are required")
	// ErrInvalidUpload indicates an upload request without owner or positive size.
	ErrInvalidUpload = errors.New("videos: owner and positive size are required")
)

// Outcome reports what RecordAccountCreated did.
type Outcome int

const (
	OutcomeCreated Outcome = iota + 1
	// OutcomeConflict means the account was already replicated.
	OutcomeConflict
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// UploadPlatform reserves upload slots at the streaming platform.
type UploadPlatform interface {
	CreateDirectUpload(ctx context.Context, req stream.UploadRequest) (stream.UploadSlot, error)
}

// UploadInput describes an upload an admin wants to start.
type UploadInput struct {
	OwnerID     string
	Name        string
	Title       string
	Description string
	SizeBytes   int64
}

// UploadResult is the new resource and where its bytes go.
type UploadResult struct {
	ResourceID string
	MediaID    string
	UploadURL  string
}

// Registry coordinates the account and video repositories with the platform.
type Registry struct {
	accounts repositories.AccountRepository
	videos   repositories.VideoRepository
	platform UploadPlatform
	now      func() time.Time
	newID    func() string
}

// NewRegistry constructs a Registry.
func NewRegistry(accounts repositories.AccountRepository, videos repositories.VideoRepository, platform UploadPlatform) *Registry {
	return &Registry{
		accounts: accounts,
		videos:   videos,
		platform: platform,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    ids.New,
	}
}

// WithClock overrides the clock used for created_at. Intended for tests.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	if now != nil {
		r.now = now
	}
	return r
}

// RecordAccountCreated replicates a new identity-provider account with the
// viewer role. A duplicate id is reported as OutcomeConflict, not an error.
func (r *Registry) RecordAccountCreated(ctx context.Context, id, email string) (Outcome, error) {
	ctx, span := logging.StartSpan(ctx, "videos.record_account_created")

	id, email = strings.TrimSpace(id), strings.TrimSpace(email)
	if id == "" || email == "" {
		span.End(ErrInvalidAccount)
		return 0, ErrInvalidAccount
	}

	err := r.accounts.Create(ctx, models.Account{
		ID:        id,
		Email:     email,
		Role:      models.RoleViewer,
		CreatedAt: r.now(),
	})
	switch {
	case errors.Is(err, repositories.ErrConflict):
		span.End(nil)
		return OutcomeConflict, nil
	case err != nil:
		span.End(err)
		return 0, fmt.Errorf("record account: %w", err)
	}

	span.End(nil)
	return OutcomeCreated, nil
}

// LookupRole returns the replicated role of an account, or repositories.ErrNotFound.
func (r *Registry) LookupRole(ctx context.Context, accountID string) (models.Role, error) {
	account, err := r.accounts.FindByID(ctx, accountID)
	if err != nil {
		return "", err
	}
	return account.Role, nil
}

// CreateUploadSlot asks the platform for an upload slot, then records the
// video bound to the returned media id. The two steps are not atomic: when
// the write fails the slot is orphaned at the platform and only logged.
func (r *Registry) CreateUploadSlot(ctx context.Context, in UploadInput) (UploadResult, error) {
	ctx, span := logging.StartSpan(ctx, "videos.create_upload_slot")

	if strings.TrimSpace(in.OwnerID) == "" || in.SizeBytes <= 0 {
		span.End(ErrInvalidUpload)
		return UploadResult{}, ErrInvalidUpload
	}

	displayName := strings.TrimSpace(in.Title)
	if displayName == "" {
		displayName = strings.TrimSpace(in.Name)
	}

	slot, err := r.platform.CreateDirectUpload(ctx, stream.UploadRequest{
		SizeBytes: in.SizeBytes,
		Name:      displayName,
		Creator:   in.OwnerID,
	})
	if err != nil {
		span.End(err)
		return UploadResult{}, fmt.Errorf("create platform upload: %w", err)
	}

	video := models.Video{
		ID:              r.newID(),
		Title:           strings.TrimSpace(in.Title),
		Description:     in.Description,
		CreatedAt:       r.now(),
		OwnerID:         in.OwnerID,
		ExternalMediaID: slot.MediaID,
	}
	if err := r.videos.Create(ctx, video); err != nil {
		metrics.OrphanedUploadSlots.Inc()
		logging.FromContext(ctx).Error("upload slot orphaned at platform",
			slog.String("media_id", slot.MediaID),
			slog.String("owner_id", in.OwnerID),
			slog.String("error", err.Error()),
		)
		span.End(err)
		return UploadResult{}, fmt.Errorf("persist video: %w", err)
	}

	span.End(nil)
	return UploadResult{ResourceID: video.ID, MediaID: slot.MediaID, UploadURL: slot.UploadURL}, nil
}

// ListResources returns every video, newest first.
func (r *Registry) ListResources(ctx context.Context) ([]models.Video, error) {
	videos, err := r.videos.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	return videos, nil
}

// GetResource returns one video or repositories.ErrNotFound.
func (r *Registry) GetResource(ctx context.Context, id string) (models.Video, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.Video{}, repositories.ErrNotFound
	}
	return r.videos.FindByID(ctx, id)
}

// GetMediaID returns the platform media id of a video or repositories.ErrNotFound.
func (r *Registry) GetMediaID(ctx context.Context, id string) (string, error) {
	video, err := r.GetResource(ctx, id)
	if err != nil {
		return "", err
	}
	return video.ExternalMediaID, nil
}
