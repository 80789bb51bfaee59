package handlers

import (
	"context"
	"net/http"

	"github.com/streamhall/backend/internal/models"
	"github.com/streamhall/backend/internal/playback"
	"github.com/streamhall/backend/internal/videos"
	"github.com/streamhall/backend/internal/webhooks"
)

// Authorizer establishes who is calling and, for gated routes, their role.
type Authorizer interface {
	Authorize(r *http.Request) (string, error)
	AuthorizeRole(r *http.Request, required models.Role) (string, error)
}

// AccountRecorder replicates identity-provider accounts locally.
type AccountRecorder interface {
	RecordAccountCreated(ctx context.Context, id, email string) (videos.Outcome, error)
}

// RoleReader resolves an account's role.
type RoleReader interface {
	LookupRole(ctx context.Context, accountID string) (models.Role, error)
}

// VideoCatalog reads registered videos.
type VideoCatalog interface {
	ListResources(ctx context.Context) ([]models.Video, error)
	GetResource(ctx context.Context, id string) (models.Video, error)
	GetMediaID(ctx context.Context, id string) (string, error)
}

// UploadCreator starts uploads at the streaming platform.
type UploadCreator interface {
	CreateUploadSlot(ctx context.Context, in videos.UploadInput) (videos.UploadResult, error)
}

// TokenIssuer signs playback tokens for platform media ids.
type TokenIssuer interface {
	Issue(mediaID string) (playback.Token, error)
}

// WebhookVerifier checks a delivery's signature over its raw body.
type WebhookVerifier interface {
	Verify(payload []byte, headers webhooks.Headers) error
}

// PayloadArchive keeps a copy of verified webhook deliveries.
type PayloadArchive interface {
	Archive(ctx context.Context, deliveryID string, payload []byte) (string, error)
}
