package repositories

import (
	"context"

	"github.com/streamhall/backend/internal/models"
)

// VideoRepository exposes data access for uploaded videos.
type VideoRepository interface {
	Create(ctx context.Context, video models.Video) error
	List(ctx context.Context) ([]models.Video, error)
	FindByID(ctx context.Context, id string) (models.Video, error)
}
