package repositories

import (
	"context"

	"github.com/streamhall/backend/internal/models"
)

// AccountRepository defines the data access contract for replicated accounts.
type AccountRepository interface {
	Create(ctx context.Context, account models.Account) error
	FindByID(ctx context.Context, id string) (models.Account, error)
	UpdateRole(ctx context.Context, id string, role models.Role) error
}
