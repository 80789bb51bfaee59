package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/streamhall/backend/internal/logging"
	"github.com/streamhall/backend/internal/models"
	"github.com/streamhall/backend/internal/repositories"
)

var (
	// ErrUnauthorized means the caller's identity could not be established.
	ErrUnauthorized = errors.New("auth: unauthorized")
	// ErrForbidden means the caller is known but lacks the required role.
	ErrForbidden = errors.New("auth: forbidden")
	// ErrNotConfigured means no identity verifier was configured.
	ErrNotConfigured = errors.New("auth: identity verifier not configured")
)

// RoleLookup resolves an account's role from the local store.
type RoleLookup interface {
	LookupRole(ctx context.Context, accountID string) (models.Role, error)
}

// Guard authorizes inbound requests. Each call is final for its request.
type Guard struct {
	verifier IdentityVerifier
	roles    RoleLookup
}

// NewGuard constructs a Guard.
func NewGuard(verifier IdentityVerifier, roles RoleLookup) *Guard {
	return &Guard{verifier: verifier, roles: roles}
}

// Authorize returns the verified account id of the caller.
func (g *Guard) Authorize(r *http.Request) (string, error) {
	if g == nil || g.verifier == nil {
		return "", ErrNotConfigured
	}

	identity, err := g.verifier.VerifyRequest(r)
	if err != nil {
		logging.FromContext(r.Context()).Info("identity verification failed", "error", err)
		return "", ErrUnauthorized
	}

	accountID := strings.TrimSpace(identity.AccountID)
	if accountID == "" {
		return "", ErrUnauthorized
	}
	return accountID, nil
}

// AuthorizeRole authorizes the caller and requires their local role to equal
// required. An account not yet replicated locally is unauthorized.
func (g *Guard) AuthorizeRole(r *http.Request, required models.Role) (string, error) {
	accountID, err := g.Authorize(r)
	if err != nil {
		return "", err
	}

	role, err := g.roles.LookupRole(r.Context(), accountID)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return "", ErrUnauthorized
	case err != nil:
		return "", fmt.Errorf("lookup role: %w", err)
	}

	if role != required {
		logging.FromContext(r.Context()).Info("role check failed", "account_id", accountID, "role", role, "required", required)
		return "", ErrForbidden
	}
	return accountID, nil
}
