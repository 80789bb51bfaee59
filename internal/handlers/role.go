package handlers

import (
	"errors"
	"net/http"

	"github.com/streamhall/backend/internal/logging"
	"github.com/streamhall/backend/internal/models"
	"github.com/streamhall/backend/internal/repositories"
)

// RoleHandler reports the caller's replicated role.
type RoleHandler struct {
	Guard Authorizer
	Roles RoleReader
}

type roleResponse struct {
	Role models.Role `json:"role"`
}

// Get implements GET /api/user/role.
func (h RoleHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accountID, err := h.Guard.Authorize(r)
	if err != nil {
		respondAuthError(w, r, err)
		return
	}

	role, err := h.Roles.LookupRole(ctx, accountID)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		respondError(ctx, w, http.StatusNotFound, "user not found")
		return
	case err != nil:
		logging.FromContext(ctx).Error("lookup role", "accountId", accountID, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "internal server error")
		return
	}

	respondJSON(ctx, w, http.StatusOK, roleResponse{Role: role})
}
