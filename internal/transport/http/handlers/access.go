package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/maintenance-service/internal/core/domain"
	"github.com/arklim/maintenance-service/internal/transport/http/middleware"
	"github.com/arklim/maintenance-service/internal/usecase"
)

// AccessHandler describes roles and the caller's effective permissions.
type AccessHandler struct {
	gate *usecase.Gate
}

// NewAccessHandler constructs the handler.
func NewAccessHandler(gate *usecase.Gate) *AccessHandler {
	return &AccessHandler{gate: gate}
}

// MyPermissions godoc
// @Summary Effective permissions of the caller
// @Tags Access
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Success 200 {object} PermissionsResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/me/permissions [get]
func (h *AccessHandler) MyPermissions(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	if err := h.gate.RequireRole(c.Request.Context(), actor, domain.RoleUser); err != nil {
		respondDomainError(c, err, "failed to resolve permissions")
		return
	}

	payload, err := rolePayload(actor.Role)
	if err != nil {
		respondDomainError(c, err, "failed to resolve permissions")
		return
	}

	c.JSON(http.StatusOK, PermissionsResponse{
		ActorID:     actor.ID,
		Role:        payload.Role,
		Rank:        payload.Rank,
		Permissions: payload.Permissions,
	})
}

// Roles godoc
// @Summary Role table
// @Description Lists every role from highest to lowest rank with its permission set.
// @Tags Admin
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Failure 403 {object} ErrorResponse
// @Router /api/v1/admin/roles [get]
func (h *AccessHandler) Roles(c *gin.Context) {
	roles := domain.Roles()
	out := make([]RolePayload, 0, len(roles))
	for _, role := range roles {
		payload, err := rolePayload(role)
		if err != nil {
			respondDomainError(c, err, "failed to list roles")
			return
		}
		out = append(out, payload)
	}
	c.JSON(http.StatusOK, newListResponse(out))
}

func rolePayload(role domain.Role) (RolePayload, error) {
	rank, err := domain.Rank(role)
	if err != nil {
		return RolePayload{}, err
	}
	perms, err := domain.PermissionsOf(role)
	if err != nil {
		return RolePayload{}, err
	}
	return RolePayload{Role: role, Rank: rank, Permissions: perms.Sorted()}, nil
}
