package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/maintenance-service/internal/core/domain"
	"github.com/arklim/maintenance-service/internal/infra/security"
)

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// ActorVerifier turns a bearer token into the actor it was issued to.
type ActorVerifier interface {
	Verify(raw string) (*domain.Actor, error)
}

// Authenticate resolves the bearer token into a *domain.Actor. Requests without an
// Authorization header continue anonymously; the authorization gate rejects them
// when the route requires an actor.
func Authenticate(verifier ActorVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		scheme, token, found := strings.Cut(authHeader, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid authorization format: expected 'Bearer <token>'"))
			return
		}

		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing access token"))
			return
		}

		actor, err := verifier.Verify(token)
		if err != nil {
			switch {
			case errors.Is(err, security.ErrExpiredToken):
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "access token expired"))
			case errors.Is(err, security.ErrInvalidToken):
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "invalid access token"))
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					newErrorResponse(c, "authentication failed"))
			}
			return
		}

		c.Set(ActorKey, actor)
		if reqCtx := GetRequestContext(c); reqCtx != nil {
			reqCtx.ActorID = actor.ID
		}

		c.Next()
	}
}

// ActorFromContext returns the authenticated actor, or nil for anonymous requests.
func ActorFromContext(c *gin.Context) *domain.Actor {
	value, exists := c.Get(ActorKey)
	if !exists {
		return nil
	}
	actor, _ := value.(*domain.Actor)
	return actor
}

// RoleChecker enforces a minimum role.
type RoleChecker interface {
	RequireRole(ctx context.Context, actor *domain.Actor, role domain.Role) error
}

// RequireRole aborts requests whose actor ranks below role.
func RequireRole(checker RoleChecker, role domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := checker.RequireRole(c.Request.Context(), ActorFromContext(c), role)
		switch {
		case err == nil:
			c.Next()
		case errors.Is(err, domain.ErrUnauthenticated):
			c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "authentication required"))
		case errors.Is(err, domain.ErrForbidden):
			c.AbortWithStatusJSON(http.StatusForbidden, newErrorResponse(c, "insufficient permissions"))
		default:
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, newErrorResponse(c, "authorization failed"))
		}
	}
}
