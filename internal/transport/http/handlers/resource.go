package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/maintenance-service/internal/core/domain"
	"github.com/arklim/maintenance-service/internal/transport/http/middleware"
	"github.com/arklim/maintenance-service/internal/usecase"
)

// ResourcePermissions binds each CRUD route to the permission it requires.
type ResourcePermissions struct {
	Read   domain.Permission
	Write  domain.Permission
	Delete domain.Permission
}

// ResourceHandler serves tenant-scoped CRUD for one resource type.
type ResourceHandler[T any, PT interface {
	*T
	domain.Owned
	domain.Identified
}] struct {
	service *usecase.ResourceService[T, PT]
	perms   ResourcePermissions
}

// NewResourceHandler constructs a handler over service.
func NewResourceHandler[T any, PT interface {
	*T
	domain.Owned
	domain.Identified
}](service *usecase.ResourceService[T, PT], perms ResourcePermissions) *ResourceHandler[T, PT] {
	return &ResourceHandler[T, PT]{service: service, perms: perms}
}

// RegisterRoutes mounts list/get/create/patch/delete on r.
func (h *ResourceHandler[T, PT]) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("", h.List)
	r.POST("", h.Create)
	r.GET("/:id", h.Get)
	r.PATCH("/:id", h.Patch)
	r.DELETE("/:id", h.Delete)
}

// RegisterOwnRoutes mounts read-only routes restricted to the caller's own records.
func (h *ResourceHandler[T, PT]) RegisterOwnRoutes(r *gin.RouterGroup, perm domain.Permission) {
	r.GET("", func(c *gin.Context) {
		items, err := h.service.ListOwn(c.Request.Context(), middleware.ActorFromContext(c), perm)
		if err != nil {
			respondDomainError(c, err, "failed to list records")
			return
		}
		c.JSON(http.StatusOK, newListResponse(items))
	})
	r.GET("/:id", func(c *gin.Context) {
		item, err := h.service.GetOwn(c.Request.Context(), middleware.ActorFromContext(c), perm, c.Param("id"))
		if err != nil {
			respondDomainError(c, err, "failed to load record")
			return
		}
		c.JSON(http.StatusOK, item)
	})
}

// List godoc
// @Summary List records visible to the caller
// @Tags Resources
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Success 200 {object} ListResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
func (h *ResourceHandler[T, PT]) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context(), middleware.ActorFromContext(c), h.perms.Read)
	if err != nil {
		respondDomainError(c, err, "failed to list records")
		return
	}
	c.JSON(http.StatusOK, newListResponse(items))
}

// Get godoc
// @Summary Load a single record
// @Tags Resources
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "Record ID"
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
func (h *ResourceHandler[T, PT]) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), middleware.ActorFromContext(c), h.perms.Read, c.Param("id"))
	if err != nil {
		respondDomainError(c, err, "failed to load record")
		return
	}
	c.JSON(http.StatusOK, item)
}

// Create godoc
// @Summary Create a record owned by the caller
// @Tags Resources
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
func (h *ResourceHandler[T, PT]) Create(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	if actor == nil {
		respondDomainError(c, domain.ErrUnauthenticated, "authentication required")
		return
	}

	var payload T
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	created, err := h.service.Create(c.Request.Context(), actor, h.perms.Write, &payload)
	if err != nil {
		respondDomainError(c, err, "failed to create record")
		return
	}
	c.JSON(http.StatusCreated, created)
}

// Patch godoc
// @Summary Update selected fields of a record
// @Description owner_id and id are ignored.
// @Tags Resources
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "Record ID"
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
func (h *ResourceHandler[T, PT]) Patch(c *gin.Context) {
	patch, err := bindPatch(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid patch payload"))
		return
	}

	updated, err := h.service.Update(c.Request.Context(), middleware.ActorFromContext(c), h.perms.Write, c.Param("id"), patch)
	if err != nil {
		respondDomainError(c, err, "failed to update record")
		return
	}
	c.JSON(http.StatusOK, updated)
}

// Delete godoc
// @Summary Delete a record
// @Tags Resources
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "Record ID"
// @Success 204
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
func (h *ResourceHandler[T, PT]) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), middleware.ActorFromContext(c), h.perms.Delete, c.Param("id")); err != nil {
		respondDomainError(c, err, "failed to delete record")
		return
	}
	c.Status(http.StatusNoContent)
}

func bindPatch(c *gin.Context) (domain.Patch, error) {
	raw, err := c.GetRawData()
	if err != nil {
		return nil, err
	}

	var fields map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}

	patch := make(domain.Patch, len(fields))
	for key, value := range fields {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if n, ok := value.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				patch[key] = i
				continue
			}
			f, err := n.Float64()
			if err != nil {
				return nil, err
			}
			patch[key] = f
			continue
		}
		patch[key] = value
	}
	return patch, nil
}
