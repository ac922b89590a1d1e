package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/maintenance-service/internal/core/domain"
	"github.com/arklim/maintenance-service/internal/transport/http/middleware"
	"github.com/arklim/maintenance-service/internal/usecase"
)

// AuditHandler exposes the persisted audit trail.
type AuditHandler struct {
	audit *usecase.AuditLogService
}

// NewAuditHandler constructs the handler.
func NewAuditHandler(audit *usecase.AuditLogService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// Recent godoc
// @Summary Newest audit records
// @Tags Audit
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param actor_id query string false "Only records of this actor"
// @Param limit query int false "Maximum records, default 100"
// @Failure 403 {object} ErrorResponse
// @Router /api/v1/audit [get]
func (h *AuditHandler) Recent(c *gin.Context) {
	filter := domain.AuditFilter{ActorID: strings.TrimSpace(c.Query("actor_id"))}
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "limit must be a positive integer"))
			return
		}
		filter.Limit = limit
	}

	records, err := h.audit.Recent(c.Request.Context(), middleware.ActorFromContext(c), filter)
	if err != nil {
		respondDomainError(c, err, "failed to list audit records")
		return
	}

	out := make([]AuditRecordPayload, 0, len(records))
	for _, record := range records {
		out = append(out, AuditRecordPayload{
			ID:        record.ID,
			Timestamp: record.Timestamp,
			ActorID:   record.ActorID,
			Action:    record.Action,
			Resource:  record.Resource,
			Detail:    record.Detail,
		})
	}
	c.JSON(http.StatusOK, newListResponse(out))
}
