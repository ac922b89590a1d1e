package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/maintenance-service/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// HealthResponse describes the health endpoint payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports each dependency checked by the readiness endpoint.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ListResponse wraps collection payloads.
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func newListResponse[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Count: len(items)}
}

// PermissionsResponse describes the caller's effective access.
type PermissionsResponse struct {
	ActorID     string              `json:"actor_id"`
	Role        domain.Role         `json:"role"`
	Rank        int                 `json:"rank"`
	Permissions []domain.Permission `json:"permissions"`
}

// RolePayload is one row of the role table.
type RolePayload struct {
	Role        domain.Role         `json:"role"`
	Rank        int                 `json:"rank"`
	Permissions []domain.Permission `json:"permissions"`
}

// ScheduleRequest assigns a date to a work order.
type ScheduleRequest struct {
	ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
}

// ScheduleStatsResponse wraps aggregated statistics with the evaluated range.
type ScheduleStatsResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	domain.ScheduleStats
}

// AuditRecordPayload is the API view of an audit record.
type AuditRecordPayload struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	ActorID   string         `json:"actor_id"`
	Action    string         `json:"action"`
	Resource  string         `json:"resource"`
	Detail    map[string]any `json:"detail,omitempty"`
}
