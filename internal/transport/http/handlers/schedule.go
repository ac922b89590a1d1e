package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/maintenance-service/internal/core/domain"
	"github.com/arklim/maintenance-service/internal/transport/http/middleware"
	"github.com/arklim/maintenance-service/internal/usecase"
)

const dateLayout = "2006-01-02"

// ScheduleHandler exposes calendar views over work orders.
type ScheduleHandler struct {
	schedule *usecase.SchedulingService
	now      func() time.Time
}

// NewScheduleHandler constructs the handler.
func NewScheduleHandler(schedule *usecase.SchedulingService) *ScheduleHandler {
	return &ScheduleHandler{schedule: schedule, now: time.Now}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (h *ScheduleHandler) WithClock(now func() time.Time) *ScheduleHandler {
	if now != nil {
		h.now = now
	}
	return h
}

func (h *ScheduleHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("", h.ByDate)
	r.GET("/range", h.ByRange)
	r.GET("/stats", h.Stats)
	r.POST("/:id", h.Schedule)
}

// ByDate godoc
// @Summary Work orders scheduled on a calendar day
// @Tags Schedule
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param date query string false "Day as YYYY-MM-DD, defaults to today"
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/schedule [get]
func (h *ScheduleHandler) ByDate(c *gin.Context) {
	date := h.now().In(h.schedule.Location())
	if raw := strings.TrimSpace(c.Query("date")); raw != "" {
		parsed, err := h.parseDate(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, err.Error()))
			return
		}
		date = parsed
	}

	orders, err := h.schedule.ByDate(c.Request.Context(), middleware.ActorFromContext(c), date)
	if err != nil {
		respondDomainError(c, err, "failed to load schedule")
		return
	}
	c.JSON(http.StatusOK, newListResponse(orders))
}

// ByRange godoc
// @Summary Work orders scheduled within a date range
// @Tags Schedule
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param start query string true "Start day (YYYY-MM-DD) or RFC3339 instant"
// @Param end query string true "End day (YYYY-MM-DD) or RFC3339 instant, inclusive"
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/schedule/range [get]
func (h *ScheduleHandler) ByRange(c *gin.Context) {
	rng, ok := h.bindRange(c, false)
	if !ok {
		return
	}

	orders, err := h.schedule.ByDateRange(c.Request.Context(), middleware.ActorFromContext(c), rng.Start, rng.End)
	if err != nil {
		respondDomainError(c, err, "failed to load schedule")
		return
	}
	c.JSON(http.StatusOK, newListResponse(orders))
}

// Stats godoc
// @Summary Aggregated work order statistics for a date range
// @Tags Schedule
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Success 200 {object} ScheduleStatsResponse
// @Router /api/v1/schedule/stats [get]
func (h *ScheduleHandler) Stats(c *gin.Context) {
	rng, ok := h.bindRange(c, true)
	if !ok {
		return
	}

	stats, err := h.schedule.Stats(c.Request.Context(), middleware.ActorFromContext(c), rng.Start, rng.End)
	if err != nil {
		respondDomainError(c, err, "failed to compute schedule stats")
		return
	}
	c.JSON(http.StatusOK, ScheduleStatsResponse{Start: rng.Start, End: rng.End, ScheduleStats: stats})
}

// Schedule godoc
// @Summary Assign a date to a work order
// @Description Moves the work order to approved. Completed and cancelled work orders are rejected.
// @Tags Schedule
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "Work order ID"
// @Param request body ScheduleRequest true "Schedule request"
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/schedule/{id} [post]
func (h *ScheduleHandler) Schedule(c *gin.Context) {
	var req ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid schedule payload"))
		return
	}

	order, err := h.schedule.Schedule(c.Request.Context(), middleware.ActorFromContext(c), c.Param("id"), req.ScheduledAt)
	if err != nil {
		respondDomainError(c, err, "failed to schedule work order")
		return
	}
	c.JSON(http.StatusOK, order)
}

// bindRange reads start and end. Bare dates expand to whole days. When both are absent and
// defaultMonth is set, the current calendar month is used.
func (h *ScheduleHandler) bindRange(c *gin.Context, defaultMonth bool) (domain.ScheduleRange, bool) {
	rawStart := strings.TrimSpace(c.Query("start"))
	rawEnd := strings.TrimSpace(c.Query("end"))

	if rawStart == "" && rawEnd == "" && defaultMonth {
		now := h.now().In(h.schedule.Location())
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return domain.ScheduleRange{Start: first, End: first.AddDate(0, 1, 0).Add(-time.Nanosecond)}, true
	}

	if rawStart == "" || rawEnd == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "start and end are required"))
		return domain.ScheduleRange{}, false
	}

	start, err := h.parseBound(rawStart, false)
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, err.Error()))
		return domain.ScheduleRange{}, false
	}
	end, err := h.parseBound(rawEnd, true)
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, err.Error()))
		return domain.ScheduleRange{}, false
	}

	return domain.ScheduleRange{Start: start, End: end}, true
}

func (h *ScheduleHandler) parseDate(raw string) (time.Time, error) {
	parsed, err := time.ParseInLocation(dateLayout, raw, h.schedule.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", raw)
	}
	return parsed, nil
}

func (h *ScheduleHandler) parseBound(raw string, end bool) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, nil
	}
	day, err := h.parseDate(raw)
	if err != nil {
		return time.Time{}, err
	}
	rng := usecase.DayRange(day, h.schedule.Location())
	if end {
		return rng.End, nil
	}
	return rng.Start, nil
}
