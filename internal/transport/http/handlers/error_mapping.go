package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/maintenance-service/internal/core/domain"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// domainErrorCases is the mapping shared by every scoped endpoint. Order matters: a denial
// wrapping a store error must resolve to the denial.
var domainErrorCases = []ErrorCase{
	{Err: domain.ErrUnauthenticated, Status: http.StatusUnauthorized, Message: "authentication required"},
	{Err: domain.ErrForbidden, Status: http.StatusForbidden, Message: "insufficient permissions"},
	{Err: domain.ErrNotFound, Status: http.StatusNotFound, Message: "resource not found"},
	{Err: domain.ErrInvalidPatch, Status: http.StatusBadRequest, Message: "invalid patch"},
	{Err: domain.ErrInvalidRange, Status: http.StatusBadRequest, Message: "invalid date range"},
	{Err: domain.ErrTerminalWorkOrder, Status: http.StatusConflict, Message: "work order is completed or cancelled"},
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			c.JSON(cs.Status, NewErrorResponse(c, cs.Message))
			return
		}
	}

	_ = c.Error(err)
	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}

func respondDomainError(c *gin.Context, err error, fallbackMessage string) {
	RespondWithMappedError(c, err, domainErrorCases, http.StatusInternalServerError, fallbackMessage)
}
