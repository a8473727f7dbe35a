package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/scan-control/internal/controller"
	"github.com/cuongbtq/scan-control/internal/domain"
)

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrJobNotFound),
		errors.Is(err, domain.ErrResultNotFound),
		errors.Is(err, domain.ErrScheduleNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrJobNotRunning),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrScheduleNotPending),
		errors.Is(err, domain.ErrDuplicateName):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnknownKind),
		errors.Is(err, domain.ErrInvalidPayload),
		errors.Is(err, domain.ErrScheduleInPast):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrQueueFull),
		errors.Is(err, controller.ErrStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as JSON. Internal errors are logged and hidden.
func respondError(c *gin.Context, logger *slog.Logger, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.ErrorContext(c.Request.Context(), msg, slog.String("error", err.Error()))
		c.JSON(status, gin.H{
			"error": msg,
		})
		return
	}
	c.JSON(status, gin.H{
		"error": err.Error(),
	})
}
