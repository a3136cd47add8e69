package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"skincheck-back/internal/apperr"
	"skincheck-back/internal/middleware"

	"github.com/gin-gonic/gin"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation), errors.Is(err, apperr.ErrInvalidImage):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrTooManyRequests):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error": msg}. Errors outside the taxonomy become a logged 500.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := statusFor(err)

	var throttled *apperr.TooManyRequests
	if errors.As(err, &throttled) {
		c.Header("Retry-After", strconv.Itoa(throttled.RetryAfterSeconds))
		c.JSON(status, gin.H{
			"error":       "Please wait before requesting another code.",
			"retry_after": throttled.RetryAfterSeconds,
		})
		return
	}

	if status == http.StatusInternalServerError && logger != nil {
		logger.Error("request failed",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.String("error", err.Error()),
		)
	}
	c.JSON(status, gin.H{"error": apperr.Message(err, "Internal server error")})
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func currentUser(c *gin.Context) uint {
	return c.GetUint(middleware.UserIDKey)
}
