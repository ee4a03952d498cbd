package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/repositories"
)

// respondError maps repository errors onto distinguishable HTTP responses.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repositories.ErrEmptyBody),
		errors.Is(err, repositories.ErrParentNotFound),
		errors.Is(err, repositories.ErrParentMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repositories.ErrMessageNotFound),
		errors.Is(err, repositories.ErrNotificationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, repositories.ErrNotSender),
		errors.Is(err, repositories.ErrNotReceiver):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, repositories.ErrEditConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "concurrent edit conflict, try again"})
	case errors.Is(err, repositories.ErrThreadTooDeep):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "operation timed out"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
