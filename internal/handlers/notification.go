package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/middleware"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

// NotificationHandler exposes a user's notifications.
type NotificationHandler struct {
	notifications repositories.NotificationRepository
	timeout       time.Duration
}

// NewNotificationHandler builds a NotificationHandler.
func NewNotificationHandler(notifications repositories.NotificationRepository, timeout time.Duration) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, timeout: timeout}
}

// ListNotifications handles GET /notifications.
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	userID := middleware.UserID(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	notifications, err := h.notifications.ListForUser(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// MarkNotificationRead handles POST /notifications/:notification_id/read.
func (h *NotificationHandler) MarkNotificationRead(c *gin.Context) {
	notificationID, ok := parseIDParam(c, "notification_id")
	if !ok {
		return
	}

	userID := middleware.UserID(c)
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if err := h.notifications.MarkRead(ctx, notificationID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
