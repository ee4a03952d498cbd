package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

func setupNotificationRouter(repo repositories.NotificationRepository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewNotificationHandler(repo, time.Second)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", int64(1))
		c.Next()
	})
	r.GET("/notifications", handler.ListNotifications)
	r.POST("/notifications/:notification_id/read", handler.MarkNotificationRead)
	return r
}

func TestListNotifications(t *testing.T) {
	repo := new(mocks.NotificationRepositoryMock)
	router := setupNotificationRouter(repo)

	repo.On("ListForUser", mock.Anything, int64(1)).
		Return([]models.Notification{{ID: 1, UserID: 1, MessageID: 10}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/notifications", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"message_id":10`)
	repo.AssertExpectations(t)
}

func TestListNotificationsEmpty(t *testing.T) {
	repo := new(mocks.NotificationRepositoryMock)
	router := setupNotificationRouter(repo)

	repo.On("ListForUser", mock.Anything, int64(1)).
		Return(([]models.Notification)(nil), nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/notifications", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"notifications":[]`)
	repo.AssertExpectations(t)
}

func TestMarkNotificationRead(t *testing.T) {
	repo := new(mocks.NotificationRepositoryMock)
	router := setupNotificationRouter(repo)

	repo.On("MarkRead", mock.Anything, int64(5), int64(1)).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/notifications/5/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	repo.AssertExpectations(t)
}

func TestMarkNotificationReadNotFound(t *testing.T) {
	repo := new(mocks.NotificationRepositoryMock)
	router := setupNotificationRouter(repo)

	repo.On("MarkRead", mock.Anything, int64(5), int64(1)).
		Return(repositories.ErrNotificationNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/notifications/5/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	repo.AssertExpectations(t)
}
