package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

func setupMessageRouter(handler *MessageHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", int64(1))
		c.Next()
	})
	r.POST("/messages", handler.SendMessage)
	r.PUT("/messages/:message_id", handler.EditMessage)
	r.GET("/messages/unread", handler.ListUnread)
	r.GET("/messages/:message_id/thread", handler.GetThread)
	r.GET("/messages/:message_id/history", handler.GetMessageHistory)
	r.POST("/messages/:message_id/read", handler.MarkMessageRead)
	r.GET("/conversations/:user_id", handler.GetConversation)
	return r
}

func newMessageHandler(repo repositories.MessageRepository) *MessageHandler {
	return NewMessageHandler(repo, repositories.NewThreadBuilder(repo), nil, time.Second)
}

func TestSendMessageSuccess(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(newMessageHandler(repo))

	repo.On("CreateMessage", mock.Anything, int64(1), int64(2), "hi", (*int64)(nil)).
		Return(models.Message{ID: 10, SenderID: 1, ReceiverID: 2, Body: "hi"}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewBufferString(`{"receiver_id":2,"body":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var msg models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msg))
	require.Equal(t, int64(10), msg.ID)
	repo.AssertExpectations(t)
}

func TestSendMessageEmptyBody(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(newMessageHandler(repo))

	repo.On("CreateMessage", mock.Anything, int64(1), int64(2), "   ", (*int64)(nil)).
		Return(models.Message{}, repositories.ErrEmptyBody).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewBufferString(`{"receiver_id":2,"body":"   "}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	repo.AssertExpectations(t)
}

func TestSendMessageDanglingParent(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(newMessageHandler(repo))

	parentID := int64(99)
	repo.On("CreateMessage", mock.Anything, int64(1), int64(2), "reply", &parentID).
		Return(models.Message{}, repositories.ErrParentNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewBufferString(`{"receiver_id":2,"body":"reply","parent_id":99}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	repo.AssertExpectations(t)
}

func TestSendMessageMissingReceiver(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(newMessageHandler(repo))

	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewBufferString(`{"body":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	repo.AssertNotCalled(t, "CreateMessage")
}

func TestEditMessageSuccess(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(newMessageHandler(repo))

	edited := int64(1)
	repo.On("EditMessage", mock.Anything, int64(10), int64(1), "hi there").
		Return(models.Message{ID: 10, SenderID: 1, ReceiverID: 2, Body: "hi there", Edited: true, EditedBy: &edited}, true, nil).Once()

	req := httptest.NewRequest(http.MethodPut, "/messages/10", bytes.NewBufferString(`{"body":"hi there"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var msg models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msg))
	assert.True(t, msg.Edited)
	assert.Equal(t, "hi there", msg.Body)
	repo.AssertExpectations(t)
}

func TestEditMessageForbidden(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(newMessageHandler(repo))

	repo.On("EditMessage", mock.Anything, int64(10), int64(1), "nope").
		Return(models.Message{}, false, repositories.ErrNotSender).Once()

	req := httptest.NewRequest(http.MethodPut, "/messages/10", bytes.NewBufferString(`{"body":"nope"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	repo.AssertExpectations(t)
}

func TestEditMessageNotFound(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(newMessageHandler(repo))

	repo.On("EditMessage", mock.Anything, int64(404), int64(1), "hello").
		Return(models.Message{}, false, repositories.ErrMessageNotFound).Once()

	req := httptest.NewRequest(http.MethodPut, "/messages/404", bytes.NewBufferString(`{"body":"hello"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	repo.AssertExpectations(t)
}

func TestEditMessageConflict(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(newMessageHandler(repo))

	repo.On("EditMessage", mock.Anything, int64(10), int64(1), "busy").
		Return(models.Message{}, false, repositories.ErrEditConflict).Once()

	req := httptest.NewRequest(http.MethodPut, "/messages/10", bytes.NewBufferString(`{"body":"busy"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	repo.AssertExpectations(t)
}

func TestGetThreadSuccess(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(newMessageHandler(repo))

	rootID := int64(1)
	root := models.Message{ID: 1, SenderID: 1, ReceiverID: 2, Body: "hi there"}
	reply := models.Message{ID: 2, SenderID: 1, ReceiverID: 2, Body: "reply", ParentID: &rootID}

	repo.On("GetMessage", mock.Anything, int64(1)).Return(root, nil).Once()
	repo.On("ListReplies", mock.Anything, []int64{1}).Return([]models.Message{reply}, nil).Once()
	repo.On("ListReplies", mock.Anything, []int64{2}).Return(([]models.Message)(nil), nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/1/thread", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var thread models.Thread
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&thread))
	require.Equal(t, "hi there", thread.Message.Body)
	require.Len(t, thread.Replies, 1)
	assert.Equal(t, "reply", thread.Replies[0].Message.Body)
	repo.AssertExpectations(t)
}

func TestGetThreadNotFound(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(newMessageHandler(repo))

	repo.On("GetMessage", mock.Anything, int64(404)).Return(models.Message{}, repositories.ErrMessageNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/404/thread", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	repo.AssertExpectations(t)
}

func TestGetConversation(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(newMessageHandler(repo))

	roots := []models.Message{
		{ID: 1, SenderID: 1, ReceiverID: 2, Body: "hi"},
		{ID: 3, SenderID: 2, ReceiverID: 1, Body: "hey"},
	}
	repo.On("ListTopLevelBetween", mock.Anything, int64(1), int64(2)).Return(roots, nil).Once()
	repo.On("ListReplies", mock.Anything, []int64{1, 3}).Return(([]models.Message)(nil), nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Conversation []models.Thread `json:"conversation"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Conversation, 2)
	repo.AssertExpectations(t)
}

func TestListUnread(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(newMessageHandler(repo))

	msgs := []models.Message{
		{ID: 4, SenderID: 2, ReceiverID: 1, Body: "one"},
		{ID: 7, SenderID: 2, ReceiverID: 1, Body: "two"},
	}
	repo.On("ListUnread", mock.Anything, int64(1), int64(0), 0).Return(msgs, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/unread", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages    []models.Message `json:"messages"`
		NextAfterID int64            `json:"next_after_id"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, int64(7), resp.NextAfterID)
	repo.AssertExpectations(t)
}

func TestListUnreadPaged(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(newMessageHandler(repo))

	repo.On("ListUnread", mock.Anything, int64(1), int64(7), 10).Return(([]models.Message)(nil), nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/unread?after_id=7&limit=10", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"messages":[]`)
	repo.AssertExpectations(t)
}

func TestMarkMessageReadForbidden(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(newMessageHandler(repo))

	repo.On("MarkRead", mock.Anything, int64(10), int64(1)).Return(repositories.ErrNotReceiver).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages/10/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	repo.AssertExpectations(t)
}

func TestGetMessageHistory(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(newMessageHandler(repo))

	editor := int64(1)
	repo.On("GetMessage", mock.Anything, int64(10)).
		Return(models.Message{ID: 10, SenderID: 1, ReceiverID: 2}, nil).Once()
	repo.On("ListHistory", mock.Anything, int64(10)).
		Return([]models.MessageHistory{{ID: 1, MessageID: 10, OldContent: "hi", EditedBy: &editor}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/10/history", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"old_content":"hi"`)
	repo.AssertExpectations(t)
}

func TestGetMessageHistoryForbidden(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(newMessageHandler(repo))

	repo.On("GetMessage", mock.Anything, int64(10)).
		Return(models.Message{ID: 10, SenderID: 5, ReceiverID: 6}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/10/history", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	repo.AssertNotCalled(t, "ListHistory")
}
