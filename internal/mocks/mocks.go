package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, senderID, receiverID int64, body string, parentID *int64) (models.Message, error) {
	args := m.Called(ctx, senderID, receiverID, body, parentID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) EditMessage(ctx context.Context, messageID, editorID int64, newBody string) (models.Message, bool, error) {
	args := m.Called(ctx, messageID, editorID, newBody)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Bool(1), args.Error(2)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, messageID, userID int64) error {
	args := m.Called(ctx, messageID, userID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) ListUnread(ctx context.Context, userID, afterID int64, limit int) ([]models.Message, error) {
	args := m.Called(ctx, userID, afterID, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) ListReplies(ctx context.Context, parentIDs []int64) ([]models.Message, error) {
	args := m.Called(ctx, parentIDs)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) ListTopLevelBetween(ctx context.Context, userA, userB int64) ([]models.Message, error) {
	args := m.Called(ctx, userA, userB)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) ListHistory(ctx context.Context, messageID int64) ([]models.MessageHistory, error) {
	args := m.Called(ctx, messageID)
	var history []models.MessageHistory
	if val := args.Get(0); val != nil {
		history = val.([]models.MessageHistory)
	}
	return history, args.Error(1)
}

type NotificationRepositoryMock struct {
	mock.Mock
}

func (m *NotificationRepositoryMock) ListForUser(ctx context.Context, userID int64) ([]models.Notification, error) {
	args := m.Called(ctx, userID)
	var notifications []models.Notification
	if val := args.Get(0); val != nil {
		notifications = val.([]models.Notification)
	}
	return notifications, args.Error(1)
}

func (m *NotificationRepositoryMock) MarkRead(ctx context.Context, notificationID, userID int64) error {
	args := m.Called(ctx, notificationID, userID)
	return args.Error(0)
}

type CleanupRepositoryMock struct {
	mock.Mock
}

func (m *CleanupRepositoryMock) DeleteAccountData(ctx context.Context, accountID int64) (repositories.CleanupResult, error) {
	args := m.Called(ctx, accountID)
	var result repositories.CleanupResult
	if val := args.Get(0); val != nil {
		result = val.(repositories.CleanupResult)
	}
	return result, args.Error(1)
}

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
