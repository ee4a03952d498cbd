package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/middleware"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
)

// MessageHandler exposes the messaging pipeline over HTTP.
type MessageHandler struct {
	messages repositories.MessageRepository
	threads  *repositories.ThreadBuilder
	emitter  *telemetry.Emitter
	timeout  time.Duration
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(messages repositories.MessageRepository, threads *repositories.ThreadBuilder, emitter *telemetry.Emitter, timeout time.Duration) *MessageHandler {
	return &MessageHandler{
		messages: messages,
		threads:  threads,
		emitter:  emitter,
		timeout:  timeout,
	}
}

// opCtx derives the store deadline for one operation from the request.
func (h *MessageHandler) opCtx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

// SendMessage handles POST /messages.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req struct {
		ReceiverID int64  `json:"receiver_id" binding:"required"`
		Body       string `json:"body"`
		ParentID   *int64 `json:"parent_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	senderID := middleware.UserID(c)
	ctx, cancel := h.opCtx(c)
	defer cancel()

	msg, err := h.messages.CreateMessage(ctx, senderID, req.ReceiverID, req.Body, req.ParentID)
	if err != nil {
		respondError(c, err)
		return
	}

	observability.IncMessageCreated()
	h.emitter.Emit(c.Request.Context(), "message.sent", requestIDFromContext(c), gin.H{
		"message_id":  msg.ID,
		"sender_id":   msg.SenderID,
		"receiver_id": msg.ReceiverID,
	})
	c.JSON(http.StatusCreated, msg)
}

// EditMessage handles PUT /messages/:message_id.
func (h *MessageHandler) EditMessage(c *gin.Context) {
	messageID, ok := parseIDParam(c, "message_id")
	if !ok {
		return
	}

	var req struct {
		Body string `json:"body"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	editorID := middleware.UserID(c)
	ctx, cancel := h.opCtx(c)
	defer cancel()

	msg, changed, err := h.messages.EditMessage(ctx, messageID, editorID, req.Body)
	if err != nil {
		respondError(c, err)
		return
	}

	observability.IncMessageEdit(changed)
	if changed {
		h.emitter.Emit(c.Request.Context(), "message.edited", requestIDFromContext(c), gin.H{
			"message_id": msg.ID,
			"edited_by":  editorID,
		})
	}
	c.JSON(http.StatusOK, msg)
}

// GetThread handles GET /messages/:message_id/thread.
func (h *MessageHandler) GetThread(c *gin.Context) {
	messageID, ok := parseIDParam(c, "message_id")
	if !ok {
		return
	}

	ctx, cancel := h.opCtx(c)
	defer cancel()

	thread, err := h.threads.BuildThread(ctx, messageID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

// GetConversation handles GET /conversations/:user_id: top-level messages
// between the caller and the other user, each expanded into its thread.
func (h *MessageHandler) GetConversation(c *gin.Context) {
	otherID, ok := parseIDParam(c, "user_id")
	if !ok {
		return
	}

	userID := middleware.UserID(c)
	ctx, cancel := h.opCtx(c)
	defer cancel()

	conversation, err := h.threads.Conversation(ctx, userID, otherID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conversation})
}

// ListUnread handles GET /messages/unread.
func (h *MessageHandler) ListUnread(c *gin.Context) {
	userID := middleware.UserID(c)

	var afterID int64
	if raw := c.Query("after_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid after_id"})
			return
		}
		afterID = parsed
	}

	var limit int
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	ctx, cancel := h.opCtx(c)
	defer cancel()

	msgs, err := h.messages.ListUnread(ctx, userID, afterID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}

	var nextAfterID int64
	if len(msgs) > 0 {
		nextAfterID = msgs[len(msgs)-1].ID
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs, "next_after_id": nextAfterID})
}

// MarkMessageRead handles POST /messages/:message_id/read.
func (h *MessageHandler) MarkMessageRead(c *gin.Context) {
	messageID, ok := parseIDParam(c, "message_id")
	if !ok {
		return
	}

	userID := middleware.UserID(c)
	ctx, cancel := h.opCtx(c)
	defer cancel()

	if err := h.messages.MarkRead(ctx, messageID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetMessageHistory handles GET /messages/:message_id/history. Only the two
// conversation parties may read it.
func (h *MessageHandler) GetMessageHistory(c *gin.Context) {
	messageID, ok := parseIDParam(c, "message_id")
	if !ok {
		return
	}

	userID := middleware.UserID(c)
	ctx, cancel := h.opCtx(c)
	defer cancel()

	msg, err := h.messages.GetMessage(ctx, messageID)
	if err != nil {
		respondError(c, err)
		return
	}
	if msg.SenderID != userID && msg.ReceiverID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation participant"})
		return
	}

	history, err := h.messages.ListHistory(ctx, messageID)
	if err != nil {
		respondError(c, err)
		return
	}
	if history == nil {
		history = []models.MessageHistory{}
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}
