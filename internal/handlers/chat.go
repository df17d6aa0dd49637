package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-backend/internal/apperr"
	"chat-backend/internal/chat"
	"chat-backend/internal/telemetry"
)

// ChatHandler manages the private messaging endpoints.
type ChatHandler struct {
	chat  *chat.Service
	audit *telemetry.AuditEmitter
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chatSvc *chat.Service, audit *telemetry.AuditEmitter) *ChatHandler {
	return &ChatHandler{chat: chatSvc, audit: audit}
}

// ResolveConversation creates or returns the 1:1 conversation with a peer.
func (h *ChatHandler) ResolveConversation(c *gin.Context) {
	var req struct {
		PeerID string `json:"peer_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	conv, err := h.chat.ResolveConversation(c.Request.Context(), userID, req.PeerID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

// ListConversations returns the caller's conversations, most recent first.
func (h *ChatHandler) ListConversations(c *gin.Context) {
	userID := c.GetString("userID")

	convs, err := h.chat.Conversations(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

// SendMessage stores and dispatches a private message.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req struct {
		ReceiverID string `json:"receiver_id" binding:"required"`
		Content    string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	msg, err := h.chat.Send(c.Request.Context(), userID, req.ReceiverID, req.Content)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.emitAudit(c, "INFO", "message sent")
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// GetMessages returns a page of conversation history.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	conversationID, ok := pathID(c, "conversation_id")
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	userID := c.GetString("userID")
	msgs, err := h.chat.Messages(c.Request.Context(), userID, conversationID, page, limit)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// MarkDelivered acknowledges delivery of a single message.
func (h *ChatHandler) MarkDelivered(c *gin.Context) {
	messageID, ok := pathID(c, "message_id")
	if !ok {
		return
	}

	userID := c.GetString("userID")
	msg, err := h.chat.MarkDelivered(c.Request.Context(), userID, messageID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// MarkRead acknowledges that the caller read a single message.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	messageID, ok := pathID(c, "message_id")
	if !ok {
		return
	}

	userID := c.GetString("userID")
	msg, err := h.chat.MarkRead(c.Request.Context(), userID, messageID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// MarkAllRead settles every unread message in a conversation.
func (h *ChatHandler) MarkAllRead(c *gin.Context) {
	conversationID, ok := pathID(c, "conversation_id")
	if !ok {
		return
	}

	userID := c.GetString("userID")
	n, err := h.chat.MarkAllRead(c.Request.Context(), userID, conversationID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"read": n})
}

// BulkDelivered acknowledges delivery for a batch of message ids.
func (h *ChatHandler) BulkDelivered(c *gin.Context) {
	var req struct {
		MessageIDs []int64 `json:"message_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	n, err := h.chat.BulkDelivered(c.Request.Context(), userID, req.MessageIDs)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"delivered": n})
}

// EditMessage replaces the content of a message the caller sent.
func (h *ChatHandler) EditMessage(c *gin.Context) {
	messageID, ok := pathID(c, "message_id")
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	msg, err := h.chat.Edit(c.Request.Context(), userID, messageID, req.Content)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.emitAudit(c, "INFO", "message edited")
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// DeleteMessage soft-deletes a message the caller sent.
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	messageID, ok := pathID(c, "message_id")
	if !ok {
		return
	}

	userID := c.GetString("userID")
	msg, err := h.chat.Delete(c.Request.Context(), userID, messageID)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.emitAudit(c, "INFO", "message deleted")
	c.JSON(http.StatusOK, gin.H{"message": msg.View()})
}

// UnreadCounts returns per-conversation unread totals for the caller.
func (h *ChatHandler) UnreadCounts(c *gin.Context) {
	userID := c.GetString("userID")

	counts, err := h.chat.UnreadCounts(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"unread": counts})
}

func (h *ChatHandler) fail(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.emitAudit(c, "ERROR", "internal error")
	}
	c.JSON(status, gin.H{"error": apperr.Message(err)})
}

func (h *ChatHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}
