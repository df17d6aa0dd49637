package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-backend/internal/apperr"
	"chat-backend/internal/groups"
	"chat-backend/internal/telemetry"
)

// GroupHandler manages the group endpoints: governance, invites and
// group messaging.
type GroupHandler struct {
	groups *groups.Service
	audit  *telemetry.AuditEmitter
}

// NewGroupHandler builds a GroupHandler.
func NewGroupHandler(groupSvc *groups.Service, audit *telemetry.AuditEmitter) *GroupHandler {
	return &GroupHandler{groups: groupSvc, audit: audit}
}

// CreateGroup creates a group with the caller as first admin.
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	var req struct {
		Name        string   `json:"name" binding:"required"`
		Description string   `json:"description"`
		MemberIDs   []string `json:"member_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	group, err := h.groups.CreateGroup(c.Request.Context(), userID, req.Name, req.Description, req.MemberIDs)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.emitAudit(c, "INFO", "group created")
	c.JSON(http.StatusCreated, gin.H{"group": group})
}

// GetGroup returns a group the caller belongs to.
func (h *GroupHandler) GetGroup(c *gin.Context) {
	groupID, ok := pathID(c, "group_id")
	if !ok {
		return
	}

	userID := c.GetString("userID")
	group, err := h.groups.Group(c.Request.Context(), userID, groupID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"group": group})
}

// ListGroups returns the caller's groups.
func (h *GroupHandler) ListGroups(c *gin.Context) {
	userID := c.GetString("userID")

	list, err := h.groups.Groups(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"groups": list})
}

// RenameGroup changes the group name. Admin only.
func (h *GroupHandler) RenameGroup(c *gin.Context) {
	groupID, ok := pathID(c, "group_id")
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	group, err := h.groups.Rename(c.Request.Context(), userID, groupID, req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.emitAudit(c, "INFO", "group renamed")
	c.JSON(http.StatusOK, gin.H{"group": group})
}

// ListMembers returns the active members of a group.
func (h *GroupHandler) ListMembers(c *gin.Context) {
	groupID, ok := pathID(c, "group_id")
	if !ok {
		return
	}

	userID := c.GetString("userID")
	members, err := h.groups.Members(c.Request.Context(), userID, groupID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": members})
}

// AddMember adds a user directly to the group. Admin only.
func (h *GroupHandler) AddMember(c *gin.Context) {
	groupID, ok := pathID(c, "group_id")
	if !ok {
		return
	}
	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	if err := h.groups.AddMember(c.Request.Context(), userID, groupID, req.UserID); err != nil {
		h.fail(c, err)
		return
	}

	h.emitAudit(c, "INFO", "member added")
	c.Status(http.StatusNoContent)
}

// RemoveMember removes a user from the group. Admin only.
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	groupID, ok := pathID(c, "group_id")
	if !ok {
		return
	}
	target := c.Param("user_id")

	userID := c.GetString("userID")
	if err := h.groups.RemoveMember(c.Request.Context(), userID, groupID, target); err != nil {
		h.fail(c, err)
		return
	}

	h.emitAudit(c, "INFO", "member removed")
	c.Status(http.StatusNoContent)
}

// PromoteMember raises a member to admin. Admin only.
func (h *GroupHandler) PromoteMember(c *gin.Context) {
	groupID, ok := pathID(c, "group_id")
	if !ok {
		return
	}
	target := c.Param("user_id")

	userID := c.GetString("userID")
	if err := h.groups.Promote(c.Request.Context(), userID, groupID, target); err != nil {
		h.fail(c, err)
		return
	}

	h.emitAudit(c, "INFO", "member promoted")
	c.Status(http.StatusNoContent)
}

// LeaveGroup removes the caller from the group.
func (h *GroupHandler) LeaveGroup(c *gin.Context) {
	groupID, ok := pathID(c, "group_id")
	if !ok {
		return
	}

	userID := c.GetString("userID")
	if err := h.groups.Leave(c.Request.Context(), userID, groupID); err != nil {
		h.fail(c, err)
		return
	}

	h.emitAudit(c, "INFO", "member left group")
	c.Status(http.StatusNoContent)
}

// SendInvite offers group membership to a user. Admin only.
func (h *GroupHandler) SendInvite(c *gin.Context) {
	groupID, ok := pathID(c, "group_id")
	if !ok {
		return
	}
	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	invite, err := h.groups.SendInvite(c.Request.Context(), userID, groupID, req.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.emitAudit(c, "INFO", "invite sent")
	c.JSON(http.StatusCreated, gin.H{"invite": invite})
}

// RespondToInvite accepts or rejects a pending invite.
func (h *GroupHandler) RespondToInvite(c *gin.Context) {
	inviteID, ok := pathID(c, "invite_id")
	if !ok {
		return
	}
	var req struct {
		Accept *bool `json:"accept" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	invite, err := h.groups.RespondToInvite(c.Request.Context(), userID, inviteID, *req.Accept)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.emitAudit(c, "INFO", "invite responded")
	c.JSON(http.StatusOK, gin.H{"invite": invite})
}

// ListInvites returns the caller's invites, pending first.
func (h *GroupHandler) ListInvites(c *gin.Context) {
	userID := c.GetString("userID")

	invites, err := h.groups.Invites(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"invites": invites})
}

// SendGroupMessage stores and fans out a group message.
func (h *GroupHandler) SendGroupMessage(c *gin.Context) {
	groupID, ok := pathID(c, "group_id")
	if !ok {
		return
	}
	var req struct {
		Content       string   `json:"content" binding:"required"`
		TaggedUserIDs []string `json:"tagged_user_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	msg, err := h.groups.SendMessage(c.Request.Context(), userID, groupID, req.Content, req.TaggedUserIDs)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.emitAudit(c, "INFO", "group message sent")
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// GetGroupMessages returns a page of group history.
func (h *GroupHandler) GetGroupMessages(c *gin.Context) {
	groupID, ok := pathID(c, "group_id")
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	userID := c.GetString("userID")
	msgs, err := h.groups.Messages(c.Request.Context(), userID, groupID, page, limit)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// GetTaggedMessages returns group messages tagging the caller.
func (h *GroupHandler) GetTaggedMessages(c *gin.Context) {
	groupID, ok := pathID(c, "group_id")
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	userID := c.GetString("userID")
	msgs, total, err := h.groups.TaggedMessages(c.Request.Context(), userID, groupID, page, limit)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs, "total": total})
}

// DeleteGroupMessage soft-deletes a group message the caller sent.
func (h *GroupHandler) DeleteGroupMessage(c *gin.Context) {
	messageID, ok := pathID(c, "message_id")
	if !ok {
		return
	}

	userID := c.GetString("userID")
	if _, err := h.groups.DeleteMessage(c.Request.Context(), userID, messageID); err != nil {
		h.fail(c, err)
		return
	}

	h.emitAudit(c, "INFO", "group message deleted")
	c.Status(http.StatusNoContent)
}

func (h *GroupHandler) fail(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.emitAudit(c, "ERROR", "internal error")
	}
	c.JSON(status, gin.H{"error": apperr.Message(err)})
}

func (h *GroupHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
