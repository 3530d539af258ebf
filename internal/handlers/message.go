package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"quix-messaging/internal/bridge"
	"quix-messaging/internal/models"
	"quix-messaging/internal/repositories"
	"quix-messaging/internal/telemetry"
	"quix-messaging/internal/ws"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// MessageHandler manages the message store endpoints. Writes go through the
// same broadcast path as the websocket gateway so REST-originated messages
// reach connected clients too.
type MessageHandler struct {
	groupRepo   repositories.GroupRepository
	messageRepo repositories.MessageRepository
	hub         *ws.Hub
	bridge      bridge.Bridge
	audit       *telemetry.AuditEmitter
}

// NewMessageHandler constructs a MessageHandler.
func NewMessageHandler(groupRepo repositories.GroupRepository, messageRepo repositories.MessageRepository, hub *ws.Hub, fanout bridge.Bridge, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{
		groupRepo:   groupRepo,
		messageRepo: messageRepo,
		hub:         hub,
		bridge:      fanout,
		audit:       audit,
	}
}

// GetMessages handles GET /groups/:group_id/messages. Pagination walks
// backwards: pass the oldest message's created_at and id from the previous
// page as `before` / `before_id`.
func (h *MessageHandler) GetMessages(c *gin.Context) {
	groupID, ok := parseGroupID(c)
	if !ok {
		return
	}
	if !h.requireMember(c, groupID) {
		return
	}

	limit := parseLimit(c, defaultPageSize)
	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before timestamp"})
			return
		}
		before = &parsed
	}
	beforeID := 0
	if raw := c.Query("before_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before_id"})
			return
		}
		beforeID = id
	}

	msgs, err := h.messageRepo.GetMessages(c.Request.Context(), groupID, limit, before, beforeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage handles POST /groups/:group_id/messages.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	groupID, ok := parseGroupID(c)
	if !ok {
		return
	}
	if !h.requireMember(c, groupID) {
		return
	}

	var req struct {
		Content  string                 `json:"content" binding:"required"`
		Type     string                 `json:"type"`
		Metadata models.MessageMetadata `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Type == "" {
		req.Type = models.MessageTypeText
	}

	userID := c.GetInt("userID")
	msg, err := h.messageRepo.CreateMessage(c.Request.Context(), groupID, userID, req.Content, req.Type, req.Metadata)
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	h.bridge.PublishMessage(c.Request.Context(), msg)
	h.hub.BroadcastToGroup(groupID, models.ServerEvent{
		Event: models.EventNewMessage,
		Data:  models.NewMessageEvent{Message: &msg},
	}, nil)
	h.notifyAbsentMembers(c, msg)

	h.emitAudit(c, "INFO", "Message sent")
	c.JSON(http.StatusCreated, msg)
}

// SearchMessages handles GET /groups/:group_id/messages/search.
func (h *MessageHandler) SearchMessages(c *gin.Context) {
	groupID, ok := parseGroupID(c)
	if !ok {
		return
	}
	if !h.requireMember(c, groupID) {
		return
	}

	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query"})
		return
	}

	msgs, err := h.messageRepo.SearchMessages(c.Request.Context(), groupID, query, parseLimit(c, defaultPageSize))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// MarkRead handles POST /messages/:message_id/read. The read-set only ever
// grows: repeated calls are accepted and answer 200.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	messageID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	msg, err := h.messageRepo.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
			return
		}
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load message"})
		return
	}
	if !h.requireMember(c, msg.GroupID) {
		return
	}

	userID := c.GetInt("userID")
	if err := h.messageRepo.MarkAsRead(c.Request.Context(), messageID, userID); err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not mark read"})
		return
	}

	h.hub.BroadcastToGroup(msg.GroupID, models.ServerEvent{
		Event: models.EventMessageRead,
		Data:  models.ReadReceiptEvent{GroupID: msg.GroupID, MessageID: messageID, UserID: userID},
	}, nil)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// MarkAllRead handles POST /groups/:group_id/read-all.
func (h *MessageHandler) MarkAllRead(c *gin.Context) {
	groupID, ok := parseGroupID(c)
	if !ok {
		return
	}
	if !h.requireMember(c, groupID) {
		return
	}

	userID := c.GetInt("userID")
	if err := h.messageRepo.MarkAllAsRead(c.Request.Context(), groupID, userID); err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not mark all read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// UnreadCount handles GET /groups/:group_id/unread.
func (h *MessageHandler) UnreadCount(c *gin.Context) {
	groupID, ok := parseGroupID(c)
	if !ok {
		return
	}
	if !h.requireMember(c, groupID) {
		return
	}

	count, err := h.messageRepo.GetUnreadCount(c.Request.Context(), c.GetInt("userID"), groupID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count unread"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"group_id": groupID, "unread": count})
}

// TotalUnread handles GET /unread, the caller's unread total across all
// active groups.
func (h *MessageHandler) TotalUnread(c *gin.Context) {
	count, err := h.messageRepo.GetTotalUnreadCount(c.Request.Context(), c.GetInt("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count unread"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

// notifyAbsentMembers mirrors the gateway's fan-out: members without a
// connection in the group room get the lighter notification event.
func (h *MessageHandler) notifyAbsentMembers(c *gin.Context, msg models.Message) {
	memberIDs, err := h.groupRepo.ActiveMemberIDs(c.Request.Context(), msg.GroupID)
	if err != nil {
		return
	}

	viewing := h.hub.UsersInGroupRoom(msg.GroupID)
	notification := models.ServerEvent{
		Event: models.EventNewMessageNotif,
		Data: models.MessageNotification{
			GroupID:   msg.GroupID,
			MessageID: msg.ID,
			SenderID:  msg.SenderID,
			Preview:   messagePreview(msg.Content),
		},
	}
	for _, memberID := range memberIDs {
		if memberID == msg.SenderID || viewing[memberID] {
			continue
		}
		h.hub.SendToUser(memberID, notification)
	}
}

// requireMember answers 403 and reports false when the caller is not an
// active member of the group.
func (h *MessageHandler) requireMember(c *gin.Context, groupID int) bool {
	userID := c.GetInt("userID")
	member, err := h.groupRepo.IsMember(c.Request.Context(), groupID, userID)
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "membership check failed"})
		return false
	}
	if !member {
		h.emitAudit(c, "ERROR", "not allowed")
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
		return false
	}
	return true
}

func (h *MessageHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}

func parseLimit(c *gin.Context, fallback int) int {
	raw := c.Query("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

func messagePreview(content string) string {
	const max = 80
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max])
}
