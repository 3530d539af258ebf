package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"quix-messaging/internal/repositories"
)

// ConversationHandler serves the denormalized conversation snapshots that
// back group list screens.
type ConversationHandler struct {
	groupRepo repositories.GroupRepository
	convRepo  repositories.ConversationRepository
}

// NewConversationHandler constructs a ConversationHandler.
func NewConversationHandler(groupRepo repositories.GroupRepository, convRepo repositories.ConversationRepository) *ConversationHandler {
	return &ConversationHandler{
		groupRepo: groupRepo,
		convRepo:  convRepo,
	}
}

// ListConversations handles GET /conversations, most recently active first.
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	userID := c.GetInt("userID")
	convs, err := h.convRepo.ListConversations(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

// GetConversation handles GET /groups/:group_id/conversation.
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	groupID, ok := parseGroupID(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	member, err := h.groupRepo.IsMember(c.Request.Context(), groupID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "membership check failed"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
		return
	}

	conv, err := h.convRepo.GetConversation(c.Request.Context(), groupID)
	if err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
		return
	}
	c.JSON(http.StatusOK, conv)
}
