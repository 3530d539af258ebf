package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"quix-messaging/internal/presence"
	"quix-messaging/internal/repositories"
)

// PresenceHandler exposes the typing-state read path for clients that poll
// instead of holding a gateway connection.
type PresenceHandler struct {
	groupRepo repositories.GroupRepository
	tracker   presence.Tracker
}

// NewPresenceHandler constructs a PresenceHandler.
func NewPresenceHandler(groupRepo repositories.GroupRepository, tracker presence.Tracker) *PresenceHandler {
	return &PresenceHandler{
		groupRepo: groupRepo,
		tracker:   tracker,
	}
}

// TypingUsers handles GET /groups/:group_id/typing. Stale records are
// already filtered by the tracker.
func (h *PresenceHandler) TypingUsers(c *gin.Context) {
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

	users, err := h.tracker.TypingUsers(c.Request.Context(), groupID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load typing state"})
		return
	}
	if users == nil {
		users = []int{}
	}
	c.JSON(http.StatusOK, gin.H{"group_id": groupID, "typing": users})
}
