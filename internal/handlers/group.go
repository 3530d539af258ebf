package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"quix-messaging/internal/models"
	"quix-messaging/internal/repositories"
	"quix-messaging/internal/telemetry"
)

// GroupHandler manages the group directory endpoints.
type GroupHandler struct {
	groupRepo repositories.GroupRepository
	audit     *telemetry.AuditEmitter
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(groupRepo repositories.GroupRepository, audit *telemetry.AuditEmitter) *GroupHandler {
	return &GroupHandler{
		groupRepo: groupRepo,
		audit:     audit,
	}
}

// CreateGroup handles POST /groups. The creator becomes the group's first
// admin member and the conversation row is seeded in the same transaction.
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	userID := c.GetInt("userID")

	var req struct {
		Name        string               `json:"name" binding:"required"`
		Description string               `json:"description"`
		Visibility  string               `json:"visibility"`
		Settings    models.GroupSettings `json:"settings"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Visibility == "" {
		req.Visibility = models.VisibilityPrivate
	}
	if req.Visibility != models.VisibilityPublic && req.Visibility != models.VisibilityPrivate {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid visibility"})
		return
	}

	group, err := h.groupRepo.CreateGroup(c.Request.Context(), userID, req.Name, req.Description, req.Visibility, req.Settings)
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create group"})
		return
	}

	h.emitAudit(c, "INFO", "Group created")
	c.JSON(http.StatusCreated, group)
}

// ListGroups returns the caller's active groups, most recently updated first.
func (h *GroupHandler) ListGroups(c *gin.Context) {
	userID := c.GetInt("userID")
	groups, err := h.groupRepo.ListUserGroups(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load groups"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// GetGroup returns a single group with its member list. Private groups are
// visible to active members only and answer 404 to everyone else.
func (h *GroupHandler) GetGroup(c *gin.Context) {
	groupID, ok := parseGroupID(c)
	if !ok {
		return
	}

	group, err := h.groupRepo.GetGroup(c.Request.Context(), groupID)
	if err != nil {
		if errors.Is(err, repositories.ErrGroupNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
			return
		}
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load group"})
		return
	}

	if group.Visibility == models.VisibilityPrivate {
		userID := c.GetInt("userID")
		member, err := h.groupRepo.IsMember(c.Request.Context(), groupID, userID)
		if err != nil {
			h.emitAudit(c, "ERROR", "internal error")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "membership check failed"})
			return
		}
		if !member {
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
			return
		}
	}

	c.JSON(http.StatusOK, group)
}

// AddMember handles POST /groups/:group_id/members. Re-adding an active
// member answers 409; a departed member rejoins with a fresh joined
// timestamp.
func (h *GroupHandler) AddMember(c *gin.Context) {
	groupID, ok := parseGroupID(c)
	if !ok {
		return
	}

	var req struct {
		UserID int    `json:"user_id" binding:"required"`
		Role   string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Role == "" {
		req.Role = models.RoleMember
	}
	if req.Role != models.RoleAdmin && req.Role != models.RoleMember {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
		return
	}

	userID := c.GetInt("userID")
	group, err := h.groupRepo.GetGroup(c.Request.Context(), groupID)
	if err != nil {
		if errors.Is(err, repositories.ErrGroupNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
			return
		}
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load group"})
		return
	}
	if !canInvite(group, userID) {
		h.emitAudit(c, "ERROR", "not allowed")
		c.JSON(http.StatusForbidden, gin.H{"error": "not allowed to add members"})
		return
	}

	if err := h.groupRepo.AddMember(c.Request.Context(), groupID, req.UserID, req.Role); err != nil {
		switch {
		case errors.Is(err, repositories.ErrAlreadyMember):
			c.JSON(http.StatusConflict, gin.H{"error": "already a member"})
		case errors.Is(err, repositories.ErrGroupNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		default:
			h.emitAudit(c, "ERROR", "internal error")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not add member"})
		}
		return
	}

	h.emitAudit(c, "INFO", "Member added")
	c.Status(http.StatusCreated)
}

// RemoveMember handles DELETE /groups/:group_id/members/:user_id. The leave
// is soft and idempotent: removing an already departed or unknown member
// still answers 204.
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	groupID, ok := parseGroupID(c)
	if !ok {
		return
	}
	targetID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	userID := c.GetInt("userID")
	if targetID != userID {
		group, err := h.groupRepo.GetGroup(c.Request.Context(), groupID)
		if err != nil {
			if errors.Is(err, repositories.ErrGroupNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
				return
			}
			h.emitAudit(c, "ERROR", "internal error")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load group"})
			return
		}
		if !isAdmin(group, userID) {
			h.emitAudit(c, "ERROR", "not allowed")
			c.JSON(http.StatusForbidden, gin.H{"error": "only admins may remove other members"})
			return
		}
	}

	if err := h.groupRepo.RemoveMember(c.Request.Context(), groupID, targetID); err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not remove member"})
		return
	}

	h.emitAudit(c, "INFO", "Member removed")
	c.Status(http.StatusNoContent)
}

// canInvite reports whether the user may add members: active admins always
// can, active members only when member invites are enabled.
func canInvite(group models.Group, userID int) bool {
	for _, m := range group.Members {
		if m.UserID != userID || m.LeftAt != nil {
			continue
		}
		return m.Role == models.RoleAdmin || group.AllowMemberInvites
	}
	return false
}

func isAdmin(group models.Group, userID int) bool {
	for _, m := range group.Members {
		if m.UserID == userID && m.LeftAt == nil && m.Role == models.RoleAdmin {
			return true
		}
	}
	return false
}

func (h *GroupHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}

func parseGroupID(c *gin.Context) (int, bool) {
	groupID, err := strconv.Atoi(c.Param("group_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return 0, false
	}
	return groupID, true
}
