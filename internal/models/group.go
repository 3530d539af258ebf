package models

import "time"

// Member roles.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Group visibility values.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// GroupSettings are per-group behavior switches.
type GroupSettings struct {
	AllowMemberInvites  bool `db:"allow_member_invites" json:"allow_member_invites"`
	ReadReceiptsEnabled bool `db:"read_receipts_enabled" json:"read_receipts_enabled"`
	EditWindowSeconds   int  `db:"edit_window_seconds" json:"edit_window_seconds"`
}

// Group is a named collection of members.
type Group struct {
	ID          int    `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
	CreatorID   int    `db:"creator_id" json:"creator_id"`
	Visibility  string `db:"visibility" json:"visibility"`
	GroupSettings
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	Members []Member `json:"members,omitempty"`
}

// Member is a user's participation record within a group. A departed
// member keeps its row with LeftAt set.
type Member struct {
	GroupID  int        `db:"group_id" json:"group_id"`
	UserID   int        `db:"user_id" json:"user_id"`
	Role     string     `db:"role" json:"role"`
	JoinedAt time.Time  `db:"joined_at" json:"joined_at"`
	LeftAt   *time.Time `db:"left_at" json:"left_at,omitempty"`
}
