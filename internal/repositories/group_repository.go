package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"quix-messaging/internal/models"
)

var (
	ErrGroupNotFound = errors.New("group not found")
	ErrAlreadyMember = errors.New("user is already a member")
)

// GroupRepository abstracts group identity and membership persistence.
type GroupRepository interface {
	CreateGroup(ctx context.Context, creatorID int, name, description, visibility string, settings models.GroupSettings) (models.Group, error)
	GetGroup(ctx context.Context, groupID int) (models.Group, error)
	AddMember(ctx context.Context, groupID, userID int, role string) error
	RemoveMember(ctx context.Context, groupID, userID int) error
	ListUserGroups(ctx context.Context, userID int) ([]models.Group, error)
	IsMember(ctx context.Context, groupID, userID int) (bool, error)
	ActiveMemberIDs(ctx context.Context, groupID int) ([]int, error)
}

// GroupRepo is a sqlx implementation of GroupRepository.
type GroupRepo struct {
	db *sqlx.DB
}

// NewGroupRepo constructs a GroupRepo.
func NewGroupRepo(db *sqlx.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

const groupColumns = `id, name, description, creator_id, visibility, allow_member_invites, read_receipts_enabled, edit_window_seconds, created_at, updated_at`

// CreateGroup creates a group, its creator admin membership and the
// conversation row atomically.
func (r *GroupRepo) CreateGroup(ctx context.Context, creatorID int, name, description, visibility string, settings models.GroupSettings) (models.Group, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Group{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var group models.Group
	if err = tx.GetContext(ctx, &group,
		`INSERT INTO groups (name, description, creator_id, visibility, allow_member_invites, read_receipts_enabled, edit_window_seconds)
         VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING `+groupColumns,
		name, description, creatorID, visibility,
		settings.AllowMemberInvites, settings.ReadReceiptsEnabled, settings.EditWindowSeconds); err != nil {
		return models.Group{}, err
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO group_members (group_id, user_id, role) VALUES ($1, $2, $3)`,
		group.ID, creatorID, models.RoleAdmin); err != nil {
		return models.Group{}, err
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO conversations (group_id, participant_ids) VALUES ($1, ARRAY[$2]::int[])`,
		group.ID, creatorID); err != nil {
		return models.Group{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Group{}, err
	}

	group.Members = []models.Member{{GroupID: group.ID, UserID: creatorID, Role: models.RoleAdmin, JoinedAt: group.CreatedAt}}
	return group, nil
}

// GetGroup fetches a single group with its member list.
func (r *GroupRepo) GetGroup(ctx context.Context, groupID int) (models.Group, error) {
	var group models.Group
	err := r.db.GetContext(ctx, &group, `SELECT `+groupColumns+` FROM groups WHERE id=$1`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Group{}, ErrGroupNotFound
	}
	if err != nil {
		return models.Group{}, err
	}

	err = r.db.SelectContext(ctx, &group.Members,
		`SELECT group_id, user_id, role, joined_at, left_at FROM group_members WHERE group_id=$1 ORDER BY joined_at ASC`, groupID)
	return group, err
}

// AddMember appends a member record. A departed member rejoins in place;
// a duplicate active membership yields ErrAlreadyMember. The per-group
// conversation participant list and the group's updated timestamp are
// maintained in the same transaction.
func (r *GroupRepo) AddMember(ctx context.Context, groupID, userID int, role string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var exists bool
	if err = tx.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM groups WHERE id=$1)`, groupID); err != nil {
		return err
	}
	if !exists {
		err = ErrGroupNotFound
		return err
	}

	var active bool
	if err = tx.GetContext(ctx, &active,
		`SELECT EXISTS(SELECT 1 FROM group_members WHERE group_id=$1 AND user_id=$2 AND left_at IS NULL)`,
		groupID, userID); err != nil {
		return err
	}
	if active {
		err = ErrAlreadyMember
		return err
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO group_members (group_id, user_id, role) VALUES ($1, $2, $3)
         ON CONFLICT (group_id, user_id) DO UPDATE SET role = EXCLUDED.role, joined_at = NOW(), left_at = NULL`,
		groupID, userID, role); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE conversations SET
            participant_ids = CASE WHEN $2 = ANY (participant_ids) THEN participant_ids ELSE array_append(participant_ids, $2) END,
            updated_at = NOW()
         WHERE group_id=$1`, groupID, userID); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE groups SET updated_at = NOW() WHERE id=$1`, groupID); err != nil {
		return err
	}

	return tx.Commit()
}

// RemoveMember marks the member's departure. Calling it for a user who
// already left (or never joined) is a no-op.
func (r *GroupRepo) RemoveMember(ctx context.Context, groupID, userID int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE group_members SET left_at = NOW() WHERE group_id=$1 AND user_id=$2 AND left_at IS NULL`,
		groupID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil || count == 0 {
		return err
	}
	_, err = r.db.ExecContext(ctx, `UPDATE groups SET updated_at = NOW() WHERE id=$1`, groupID)
	return err
}

// ListUserGroups returns the user's active groups, most recently updated first.
func (r *GroupRepo) ListUserGroups(ctx context.Context, userID int) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.SelectContext(ctx, &groups,
		`SELECT g.id, g.name, g.description, g.creator_id, g.visibility,
                g.allow_member_invites, g.read_receipts_enabled, g.edit_window_seconds,
                g.created_at, g.updated_at
         FROM groups g
         INNER JOIN group_members gm ON gm.group_id = g.id
         WHERE gm.user_id=$1 AND gm.left_at IS NULL
         ORDER BY g.updated_at DESC`, userID)
	return groups, err
}

// IsMember checks active membership.
func (r *GroupRepo) IsMember(ctx context.Context, groupID, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM group_members WHERE group_id=$1 AND user_id=$2 AND left_at IS NULL)`,
		groupID, userID)
	return exists, err
}

// ActiveMemberIDs returns the user ids of all active members, used for
// notification fan-out.
func (r *GroupRepo) ActiveMemberIDs(ctx context.Context, groupID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids,
		`SELECT user_id FROM group_members WHERE group_id=$1 AND left_at IS NULL ORDER BY user_id`, groupID)
	return ids, err
}
