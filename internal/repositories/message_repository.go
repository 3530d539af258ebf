package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"quix-messaging/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository owns durable message persistence and read tracking.
type MessageRepository interface {
	CreateMessage(ctx context.Context, groupID, senderID int, content, msgType string, metadata models.MessageMetadata) (models.Message, error)
	GetMessages(ctx context.Context, groupID, limit int, before *time.Time, beforeID int) ([]models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	MarkAsRead(ctx context.Context, messageID, userID int) error
	MarkAllAsRead(ctx context.Context, groupID, userID int) error
	SearchMessages(ctx context.Context, groupID int, query string, limit int) ([]models.Message, error)
	GetUnreadCount(ctx context.Context, userID, groupID int) (int, error)
	GetTotalUnreadCount(ctx context.Context, userID int) (int, error)
}

// MessageRepo is a sqlx-backed implementation.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `m.id, m.group_id, m.sender_id, m.content, m.message_type,
    m.file_url, m.file_name, m.file_type, m.file_size, m.created_at, m.updated_at,
    ARRAY(SELECT r.user_id FROM message_reads r WHERE r.message_id = m.id ORDER BY r.read_at) AS read_by`

// CreateMessage persists a message, records the sender's implicit self-read
// and refreshes the conversation snapshot in one transaction.
func (r *MessageRepo) CreateMessage(ctx context.Context, groupID, senderID int, content, msgType string, metadata models.MessageMetadata) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var msg models.Message
	if err = tx.QueryRowxContext(ctx,
		`INSERT INTO messages (group_id, sender_id, content, message_type, file_url, file_name, file_type, file_size)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
         RETURNING id, group_id, sender_id, content, message_type, file_url, file_name, file_type, file_size, created_at, updated_at`,
		groupID, senderID, content, msgType,
		metadata.FileURL, metadata.FileName, metadata.FileType, metadata.FileSize).
		Scan(&msg.ID, &msg.GroupID, &msg.SenderID, &msg.Content, &msg.Type,
			&msg.FileURL, &msg.FileName, &msg.FileType, &msg.FileSize,
			&msg.CreatedAt, &msg.UpdatedAt); err != nil {
		return models.Message{}, err
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO message_reads (message_id, user_id) VALUES ($1, $2)`, msg.ID, senderID); err != nil {
		return models.Message{}, err
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO conversations (group_id, participant_ids, last_message_content, last_message_sender_id, last_message_at)
         VALUES ($1, ARRAY[$2]::int[], $3, $2, $4)
         ON CONFLICT (group_id) DO UPDATE SET
            participant_ids = CASE WHEN $2 = ANY (conversations.participant_ids)
                THEN conversations.participant_ids
                ELSE array_append(conversations.participant_ids, $2) END,
            last_message_content = EXCLUDED.last_message_content,
            last_message_sender_id = EXCLUDED.last_message_sender_id,
            last_message_at = EXCLUDED.last_message_at,
            updated_at = NOW()`,
		groupID, senderID, content, msg.CreatedAt); err != nil {
		return models.Message{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Message{}, err
	}

	msg.ReadBy = []int64{int64(senderID)}
	return msg, nil
}

// GetMessages returns up to limit messages, newest first. The cursor is the
// composite (before, beforeID) matching the (created_at, id) ordering, so a
// page boundary inside a burst of equal timestamps loses nothing; a zero
// beforeID degrades to a plain created_at cut.
func (r *MessageRepo) GetMessages(ctx context.Context, groupID, limit int, before *time.Time, beforeID int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT `+messageColumns+` FROM messages m
         WHERE m.group_id=$1 AND ($2::timestamptz IS NULL OR (m.created_at, m.id) < ($2, $3))
         ORDER BY m.created_at DESC, m.id DESC
         LIMIT $4`, groupID, before, beforeID, limit)
	return msgs, err
}

// GetMessage fetches a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM messages m WHERE m.id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// MarkAsRead adds the user to the message's read-set. Repeat calls are
// no-ops, so the read-set only grows.
func (r *MessageRepo) MarkAsRead(ctx context.Context, messageID, userID int) error {
	var exists bool
	if err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM messages WHERE id=$1)`, messageID); err != nil {
		return err
	}
	if !exists {
		return ErrMessageNotFound
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO message_reads (message_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		messageID, userID)
	return err
}

// MarkAllAsRead marks every message in the group not authored by the user.
func (r *MessageRepo) MarkAllAsRead(ctx context.Context, groupID, userID int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO message_reads (message_id, user_id)
         SELECT id, $2 FROM messages WHERE group_id=$1 AND sender_id<>$2
         ON CONFLICT DO NOTHING`, groupID, userID)
	return err
}

// SearchMessages does a case-insensitive substring match over content.
func (r *MessageRepo) SearchMessages(ctx context.Context, groupID int, query string, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT `+messageColumns+` FROM messages m
         WHERE m.group_id=$1 AND m.content ILIKE '%' || $2 || '%'
         ORDER BY m.created_at DESC, m.id DESC
         LIMIT $3`, groupID, query, limit)
	return msgs, err
}

// GetUnreadCount counts messages in the group authored by someone else and
// not yet read by the user.
func (r *MessageRepo) GetUnreadCount(ctx context.Context, userID, groupID int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM messages m
         WHERE m.group_id=$1 AND m.sender_id<>$2
           AND NOT EXISTS (SELECT 1 FROM message_reads r WHERE r.message_id = m.id AND r.user_id=$2)`,
		groupID, userID)
	return count, err
}

// GetTotalUnreadCount counts unread messages across all the user's active groups.
func (r *MessageRepo) GetTotalUnreadCount(ctx context.Context, userID int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM messages m
         INNER JOIN group_members gm ON gm.group_id = m.group_id AND gm.user_id=$1 AND gm.left_at IS NULL
         WHERE m.sender_id<>$1
           AND NOT EXISTS (SELECT 1 FROM message_reads r WHERE r.message_id = m.id AND r.user_id=$1)`,
		userID)
	return count, err
}
