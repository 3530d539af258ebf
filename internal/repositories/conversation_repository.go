package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"quix-messaging/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository reads the denormalized conversation rows.
type ConversationRepository interface {
	GetConversation(ctx context.Context, groupID int) (models.Conversation, error)
	ListConversations(ctx context.Context, userID int) ([]models.Conversation, error)
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

const conversationColumns = `group_id, participant_ids, last_message_content, last_message_sender_id, last_message_at, created_at, updated_at`

// GetConversation fetches the summary row for a group.
func (r *ConversationRepo) GetConversation(ctx context.Context, groupID int) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv,
		`SELECT `+conversationColumns+` FROM conversations WHERE group_id=$1`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// ListConversations returns inbox rows for the user's active groups, most
// recent activity first.
func (r *ConversationRepo) ListConversations(ctx context.Context, userID int) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := r.db.SelectContext(ctx, &convs,
		`SELECT c.group_id, c.participant_ids, c.last_message_content, c.last_message_sender_id,
                c.last_message_at, c.created_at, c.updated_at
         FROM conversations c
         INNER JOIN group_members gm ON gm.group_id = c.group_id
         WHERE gm.user_id=$1 AND gm.left_at IS NULL
         ORDER BY c.updated_at DESC`, userID)
	return convs, err
}
