package models

import (
	"time"

	"github.com/lib/pq"
)

// Conversation is the denormalized per-group summary row used for inbox
// listings. It is updated in the same transaction as message creation and
// member join, never read back as a source of truth for messages.
type Conversation struct {
	GroupID             int           `db:"group_id" json:"group_id"`
	ParticipantIDs      pq.Int64Array `db:"participant_ids" json:"participant_ids"`
	LastMessageContent  *string       `db:"last_message_content" json:"last_message_content,omitempty"`
	LastMessageSenderID *int          `db:"last_message_sender_id" json:"last_message_sender_id,omitempty"`
	LastMessageAt       *time.Time    `db:"last_message_at" json:"last_message_at,omitempty"`
	CreatedAt           time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time     `db:"updated_at" json:"updated_at"`
}
