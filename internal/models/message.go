package models

import (
	"time"

	"github.com/lib/pq"
)

// Message types.
const (
	MessageTypeText  = "text"
	MessageTypeFile  = "file"
	MessageTypeImage = "image"
	MessageTypeMath  = "math"
)

// MessageMetadata carries the attachment fields of file and image messages.
type MessageMetadata struct {
	FileURL  *string `db:"file_url" json:"file_url,omitempty"`
	FileName *string `db:"file_name" json:"file_name,omitempty"`
	FileType *string `db:"file_type" json:"file_type,omitempty"`
	FileSize *int64  `db:"file_size" json:"file_size,omitempty"`
}

// Message is a unit of communication scoped to exactly one group. ReadBy
// only ever grows; the sender is in it from creation.
type Message struct {
	ID       int    `db:"id" json:"id"`
	GroupID  int    `db:"group_id" json:"group_id"`
	SenderID int    `db:"sender_id" json:"sender_id"`
	Content  string `db:"content" json:"content"`
	Type     string `db:"message_type" json:"type"`
	MessageMetadata
	ReadBy    pq.Int64Array `db:"read_by" json:"read_by"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}
