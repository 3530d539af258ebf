package models

import "encoding/json"

// Gateway event names.
const (
	EventJoinGroups      = "join_groups"
	EventSendMessage     = "send_message"
	EventTyping          = "typing"
	EventMarkRead        = "mark_read"
	EventNewMessage      = "new_message"
	EventNewMessageNotif = "new_message_notification"
	EventUserTyping      = "user_typing"
	EventMessageRead     = "message_read"
	EventError           = "error"
)

// ClientEvent is the inbound websocket envelope.
type ClientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ServerEvent is the outbound websocket envelope.
type ServerEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// JoinGroupsPayload subscribes the connection to group rooms.
type JoinGroupsPayload struct {
	GroupIDs []int `json:"group_ids"`
}

// SendMessagePayload carries a message send request. ClientRef is an
// optional client-supplied correlation token echoed back in the ack.
type SendMessagePayload struct {
	GroupID   int             `json:"group_id"`
	Content   string          `json:"content"`
	Type      string          `json:"type"`
	Metadata  MessageMetadata `json:"metadata"`
	ClientRef string          `json:"client_ref,omitempty"`
}

// TypingPayload signals a typing transition.
type TypingPayload struct {
	GroupID  int  `json:"group_id"`
	IsTyping bool `json:"is_typing"`
}

// MarkReadPayload marks a single message read.
type MarkReadPayload struct {
	GroupID   int `json:"group_id"`
	MessageID int `json:"message_id"`
}

// NewMessageEvent acknowledges and broadcasts a stored message.
type NewMessageEvent struct {
	Message   *Message `json:"message"`
	ClientRef string   `json:"client_ref,omitempty"`
}

// MessageNotification is the lighter event sent to members' personal rooms
// when they are not attached to the group room.
type MessageNotification struct {
	GroupID   int    `json:"group_id"`
	MessageID int    `json:"message_id"`
	SenderID  int    `json:"sender_id"`
	Preview   string `json:"preview"`
}

// TypingEvent broadcasts a typing transition to a group room.
type TypingEvent struct {
	GroupID  int  `json:"group_id"`
	UserID   int  `json:"user_id"`
	IsTyping bool `json:"is_typing"`
}

// ReadReceiptEvent broadcasts a read receipt to a group room.
type ReadReceiptEvent struct {
	GroupID   int `json:"group_id"`
	MessageID int `json:"message_id"`
	UserID    int `json:"user_id"`
}

// ErrorEvent is sent to the originating connection only.
type ErrorEvent struct {
	Message string `json:"message"`
}
