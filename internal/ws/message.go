package ws

import (
	"time"

	"github.com/sponsorhub/internal/model"
)

type EventType string

const (
	EventNewMessage          EventType = "new_message"
	EventMessageRead         EventType = "message_read"
	EventMessageDeleted      EventType = "message_deleted"
	EventTyping              EventType = "typing"
	EventUserOnline          EventType = "user_online"
	EventUserOffline         EventType = "user_offline"
	EventConversationCreated EventType = "conversation_created"
	EventConversationUpdated EventType = "conversation_updated"
	EventError               EventType = "error"
)

// IncomingMessage is what the client sends to the server.
type IncomingMessage struct {
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Content        string    `json:"content,omitempty"`

	// For file messages
	MessageType model.MessageType `json:"message_type,omitempty"`
	FileURL     string            `json:"file_url,omitempty"`
	FileName    string            `json:"file_name,omitempty"`
	FileSize    int64             `json:"file_size,omitempty"`
	FileType    string            `json:"file_type,omitempty"`

	// For delete
	MessageID string `json:"message_id,omitempty"`

	// For typing
	IsTyping bool `json:"is_typing,omitempty"`
}

// OutgoingMessage is what the server sends to the client.
// Payload uses typed structs to avoid heap-heavy map[string]any.
type OutgoingMessage struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// --- Typed payloads for hot-path (avoid map[string]any allocations) ---

// MessageDeletedPayload is broadcast when a message is soft-deleted.
type MessageDeletedPayload struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
}

// TypingPayload is broadcast to the peer while a user is typing.
type TypingPayload struct {
	ConversationID string         `json:"conversation_id"`
	UserID         string         `json:"user_id"`
	Role           model.UserRole `json:"role"`
	IsTyping       bool           `json:"is_typing"`
}

// MessageReadPayload is broadcast when messages are read.
type MessageReadPayload struct {
	ConversationID string     `json:"conversation_id"`
	UserID         string     `json:"user_id"`
	MessageIDs     []string   `json:"message_ids"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
}

// UserStatusPayload is broadcast for online/offline status.
type UserStatusPayload struct {
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
}

// ConversationStatusPayload is broadcast when a conversation's status,
// archive or block state changes.
type ConversationStatusPayload struct {
	ConversationID string                   `json:"conversation_id"`
	Status         model.ConversationStatus `json:"status"`
	Blocked        bool                     `json:"blocked"`
}
