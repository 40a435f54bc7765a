package model

import (
	"strings"
	"time"
)

type MessageType string

const (
	MessageTypeText         MessageType = "text"
	MessageTypeImage        MessageType = "image"
	MessageTypeFile         MessageType = "file"
	MessageTypeProposal     MessageType = "proposal"
	MessageTypeCampaignCard MessageType = "campaign_card"
	MessageTypeProfileCard  MessageType = "profile_card"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile,
		MessageTypeProposal, MessageTypeCampaignCard, MessageTypeProfileCard:
		return true
	}
	return false
}

// MessageTypeForUpload maps an upload content category ("image" or "file",
// as reported by the fileserver) to the message type it produces.
func MessageTypeForUpload(category string) MessageType {
	if category == "image" {
		return MessageTypeImage
	}
	return MessageTypeFile
}

// Message is immutable once created except for the read and delete fields.
// Content is required for every type; for image/file messages it carries the
// file name.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	SenderID       string      `json:"sender_id"`
	SenderType     UserRole    `json:"sender_type"`
	Content        string      `json:"content"`
	MessageType    MessageType `json:"message_type"`
	FileURL        string      `json:"file_url,omitempty"`
	FileName       string      `json:"file_name,omitempty"`
	FileSize       int64       `json:"file_size,omitempty"`
	FileType       string      `json:"file_type,omitempty"`
	IsRead         bool        `json:"is_read"`
	ReadAt         *time.Time  `json:"read_at,omitempty"`
	IsDeleted      bool        `json:"is_deleted"`
	DeletedAt      *time.Time  `json:"deleted_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	Sender         *UserPublic `json:"sender,omitempty"`
}

// NormalizeContent trims surrounding whitespace. An empty result means the
// send must be refused before any store call is made.
func NormalizeContent(content string) string {
	return strings.TrimSpace(content)
}
