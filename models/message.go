package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageFile  MessageType = "file"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageFile:
		return true
	}
	return false
}

// Message content is immutable after creation; only IsRead/ReadAt change.
type Message struct {
	ID             string      `gorm:"primaryKey;size:36" json:"id"`
	ConversationID string      `gorm:"size:36;not null;index:idx_messages_conversation_created,priority:1" json:"conversationId"`
	SenderID       string      `gorm:"size:36;not null" json:"senderId"`
	ReceiverID     string      `gorm:"size:36;not null;index:idx_messages_receiver_read,priority:1" json:"receiverId"`
	Content        string      `gorm:"type:text;not null" json:"content"`
	MessageType    MessageType `gorm:"size:10;not null;default:text" json:"messageType"`
	IsRead         bool        `gorm:"not null;default:false;index:idx_messages_receiver_read,priority:2" json:"isRead"`
	ReadAt         *time.Time  `json:"readAt,omitempty"`
	CreatedAt      time.Time   `gorm:"index:idx_messages_conversation_created,priority:2" json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`

	Sender *UserSummary `gorm:"-" json:"sender,omitempty"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.MessageType == "" {
		m.MessageType = MessageText
	}
	return nil
}
