package services

import (
	"time"

	"PitchChat/models"
)

// Notifier fans room-scoped events out to connected participants. It is
// implemented by the realtime hub; services never see connections.
type Notifier interface {
	NewMessage(msg *models.Message)
	ConversationUpdated(conversationID string, lastMessage *models.Message, lastMessageAt time.Time)
	MessagesRead(conversationID, readBy string, readAt time.Time)
	ConversationDeleted(conversationID string)
}

type nopNotifier struct{}

func (nopNotifier) NewMessage(*models.Message)                             {}
func (nopNotifier) ConversationUpdated(string, *models.Message, time.Time) {}
func (nopNotifier) MessagesRead(string, string, time.Time)                 {}
func (nopNotifier) ConversationDeleted(string)                             {}
