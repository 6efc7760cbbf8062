// Package wire defines the realtime event names and payloads shared by the
// server hub and the chat client. Every frame is an Envelope.
package wire

import (
	"encoding/json"
	"time"

	"PitchChat/models"
)

// client -> server
const (
	JoinConversation  = "join_conversation"
	LeaveConversation = "leave_conversation"
	SendMessage       = "send_message"
	MarkAsRead        = "mark_as_read"
	TypingStart       = "typing_start"
	TypingStop        = "typing_stop"
)

// server -> client
const (
	ConversationJoined  = "conversation_joined"
	NewMessage          = "new_message"
	ConversationUpdated = "conversation_updated"
	MessagesRead        = "messages_read"
	ConversationDeleted = "conversation_deleted"
	UserTyping          = "user_typing"
	UserStoppedTyping   = "user_stopped_typing"
	UserOnline          = "user_online"
	UserOffline         = "user_offline"
	UnreadCount         = "unread_count"
	Error               = "error"
)

type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode marshals data into an envelope frame.
func Encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// ConversationRef is the payload of join, leave, mark-as-read, typing and
// the joined/deleted confirmations.
type ConversationRef struct {
	ConversationID string `json:"conversationId"`
}

type SendMessagePayload struct {
	ConversationID string             `json:"conversationId"`
	Content        string             `json:"content"`
	MessageType    models.MessageType `json:"messageType,omitempty"`
}

type NewMessagePayload struct {
	Message        *models.Message `json:"message"`
	ConversationID string          `json:"conversationId"`
}

type ConversationUpdatedPayload struct {
	ConversationID string          `json:"conversationId"`
	LastMessage    *models.Message `json:"lastMessage"`
	LastMessageAt  time.Time       `json:"lastMessageAt"`
}

type MessagesReadPayload struct {
	ConversationID string    `json:"conversationId"`
	ReadBy         string    `json:"readBy"`
	ReadAt         time.Time `json:"readAt"`
}

type TypingPayload struct {
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
}

type PresencePayload struct {
	UserID string `json:"userId"`
}

type UnreadCountPayload struct {
	Count int64 `json:"count"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
