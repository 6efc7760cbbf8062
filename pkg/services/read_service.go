package services

import (
	"context"
	"time"

	"PitchChat/models"
)

// ReadResult describes a mark-as-read pass.
type ReadResult struct {
	ConversationID string    `json:"conversationId"`
	ReadBy         string    `json:"readBy"`
	ReadAt         time.Time `json:"readAt"`
	Marked         int64     `json:"marked"`
	UnreadCount    int64     `json:"unreadCount"`
}

// MarkAsRead flips every unread message addressed to userID in the
// conversation, broadcasts messages_read and returns the caller's new global
// unread count.
func (s *ChatService) MarkAsRead(ctx context.Context, conversationID, userID string) (*ReadResult, error) {
	conv, err := s.Authorize(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	return s.markRead(ctx, conv.ID, userID, true)
}

// MarkAsReadQuietly is the implicit variant used on room join; it only
// broadcasts when something changed.
func (s *ChatService) MarkAsReadQuietly(ctx context.Context, conversationID, userID string) (*ReadResult, error) {
	return s.markRead(ctx, conversationID, userID, false)
}

func (s *ChatService) markRead(ctx context.Context, conversationID, userID string, always bool) (*ReadResult, error) {
	readAt := s.now()
	res := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND receiver_id = ? AND is_read = ?", conversationID, userID, false).
		Updates(map[string]any{"is_read": true, "read_at": readAt})
	if res.Error != nil {
		return nil, storeErr("mark as read", res.Error)
	}

	unread, err := s.UnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if always || res.RowsAffected > 0 {
		s.notify.MessagesRead(conversationID, userID, readAt)
	}
	return &ReadResult{
		ConversationID: conversationID,
		ReadBy:         userID,
		ReadAt:         readAt,
		Marked:         res.RowsAffected,
		UnreadCount:    unread,
	}, nil
}

// UnreadCount counts unread messages addressed to userID across all
// conversations. It is computed on demand, never cached.
func (s *ChatService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("receiver_id = ? AND is_read = ?", userID, false).
		Count(&n).Error
	if err != nil {
		return 0, storeErr("count unread", err)
	}
	return n, nil
}

// ConversationUnread counts unread messages addressed to userID in one conversation.
func (s *ChatService) ConversationUnread(ctx context.Context, conversationID, userID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND receiver_id = ? AND is_read = ?", conversationID, userID, false).
		Count(&n).Error
	if err != nil {
		return 0, storeErr("count unread", err)
	}
	return n, nil
}
