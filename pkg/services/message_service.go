package services

import (
	"context"
	"errors"

	"PitchChat/models"
	"PitchChat/pkg/config"

	"gorm.io/gorm"
)

// SendInput is a send-message intent from either transport.
type SendInput struct {
	ConversationID string
	SenderID       string
	Content        string
	MessageType    models.MessageType
}

// SendMessage persists a message, moves the conversation summary to it and
// broadcasts new_message and conversation_updated to the room. The insert and
// the summary update commit together or not at all.
func (s *ChatService) SendMessage(ctx context.Context, in SendInput) (*models.Message, error) {
	if err := ValidateID(in.ConversationID, "conversation"); err != nil {
		return nil, err
	}
	content, msgType, err := NormalizeContent(in.Content, in.MessageType)
	if err != nil {
		return nil, err
	}

	var msg models.Message
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv models.Conversation
		if err := tx.First(&conv, "id = ?", in.ConversationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return newErr(ErrNotFound, "conversation not found")
			}
			return err
		}
		if !conv.HasParticipant(in.SenderID) {
			return newErr(ErrForbidden, "you are not a participant in this conversation")
		}

		msg = models.Message{
			ConversationID: conv.ID,
			SenderID:       in.SenderID,
			ReceiverID:     conv.OtherParticipant(in.SenderID),
			Content:        content,
			MessageType:    msgType,
		}
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		res := tx.Model(&models.Conversation{}).
			Where("id = ?", conv.ID).
			Updates(map[string]any{"last_message_id": msg.ID, "last_message_at": msg.CreatedAt})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return newErr(ErrNotFound, "conversation not found")
		}
		return nil
	})
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			return nil, err
		}
		s.log.Error().Err(err).Str("conversation_id", in.ConversationID).Str("user_id", in.SenderID).Msg("send failed")
		return nil, storeErr("send message", err)
	}

	msg.Sender = s.Profile(ctx, in.SenderID)
	s.notify.NewMessage(&msg)
	s.notify.ConversationUpdated(msg.ConversationID, &msg, msg.CreatedAt)
	return &msg, nil
}

// HistoryPage is one page of a conversation's messages in chronological order.
type HistoryPage struct {
	Messages []models.Message `json:"messages"`
	Page     int              `json:"page"`
	Limit    int              `json:"limit"`
	Total    int64            `json:"total"`
	HasMore  bool             `json:"hasMore"`
}

// History returns page of the conversation, page 1 being the most recent
// limit messages. Fetching history marks the caller's received messages read.
func (s *ChatService) History(ctx context.Context, conversationID, userID string, page, limit int) (*HistoryPage, error) {
	conv, err := s.Authorize(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = config.HistoryDefaultLimit
	}
	if config.HistoryMaxLimit > 0 && limit > config.HistoryMaxLimit {
		limit = config.HistoryMaxLimit
	}
	if limit < 1 {
		limit = 50
	}

	if _, err := s.markRead(ctx, conv.ID, userID, false); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var total int64
	if err := db.Model(&models.Message{}).Where("conversation_id = ?", conv.ID).Count(&total).Error; err != nil {
		return nil, storeErr("count messages", err)
	}
	msgs := []models.Message{}
	err = db.Where("conversation_id = ?", conv.ID).
		Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, storeErr("load messages", err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	senders := map[string]*models.UserSummary{}
	for i := range msgs {
		id := msgs[i].SenderID
		if _, ok := senders[id]; !ok {
			senders[id] = s.Profile(ctx, id)
		}
		msgs[i].Sender = senders[id]
	}

	return &HistoryPage{
		Messages: msgs,
		Page:     page,
		Limit:    limit,
		Total:    total,
		HasMore:  int64(page*limit) < total,
	}, nil
}
