package services

import (
	"context"
	"errors"

	"PitchChat/models"

	"gorm.io/gorm"
)

// InitiateInput is an investor's first contact about a pitch.
type InitiateInput struct {
	InvestorID string
	Role       string
	PitchID    string
	Message    string
}

// Initiate creates the conversation for (investor, entrepreneur, pitch) with
// its first message, or returns the existing one. created is false on reuse.
func (s *ChatService) Initiate(ctx context.Context, in InitiateInput) (conv *models.Conversation, created bool, err error) {
	if in.Role != models.RoleInvestor {
		return nil, false, newErr(ErrForbidden, "only investors can start conversations")
	}
	if err := ValidateID(in.PitchID, "pitch"); err != nil {
		return nil, false, err
	}
	content, _, err := NormalizeContent(in.Message, models.MessageText)
	if err != nil {
		return nil, false, err
	}

	db := s.db.WithContext(ctx)
	var pitch models.Pitch
	if err := db.First(&pitch, "id = ?", in.PitchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, newErr(ErrNotFound, "pitch not found")
		}
		return nil, false, storeErr("load pitch", err)
	}
	if pitch.Status != models.PitchStatusPublished {
		return nil, false, newErr(ErrValidation, "pitch is not published")
	}
	if pitch.EntrepreneurID == in.InvestorID {
		return nil, false, newErr(ErrForbidden, "cannot start a conversation with yourself")
	}

	triple := models.Conversation{InvestorID: in.InvestorID, EntrepreneurID: pitch.EntrepreneurID, PitchID: pitch.ID}
	var out models.Conversation
	err = db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where(&triple).First(&out).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		out = triple
		out.IsActive = true
		out.LastMessageAt = s.now()
		if err := tx.Create(&out).Error; err != nil {
			return err
		}
		msg := models.Message{
			ConversationID: out.ID,
			SenderID:       in.InvestorID,
			ReceiverID:     pitch.EntrepreneurID,
			Content:        content,
			MessageType:    models.MessageText,
		}
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		if err := tx.Model(&out).Updates(map[string]any{"last_message_id": msg.ID, "last_message_at": msg.CreatedAt}).Error; err != nil {
			return err
		}
		out.LastMessageID = &msg.ID
		out.LastMessageAt = msg.CreatedAt
		created = true
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// lost the race against a concurrent initiate; the winner's row is committed
		created = false
		err = db.Where(&triple).First(&out).Error
	}
	if err != nil {
		return nil, false, storeErr("initiate conversation", err)
	}

	if created {
		s.log.Info().Str("conversation_id", out.ID).Str("investor_id", in.InvestorID).Str("pitch_id", pitch.ID).Msg("conversation created")
	}
	return &out, created, nil
}

// Get returns one conversation with participant and pitch summaries.
func (s *ChatService) Get(ctx context.Context, conversationID, userID string) (*models.Conversation, error) {
	if _, err := s.Authorize(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	var conv models.Conversation
	if err := s.withSummaries(s.db.WithContext(ctx)).First(&conv, "id = ?", conversationID).Error; err != nil {
		return nil, storeErr("load conversation", err)
	}
	return &conv, nil
}

// List returns the caller's active conversations, most recent first.
func (s *ChatService) List(ctx context.Context, userID string) ([]models.Conversation, error) {
	convs := []models.Conversation{}
	err := s.withSummaries(s.db.WithContext(ctx)).
		Where("(investor_id = ? OR entrepreneur_id = ?) AND is_active = ?", userID, userID, true).
		Order("last_message_at DESC").
		Find(&convs).Error
	if err != nil {
		return nil, storeErr("list conversations", err)
	}
	return convs, nil
}

// Delete removes the conversation and all its messages, then tells the room.
func (s *ChatService) Delete(ctx context.Context, conversationID, userID string) error {
	if _, err := s.Authorize(ctx, conversationID, userID); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", conversationID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", conversationID).Delete(&models.Conversation{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newErr(ErrNotFound, "conversation not found")
		}
		return storeErr("delete conversation", err)
	}
	s.log.Info().Str("conversation_id", conversationID).Str("user_id", userID).Msg("conversation deleted")
	s.notify.ConversationDeleted(conversationID)
	return nil
}

func (s *ChatService) withSummaries(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Investor").
		Preload("Entrepreneur").
		Preload("Pitch").
		Preload("LastMessage")
}
