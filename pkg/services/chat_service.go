// Package services holds the conversation lifecycle, message dispatch and
// read-state logic shared by the socket and REST transports.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"PitchChat/models"
	"PitchChat/pkg/cache"
	"PitchChat/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// MaxContentLength bounds message content, counted in characters after trim.
const MaxContentLength = 1000

// ChatService is the single implementation of every chat operation.
type ChatService struct {
	db       *gorm.DB
	notify   Notifier
	profiles *cache.Cache
	log      zerolog.Logger
	now      func() time.Time
}

// NewChatService wires the store, notifier and profile cache. A nil notifier
// or cache is allowed.
func NewChatService(db *gorm.DB, notify Notifier, profiles *cache.Cache) *ChatService {
	if notify == nil {
		notify = nopNotifier{}
	}
	return &ChatService{
		db:       db,
		notify:   notify,
		profiles: profiles,
		log:      logger.For("dispatcher"),
		now:      time.Now,
	}
}

// SetNotifier replaces the notifier. The hub and the service reference each
// other, so one side is wired after construction.
func (s *ChatService) SetNotifier(n Notifier) {
	if n == nil {
		n = nopNotifier{}
	}
	s.notify = n
}

// ValidateID rejects ids that are not in the store's id format.
func ValidateID(id, what string) error {
	if _, err := uuid.Parse(id); err != nil {
		return newErr(ErrValidation, "invalid "+what+" id")
	}
	return nil
}

// NormalizeContent trims content and checks its length and type.
func NormalizeContent(content string, msgType models.MessageType) (string, models.MessageType, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", "", newErr(ErrValidation, "message content is required")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return "", "", newErr(ErrValidation, "message content must be at most 1000 characters")
	}
	if msgType == "" {
		msgType = models.MessageText
	}
	if !msgType.Valid() {
		return "", "", newErr(ErrValidation, "messageType must be one of text, image, file")
	}
	return content, msgType, nil
}

// Authorize loads a conversation and checks userID participates in it.
func (s *ChatService) Authorize(ctx context.Context, conversationID, userID string) (*models.Conversation, error) {
	if err := ValidateID(conversationID, "conversation"); err != nil {
		return nil, err
	}
	var conv models.Conversation
	if err := s.db.WithContext(ctx).First(&conv, "id = ?", conversationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newErr(ErrNotFound, "conversation not found")
		}
		return nil, storeErr("load conversation", err)
	}
	if !conv.HasParticipant(userID) {
		return nil, newErr(ErrForbidden, "you are not a participant in this conversation")
	}
	return &conv, nil
}

// Profile resolves the minimal profile of a user through the cache. Unknown
// users resolve to an id-only summary.
func (s *ChatService) Profile(ctx context.Context, userID string) *models.UserSummary {
	if v, ok := s.profiles.Get(userID); ok {
		if p, ok := v.(models.UserSummary); ok {
			return &p
		}
	}
	var u models.User
	if err := s.db.WithContext(ctx).Select("id", "name", "role", "avatar_url").First(&u, "id = ?", userID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warn().Err(err).Str("user_id", userID).Msg("profile lookup failed")
		}
		return &models.UserSummary{ID: userID}
	}
	p := u.Summary()
	s.profiles.Set(userID, p)
	return &p
}
