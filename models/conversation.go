package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation is a two-party thread between an investor and an entrepreneur
// about one pitch. At most one row exists per (investor, entrepreneur, pitch).
type Conversation struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	InvestorID     string    `gorm:"size:36;not null;uniqueIndex:idx_conversation_triple,priority:1" json:"investorId"`
	EntrepreneurID string    `gorm:"size:36;not null;uniqueIndex:idx_conversation_triple,priority:2;index" json:"entrepreneurId"`
	PitchID        string    `gorm:"size:36;not null;uniqueIndex:idx_conversation_triple,priority:3" json:"pitchId"`
	LastMessageID  *string   `gorm:"size:36" json:"lastMessageId,omitempty"`
	LastMessageAt  time.Time `gorm:"index" json:"lastMessageAt"`
	IsActive       bool      `gorm:"not null;default:true" json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`

	Investor     *User    `gorm:"foreignKey:InvestorID" json:"investor,omitempty"`
	Entrepreneur *User    `gorm:"foreignKey:EntrepreneurID" json:"entrepreneur,omitempty"`
	Pitch        *Pitch   `gorm:"foreignKey:PitchID" json:"pitch,omitempty"`
	LastMessage  *Message `gorm:"foreignKey:LastMessageID" json:"lastMessage,omitempty"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// HasParticipant reports whether userID is the investor or the entrepreneur.
func (c *Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.InvestorID == userID || c.EntrepreneurID == userID)
}

// OtherParticipant returns the participant that is not userID.
func (c *Conversation) OtherParticipant(userID string) string {
	if c.InvestorID == userID {
		return c.EntrepreneurID
	}
	return c.InvestorID
}
