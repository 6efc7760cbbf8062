package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleInvestor     = "investor"
	RoleEntrepreneur = "entrepreneur"
)

// User mirrors the identity record owned by the account service. Only the
// fields needed to render a participant are kept here.
type User struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:120" json:"name"`
	Email     string    `gorm:"uniqueIndex;size:120;not null" json:"-"`
	Role      string    `gorm:"size:20;not null" json:"role"`
	AvatarURL string    `gorm:"size:500" json:"avatarUrl,omitempty"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// UserSummary is the minimal profile attached to messages and conversations.
type UserSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Role: u.Role, AvatarURL: u.AvatarURL}
}
