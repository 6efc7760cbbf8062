package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PitchStatusDraft     = "draft"
	PitchStatusPublished = "published"
	PitchStatusArchived  = "archived"
)

// Pitch mirrors the pitch record owned by the pitch service.
type Pitch struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	EntrepreneurID string    `gorm:"size:36;not null;index" json:"entrepreneurId"`
	Title          string    `gorm:"size:200" json:"title"`
	Status         string    `gorm:"size:20;not null;default:draft" json:"status"`
	CreatedAt      time.Time `json:"-"`
	UpdatedAt      time.Time `json:"-"`
}

// PitchSummary is the pitch reference rendered in conversation lists.
type PitchSummary struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

func (p *Pitch) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

func (p *Pitch) Summary() PitchSummary {
	return PitchSummary{ID: p.ID, Title: p.Title, Status: p.Status}
}
