package Models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Checklist types control how often a template rotates back into the queue.
const (
	ChecklistTypeDaily     = "daily"
	ChecklistTypeWeekly    = "weekly"
	ChecklistTypeQuarterly = "quarterly"
)

// Checklist is a named sanitation template. Filename is the stable key the
// frontend submits back with completed forms. LastAssignedAt drives rotation
// fairness: nil means never assigned or returned to the queue, and it must be
// cleared whenever an assignment referencing this checklist is cancelled.
type Checklist struct {
	ID             string         `json:"id" gorm:"type:uuid;primaryKey"`
	Filename       string         `json:"filename" gorm:"not null;uniqueIndex"`
	Title          string         `json:"title" gorm:"not null"`
	Type           string         `json:"type" gorm:"not null"`
	DisplayOrder   int            `json:"order" gorm:"column:display_order;not null"`
	Items          datatypes.JSON `json:"items,omitempty"`
	LastAssignedAt *time.Time     `json:"lastAssignedAt"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

func (c *Checklist) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
