package Models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an employee or administrator account. Admins supervise and
// validate checklists; they never receive assignments themselves.
type User struct {
	ID                        string     `json:"id" gorm:"type:uuid;primaryKey"`
	Username                  string     `json:"username" gorm:"not null;uniqueIndex"`
	FirstName                 string     `json:"firstName" gorm:"not null"`
	LastName                  string     `json:"lastName" gorm:"not null"`
	PasswordHash              string     `json:"-" gorm:"not null"`
	SecurityQuestion1ID       int        `json:"-" gorm:"not null"`
	SecurityAnswer1Hash       string     `json:"-" gorm:"not null"`
	SecurityQuestion2ID       int        `json:"-" gorm:"not null"`
	SecurityAnswer2Hash       string     `json:"-" gorm:"not null"`
	PasswordResetAttemptCount int        `json:"-" gorm:"not null;default:0"`
	LastPasswordResetAttempt  *time.Time `json:"-"`
	IsAdmin                   bool       `json:"isAdmin" gorm:"not null;default:false"`
	CreatedAt                 time.Time  `json:"createdAt"`
	UpdatedAt                 time.Time  `json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// FullName is used in confirmation messages and report rows.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}
