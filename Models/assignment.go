package Models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Assignment statuses. Transitions are one-directional: assigned ->
// completed -> validated, with cancelled reachable from assigned via admin
// override. Rows are never deleted; cancelled rows stay as audit trail.
const (
	StatusAssigned  = "assigned"
	StatusCompleted = "completed"
	StatusValidated = "validated"
	StatusOverdue   = "overdue"
	StatusCancelled = "cancelled"
)

// Validation outcomes recorded by a supervisor.
const (
	ValidationPending  = "pending"
	ValidationApproved = "approved"
	ValidationRejected = "rejected"
)

// Assignment binds one user to one checklist at one point in time.
// AssignedByUserID is nil for automatic rotation and set to the acting admin
// for manual assignments. SubmissionDataFilePath links the row to the JSON
// submission blob once the user completes the checklist.
type Assignment struct {
	ID                     string     `json:"id" gorm:"type:uuid;primaryKey"`
	UserID                 string     `json:"userId" gorm:"type:uuid;not null;index"`
	ChecklistID            string     `json:"checklistId" gorm:"type:uuid;not null;index"`
	Status                 string     `json:"status" gorm:"not null;default:assigned"`
	AssignedAt             time.Time  `json:"assignedAt" gorm:"not null"`
	CompletedAt            *time.Time `json:"completedAt"`
	ValidatedAt            *time.Time `json:"validatedAt"`
	CancelledAt            *time.Time `json:"cancelledAt"`
	ValidationStatus       *string    `json:"validationStatus"`
	SubmissionDataFilePath *string    `json:"submissionDataFilePath" gorm:"index"`
	AssignedByUserID       *string    `json:"assignedByUserId" gorm:"type:uuid"`
	ValidatedByUserID      *string    `json:"validatedByUserId" gorm:"type:uuid"`
	CancelledByUserID      *string    `json:"cancelledByUserId" gorm:"type:uuid"`
	CreatedAt              time.Time  `json:"createdAt"`
	UpdatedAt              time.Time  `json:"updatedAt"`

	User       *User      `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Checklist  *Checklist `json:"checklist,omitempty" gorm:"foreignKey:ChecklistID"`
	AssignedBy *User      `json:"assignedBy,omitempty" gorm:"foreignKey:AssignedByUserID"`
	Validator  *User      `json:"validator,omitempty" gorm:"foreignKey:ValidatedByUserID"`
}

func (a *Assignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.AssignedAt.IsZero() {
		a.AssignedAt = time.Now()
	}
	if a.Status == "" {
		a.Status = StatusAssigned
	}
	return nil
}
