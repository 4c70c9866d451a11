package Controllers

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"SaniTrack/Models"
	"SaniTrack/logger"
)

// Validation and not-found failures of the manual assignment flow. Each one
// short-circuits before any state change.
var (
	ErrMissingParams     = errors.New("userId, checklistId and adminUserId are required")
	ErrInvalidUserID     = errors.New("invalid userId format")
	ErrInvalidChecklist  = errors.New("invalid checklistId format")
	ErrInvalidAdminID    = errors.New("invalid adminUserId format")
	ErrSelfAssignment    = errors.New("administrators cannot assign checklists to themselves")
	ErrAdminNotFound     = errors.New("admin user not found")
	ErrNotAdmin          = errors.New("user does not have admin privileges")
	ErrTargetNotFound    = errors.New("target user not found")
	ErrTargetIsAdmin     = errors.New("cannot assign checklists to admin users")
	ErrChecklistNotFound = errors.New("checklist not found")
)

// ActiveAssignmentError reports that the target already has an active
// assignment. The summary lets the caller decide between waiting and
// retrying with override.
type ActiveAssignmentError struct {
	AssignmentID   string    `json:"id"`
	ChecklistTitle string    `json:"checklistTitle"`
	AssignedAt     time.Time `json:"assignedAt"`
	SameChecklist  bool      `json:"sameChecklist"`
}

func (e *ActiveAssignmentError) Error() string {
	if e.SameChecklist {
		return fmt.Sprintf("user already has this exact checklist assigned: %q. No action needed.", e.ChecklistTitle)
	}
	return fmt.Sprintf("user already has an active assignment: %q. Use override option to replace it.", e.ChecklistTitle)
}

// RecentCompletionError reports that the target completed this checklist
// within the last 24 hours, guarding against re-assignment churn.
type RecentCompletionError struct {
	AssignmentID   string    `json:"id"`
	ChecklistTitle string    `json:"checklistTitle"`
	CompletedAt    time.Time `json:"completedAt"`
}

func (e *RecentCompletionError) Error() string {
	return fmt.Sprintf("user recently completed checklist %q on %s. Consider assigning a different checklist or use override option.",
		e.ChecklistTitle, e.CompletedAt.Format("2006-01-02"))
}

// AssignmentEngine decides which checklist a user receives next and owns
// every Assignment status transition.
type AssignmentEngine struct {
	DB *gorm.DB
}

// NewAssignmentEngine creates a new AssignmentEngine
func NewAssignmentEngine(db *gorm.DB) *AssignmentEngine {
	return &AssignmentEngine{DB: db}
}

// activeAssignment returns the user's current assigned-status row with its
// checklist preloaded, or nil when there is none.
func (e *AssignmentEngine) activeAssignment(userID string) (*Models.Assignment, error) {
	var assignment Models.Assignment
	err := e.DB.
		Where("user_id = ? AND status = ?", userID, Models.StatusAssigned).
		Order("assigned_at DESC").
		Preload("Checklist").
		First(&assignment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

// AssignNextChecklist returns the user's active assignment, creating one via
// rotation if none exists. Admins never receive assignments and repeated
// calls are idempotent: an existing active assignment is returned unchanged.
// A nil, nil result means no checklist is currently eligible, which is a
// valid terminal state.
func (e *AssignmentEngine) AssignNextChecklist(user *Models.User) (*Models.Assignment, error) {
	if user.IsAdmin {
		return nil, nil
	}

	existing, err := e.activeAssignment(user.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	// Fairness policy: never-assigned checklists first, then oldest
	// assignment timestamp. A checklist assigned today is out of rotation
	// until the daily cutoff passes.
	now := time.Now()
	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var checklist Models.Checklist
	err = e.DB.
		Where("type = ? AND (last_assigned_at IS NULL OR last_assigned_at < ?)", Models.ChecklistTypeDaily, startOfToday).
		Order("last_assigned_at IS NULL DESC").
		Order("last_assigned_at ASC").
		First(&checklist).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logger.System.Info("no available checklists to assign", zap.String("username", user.Username))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	assignment := Models.Assignment{
		UserID:      user.ID,
		ChecklistID: checklist.ID,
		Status:      Models.StatusAssigned,
		AssignedAt:  now,
	}

	// Creating the assignment and stamping the checklist must both land or
	// neither: a stamped checklist without an assignment would silently
	// leave the rotation.
	err = e.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&assignment).Error; err != nil {
			return err
		}
		return tx.Model(&Models.Checklist{}).Where("id = ?", checklist.ID).
			Update("last_assigned_at", now).Error
	})
	if err != nil {
		return nil, err
	}

	logger.Audit.Info("assignment created by rotation",
		zap.String("username", user.Username),
		zap.String("checklist", checklist.Title),
		zap.String("assignmentId", assignment.ID))

	assignment.Checklist = &checklist
	return &assignment, nil
}

// ManualAssignOptions are the inputs of an admin-initiated assignment.
type ManualAssignOptions struct {
	UserID           string
	ChecklistID      string
	AdminUserID      string
	OverrideExisting bool
}

// ManualAssignResult is returned on success.
type ManualAssignResult struct {
	Assignment        *Models.Assignment `json:"assignment"`
	Message           string             `json:"message"`
	OverridePerformed bool               `json:"overridePerformed"`
}

// ManuallyAssignChecklist overrides the rotation on behalf of an admin.
// Validation failures return one of the sentinel errors above;
// ActiveAssignmentError and RecentCompletionError carry structured conflict
// context. With OverrideExisting the prior active assignment is cancelled
// (kept as audit trail, never deleted) and its checklist re-queued.
func (e *AssignmentEngine) ManuallyAssignChecklist(opts ManualAssignOptions) (*ManualAssignResult, error) {
	if opts.UserID == "" || opts.ChecklistID == "" || opts.AdminUserID == "" {
		return nil, ErrMissingParams
	}
	if _, err := uuid.Parse(opts.UserID); err != nil {
		return nil, ErrInvalidUserID
	}
	if _, err := uuid.Parse(opts.ChecklistID); err != nil {
		return nil, ErrInvalidChecklist
	}
	if _, err := uuid.Parse(opts.AdminUserID); err != nil {
		return nil, ErrInvalidAdminID
	}
	if opts.UserID == opts.AdminUserID {
		return nil, ErrSelfAssignment
	}

	var admin Models.User
	if err := e.DB.First(&admin, "id = ?", opts.AdminUserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAdminNotFound
		}
		return nil, err
	}
	if !admin.IsAdmin {
		return nil, ErrNotAdmin
	}

	var target Models.User
	if err := e.DB.First(&target, "id = ?", opts.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTargetNotFound
		}
		return nil, err
	}
	if target.IsAdmin {
		return nil, ErrTargetIsAdmin
	}

	var checklist Models.Checklist
	if err := e.DB.First(&checklist, "id = ?", opts.ChecklistID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChecklistNotFound
		}
		return nil, err
	}

	existing, err := e.activeAssignment(target.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil && !opts.OverrideExisting {
		return nil, &ActiveAssignmentError{
			AssignmentID:   existing.ID,
			ChecklistTitle: existing.Checklist.Title,
			AssignedAt:     existing.AssignedAt,
			SameChecklist:  existing.ChecklistID == opts.ChecklistID,
		}
	}

	if !opts.OverrideExisting {
		var recent Models.Assignment
		err := e.DB.
			Where("user_id = ? AND checklist_id = ? AND status = ? AND completed_at >= ?",
				target.ID, checklist.ID, Models.StatusCompleted, time.Now().Add(-24*time.Hour)).
			First(&recent).Error
		if err == nil {
			return nil, &RecentCompletionError{
				AssignmentID:   recent.ID,
				ChecklistTitle: checklist.Title,
				CompletedAt:    *recent.CompletedAt,
			}
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	now := time.Now()
	assignment := Models.Assignment{
		UserID:           target.ID,
		ChecklistID:      checklist.ID,
		Status:           Models.StatusAssigned,
		AssignedAt:       now,
		AssignedByUserID: &admin.ID,
	}

	err = e.DB.Transaction(func(tx *gorm.DB) error {
		if existing != nil {
			if err := tx.Model(&Models.Assignment{}).Where("id = ?", existing.ID).Updates(map[string]any{
				"status":               Models.StatusCancelled,
				"cancelled_at":         now,
				"cancelled_by_user_id": admin.ID,
			}).Error; err != nil {
				return err
			}
			// Re-queue: the cancelled checklist becomes eligible for
			// rotation again.
			if err := tx.Model(&Models.Checklist{}).Where("id = ?", existing.ChecklistID).
				Update("last_assigned_at", nil).Error; err != nil {
				return err
			}
		}
		if err := tx.Create(&assignment).Error; err != nil {
			return err
		}
		return tx.Model(&Models.Checklist{}).Where("id = ?", checklist.ID).
			Update("last_assigned_at", now).Error
	})
	if err != nil {
		return nil, err
	}

	if existing != nil {
		logger.Audit.Info("existing assignment cancelled by override",
			zap.String("admin", admin.Username),
			zap.String("user", target.Username),
			zap.String("assignmentId", existing.ID))
	}
	logger.Audit.Info("manual assignment created",
		zap.String("admin", admin.Username),
		zap.String("user", target.Username),
		zap.String("checklist", checklist.Title),
		zap.String("assignmentId", assignment.ID))

	var complete Models.Assignment
	if err := e.DB.
		Preload("User").Preload("Checklist").Preload("Validator").Preload("AssignedBy").
		First(&complete, "id = ?", assignment.ID).Error; err != nil {
		return nil, err
	}

	return &ManualAssignResult{
		Assignment:        &complete,
		Message:           fmt.Sprintf("Successfully assigned %q to %s", checklist.Title, target.FullName()),
		OverridePerformed: existing != nil,
	}, nil
}

// CompleteChecklist transitions the user's active assignment for the named
// checklist to completed and immediately runs rotation so the next login
// already has a fresh assignment waiting. Returns the completed assignment.
func (e *AssignmentEngine) CompleteChecklist(user *Models.User, checklistFilename string) (*Models.Assignment, error) {
	var checklist Models.Checklist
	if err := e.DB.First(&checklist, "filename = ?", checklistFilename).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChecklistNotFound
		}
		return nil, err
	}

	var assignment Models.Assignment
	err := e.DB.
		Where("user_id = ? AND checklist_id = ? AND completed_at IS NULL AND status = ?",
			user.ID, checklist.ID, Models.StatusAssigned).
		Order("assigned_at DESC").
		First(&assignment).Error
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := e.DB.Model(&assignment).Updates(map[string]any{
		"status":       Models.StatusCompleted,
		"completed_at": now,
	}).Error; err != nil {
		return nil, err
	}

	logger.Audit.Info("assignment completed",
		zap.String("username", user.Username),
		zap.String("assignmentId", assignment.ID))

	// Rotation feeding off completion is best-effort bookkeeping: its
	// failure never undoes the completion itself.
	if _, err := e.AssignNextChecklist(user); err != nil {
		logger.Error.Error("rotation after completion failed",
			zap.String("username", user.Username), zap.Error(err))
	}

	return &assignment, nil
}

// AssignmentFilters narrows the admin assignment listing.
type AssignmentFilters struct {
	UserID     string
	Status     string
	ActiveOnly bool
	DateFrom   string // YYYY-MM-DD, inclusive start of day
	DateTo     string // YYYY-MM-DD, inclusive end of day
}

// CurrentAssignments lists assignments with all associations preloaded.
// Rows belonging to admin users are excluded.
func (e *AssignmentEngine) CurrentAssignments(filters AssignmentFilters) ([]Models.Assignment, error) {
	query := e.DB.
		Joins("JOIN users ON users.id = assignments.user_id AND users.is_admin = ?", false).
		Preload("User").Preload("Checklist").Preload("Validator").Preload("AssignedBy").
		Order("assigned_at DESC")

	if filters.UserID != "" {
		query = query.Where("assignments.user_id = ?", filters.UserID)
	}
	if filters.Status != "" {
		query = query.Where("assignments.status = ?", filters.Status)
	}
	if filters.ActiveOnly {
		query = query.Where("assignments.status = ?", Models.StatusAssigned)
	}
	if filters.DateFrom != "" {
		from, err := time.ParseInLocation("2006-01-02", filters.DateFrom, time.Local)
		if err == nil {
			query = query.Where("assignments.assigned_at >= ?", from)
		}
	}
	if filters.DateTo != "" {
		to, err := time.ParseInLocation("2006-01-02", filters.DateTo, time.Local)
		if err == nil {
			query = query.Where("assignments.assigned_at <= ?", to.Add(24*time.Hour-time.Millisecond))
		}
	}

	var assignments []Models.Assignment
	if err := query.Find(&assignments).Error; err != nil {
		return nil, err
	}
	return assignments, nil
}

// AssignableUsers lists every non-admin user, ordered by name.
func (e *AssignmentEngine) AssignableUsers() ([]Models.User, error) {
	var users []Models.User
	err := e.DB.
		Where("is_admin = ?", false).
		Order("first_name ASC").Order("last_name ASC").
		Find(&users).Error
	return users, err
}

// AvailableChecklists lists checklist templates, optionally filtered by
// type, in display order.
func (e *AssignmentEngine) AvailableChecklists(checklistType string) ([]Models.Checklist, error) {
	query := e.DB.Order("type ASC").Order("display_order ASC")
	if checklistType != "" {
		query = query.Where("type = ?", checklistType)
	}
	var checklists []Models.Checklist
	err := query.Find(&checklists).Error
	return checklists, err
}
