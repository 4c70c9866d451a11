package Controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"SaniTrack/Models"
	"SaniTrack/logger"
	"SaniTrack/storage"
)

// ValidationController serves the one-time supervisor validation link. The
// routes are unauthenticated: supervisors reach them straight from the
// emailed URL, and the single-use check is the gate.
type ValidationController struct {
	DB    *gorm.DB
	Store *storage.Store
}

// NewValidationController creates a new ValidationController
func NewValidationController(db *gorm.DB, store *storage.Store) *ValidationController {
	return &ValidationController{DB: db, Store: store}
}

// GetValidationPayload hands the supervisor the sampled checkboxes for one
// submission, exactly once. The accessed flag is stamped at read time, not
// write time, so opening the link in a second tab cannot yield two
// independent validation sessions.
func (v *ValidationController) GetValidationPayload(ctx *fiber.Ctx) error {
	fileID := ctx.Params("id")
	filename := storage.FilenameForID(fileID)
	if !storage.ValidFilename(filename) {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid checklist id."})
	}

	var form SubmissionRecord
	if err := v.Store.ReadJSON(filename, &form); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Checklist not found."})
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to read checklist."})
	}

	if form.ValidationLinkAccessed {
		return ctx.Status(fiber.StatusGone).JSON(fiber.Map{
			"message":     "This validation link has already been used and is no longer valid.",
			"alreadyUsed": true,
		})
	}
	if form.SupervisorValidation != nil {
		return ctx.Status(fiber.StatusGone).JSON(fiber.Map{
			"message":          "This checklist has already been validated.",
			"alreadyValidated": true,
			"validatedBy":      form.SupervisorValidation.SupervisorName,
			"validatedAt":      form.SupervisorValidation.ValidatedAt,
		})
	}
	if len(form.RandomCheckboxes) == 0 {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Random checkboxes not found in the checklist data."})
	}

	form.ValidationLinkAccessed = true
	form.ValidationLinkAccessedAt = time.Now().Format(time.RFC3339)
	if err := v.Store.WriteJSON(filename, &form); err != nil {
		logger.Error.Error("stamping validation link access", zap.String("filename", filename), zap.Error(err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to process checklist."})
	}

	return ctx.JSON(fiber.Map{
		"fileId":           fileID,
		"title":            form.Title,
		"checkboxes":       form.Checkboxes,
		"randomCheckboxes": form.RandomCheckboxes,
	})
}

type validatedCheckbox struct {
	ID      string `json:"id"`
	Checked bool   `json:"checked"`
}

type validationSubmission struct {
	SupervisorName      string              `json:"supervisorName"`
	ValidatedCheckboxes []validatedCheckbox `json:"validatedCheckboxes"`
}

// PostValidation applies the supervisor's corrections to the stored
// submission and transitions the linked assignment to validated. Correction
// ids that no longer match any item are logged as warnings, not failed;
// assignment bookkeeping is best-effort and never rejects the validation.
func (v *ValidationController) PostValidation(ctx *fiber.Ctx) error {
	fileID := ctx.Params("id")
	filename := storage.FilenameForID(fileID)
	if !storage.ValidFilename(filename) {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid checklist id."})
	}

	var input validationSubmission
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid validation payload."})
	}

	var form SubmissionRecord
	if err := v.Store.ReadJSON(filename, &form); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Checklist not found."})
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to read checklist."})
	}

	if form.SupervisorValidation != nil {
		return ctx.Status(fiber.StatusGone).JSON(fiber.Map{
			"message":          "This checklist has already been validated.",
			"alreadyValidated": true,
		})
	}

	validated := make(map[string]bool, len(input.ValidatedCheckboxes))
	for _, cb := range input.ValidatedCheckboxes {
		updated := false
		for heading := range form.Checkboxes {
			if item, ok := form.Checkboxes[heading][cb.ID]; ok {
				item.Checked = cb.Checked
				form.Checkboxes[heading][cb.ID] = item
				updated = true
				break
			}
		}
		if !updated {
			logger.System.Warn("validated checkbox id not found in submission",
				zap.String("fileId", fileID), zap.String("checkboxId", cb.ID))
		}
		validated[cb.ID] = cb.Checked
	}

	form.SupervisorValidation = &SupervisorValidation{
		SupervisorName:      input.SupervisorName,
		ValidatedAt:         time.Now().Format(time.RFC3339),
		ValidatedCheckboxes: validated,
	}

	if err := v.Store.WriteJSON(filename, &form); err != nil {
		logger.Error.Error("writing validated submission", zap.String("filename", filename), zap.Error(err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to save validation."})
	}

	v.markAssignmentValidated(filename, input.SupervisorName)

	return ctx.JSON(fiber.Map{"message": "Validation completed successfully."})
}

// markAssignmentValidated cross-references the submission file back to its
// completed assignment and stamps the validated transition. The supervisor
// is resolved by first-name match among admins; a miss leaves the validator
// unset rather than failing the validation.
func (v *ValidationController) markAssignmentValidated(filename, supervisorName string) {
	var assignment Models.Assignment
	err := v.DB.
		Where("submission_data_file_path = ? AND status = ?", filename, Models.StatusCompleted).
		First(&assignment).Error
	if err != nil {
		logger.System.Warn("no completed assignment found for validated submission",
			zap.String("filename", filename))
		return
	}

	var validatedBy *string
	firstName := supervisorName
	if i := strings.IndexByte(supervisorName, ' '); i > 0 {
		firstName = supervisorName[:i]
	}
	var supervisor Models.User
	if err := v.DB.First(&supervisor, "first_name = ? AND is_admin = ?", firstName, true).Error; err == nil {
		validatedBy = &supervisor.ID
	}

	now := time.Now()
	approved := Models.ValidationApproved
	err = v.DB.Model(&assignment).Updates(map[string]any{
		"status":               Models.StatusValidated,
		"validated_at":         now,
		"validated_by_user_id": validatedBy,
		"validation_status":    approved,
	}).Error
	if err != nil {
		logger.Error.Error("marking assignment validated",
			zap.String("assignmentId", assignment.ID), zap.Error(err))
		return
	}

	logger.Audit.Info("assignment validated",
		zap.String("assignmentId", assignment.ID),
		zap.String("supervisor", supervisorName))
}
