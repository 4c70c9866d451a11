package Controllers

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"SaniTrack/Models"
	"SaniTrack/email"
	"SaniTrack/logger"
	"SaniTrack/middleware"
	"SaniTrack/storage"
)

// CheckboxItem is one checklist line item inside a submission.
type CheckboxItem struct {
	Checked bool   `json:"checked"`
	Label   string `json:"label"`
}

// SupervisorValidation is the feedback block a supervisor attaches through
// the one-time validation link.
type SupervisorValidation struct {
	SupervisorName      string          `json:"supervisorName"`
	ValidatedAt         string          `json:"validatedAt,omitempty"`
	ValidatedCheckboxes map[string]bool `json:"validatedCheckboxes"`
}

// SubmissionRecord is the persisted form of one completed checklist, stored
// as a single JSON file named by its timestamp token.
type SubmissionRecord struct {
	Title                    string                             `json:"title"`
	Name                     string                             `json:"name"`
	Date                     string                             `json:"date"`
	Checkboxes               map[string]map[string]CheckboxItem `json:"checkboxes"`
	Comments                 string                             `json:"comments"`
	SupervisorEmail          string                             `json:"supervisorEmail"`
	ChecklistFilename        string                             `json:"checklistFilename"`
	UserID                   string                             `json:"userId"`
	RandomCheckboxes         []string                           `json:"randomCheckboxes"`
	ValidationLinkAccessed   bool                               `json:"validationLinkAccessed,omitempty"`
	ValidationLinkAccessedAt string                             `json:"validationLinkAccessedAt,omitempty"`
	SupervisorValidation     *SupervisorValidation              `json:"supervisorValidation,omitempty"`
}

// RandomCheckboxSample picks the item ids the supervisor will be asked to
// re-verify: 20 percent of all checkbox entries (ceiling, at least 1, never
// more than available), chosen by Fisher-Yates shuffle. Ids that collide
// with heading keys are excluded. The sample is computed once at submission
// time and persisted, so it stays stable for the submission's lifetime.
func RandomCheckboxSample(checkboxes map[string]map[string]CheckboxItem) []string {
	var ids []string
	for _, items := range checkboxes {
		for id := range items {
			if _, isHeading := checkboxes[id]; isHeading {
				continue
			}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return []string{}
	}
	sort.Strings(ids) // deterministic base order; map iteration is not

	count := int(math.Ceil(float64(len(ids)) * 0.20))
	if count < 1 {
		count = 1
	}
	if count > len(ids) {
		count = len(ids)
	}

	for i := len(ids) - 1; i > 0; i-- {
		j := rand.Intn(i + 1)
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids[:count]
}

// SubmissionController receives completed checklist forms, persists them and
// drives the completion transition.
type SubmissionController struct {
	DB     *gorm.DB
	Engine *AssignmentEngine
	Store  *storage.Store
	Email  Models.EmailConfig
}

// NewSubmissionController creates a new SubmissionController
func NewSubmissionController(db *gorm.DB, engine *AssignmentEngine, store *storage.Store, emailCfg Models.EmailConfig) *SubmissionController {
	return &SubmissionController{DB: db, Engine: engine, Store: store, Email: emailCfg}
}

// SubmitForm persists a completed checklist submission. The payload is
// written to disk first; only then is the assignment row linked to it, and
// the supervisor notified. Bookkeeping and email failures are logged but
// never reject the submission itself.
func (s *SubmissionController) SubmitForm(ctx *fiber.Ctx) error {
	var form SubmissionRecord
	if err := ctx.BodyParser(&form); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if form.Title == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Page title is missing from the submission."})
	}
	if len(form.Checkboxes) == 0 {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Checkboxes data is missing or invalid."})
	}
	if form.SupervisorEmail == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Supervisor email is required"})
	}

	user := middleware.CurrentUser(ctx)
	if form.UserID == "" {
		form.UserID = user.ID
	}

	// One timestamp token names the file and the emailed validation link.
	fileID := fmt.Sprintf("%d", time.Now().UnixMilli())
	filename := storage.FilenameForID(fileID)

	form.RandomCheckboxes = RandomCheckboxSample(form.Checkboxes)

	if err := s.Store.WriteJSON(filename, &form); err != nil {
		logger.Error.Error("writing submission file", zap.String("filename", filename), zap.Error(err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save submission"})
	}

	s.linkAssignment(&form, filename)

	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}
	checklistURL := fmt.Sprintf("%s/app/validate-checklist/%s", baseURL, fileID)

	emailSent := true
	if err := email.SendValidationRequest(s.Email, form.SupervisorEmail, checklistURL, filename, form.Title); err != nil {
		emailSent = false
		logger.Error.Error("sending supervisor email",
			zap.String("to", form.SupervisorEmail), zap.Error(err))
	}

	return ctx.JSON(fiber.Map{
		"message":   "Form submitted",
		"fileId":    fileID,
		"emailSent": emailSent,
	})
}

// linkAssignment stamps the matching active assignment with the submission
// file path. Best-effort: a miss is logged and the submission stands.
func (s *SubmissionController) linkAssignment(form *SubmissionRecord, filename string) {
	if form.ChecklistFilename == "" || form.UserID == "" {
		logger.System.Warn("submission missing checklist filename or user id, assignment not linked",
			zap.String("filename", filename))
		return
	}

	var checklist Models.Checklist
	if err := s.DB.First(&checklist, "filename = ?", form.ChecklistFilename).Error; err != nil {
		logger.System.Warn("checklist not found for submission",
			zap.String("checklistFilename", form.ChecklistFilename))
		return
	}

	var assignment Models.Assignment
	err := s.DB.
		Where("user_id = ? AND checklist_id = ? AND completed_at IS NULL AND status = ?",
			form.UserID, checklist.ID, Models.StatusAssigned).
		Order("assigned_at DESC").
		First(&assignment).Error
	if err != nil {
		logger.System.Warn("no active assignment found for submission",
			zap.String("userId", form.UserID),
			zap.String("checklistFilename", form.ChecklistFilename))
		return
	}

	if err := s.DB.Model(&assignment).Update("submission_data_file_path", filename).Error; err != nil {
		logger.Error.Error("linking assignment to submission file", zap.Error(err))
		return
	}
	logger.System.Info("assignment linked to submission",
		zap.String("assignmentId", assignment.ID), zap.String("filename", filename))
}

// CompleteChecklist marks the caller's active assignment for the named
// checklist as completed and rotates the next one in.
func (s *SubmissionController) CompleteChecklist(ctx *fiber.Ctx) error {
	var input struct {
		ChecklistFilename string `json:"checklistFilename"`
	}
	if err := ctx.BodyParser(&input); err != nil || input.ChecklistFilename == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Checklist filename is required"})
	}

	user := middleware.CurrentUser(ctx)
	assignment, err := s.Engine.CompleteChecklist(&user, input.ChecklistFilename)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, ErrChecklistNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No active assignment found for this checklist"})
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to complete assignment"})
	}

	return ctx.JSON(fiber.Map{
		"message":      "Assignment marked as completed successfully",
		"assignmentId": assignment.ID,
	})
}

// ViewSubmission returns the raw submission record for an id.
func (s *SubmissionController) ViewSubmission(ctx *fiber.Ctx) error {
	filename := storage.FilenameForID(ctx.Params("id"))
	if !storage.ValidFilename(filename) {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid submission id"})
	}

	var form SubmissionRecord
	if err := s.Store.ReadJSON(filename, &form); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Checklist not found."})
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to read submission"})
	}
	return ctx.JSON(form)
}

// ViewSubmissionHTML renders a submission in a human-readable page.
func (s *SubmissionController) ViewSubmissionHTML(ctx *fiber.Ctx) error {
	fileID := ctx.Params("id")
	filename := storage.FilenameForID(fileID)
	if !storage.ValidFilename(filename) {
		return ctx.Status(fiber.StatusBadRequest).SendString("Invalid submission id")
	}

	var form SubmissionRecord
	if err := s.Store.ReadJSON(filename, &form); err != nil {
		return ctx.Status(fiber.StatusNotFound).SendString("Checklist not found.")
	}
	return ctx.Render("submission_view", fiber.Map{
		"FileID":     fileID,
		"Submission": form,
	})
}

// SubmissionDataByFilename serves a stored submission along with its
// assignment context for the admin manage view.
func (s *SubmissionController) SubmissionDataByFilename(ctx *fiber.Ctx) error {
	filename := ctx.Params("filename")
	if !storage.ValidFilename(filename) {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid submission file format"})
	}

	var assignment Models.Assignment
	err := s.DB.
		Where("submission_data_file_path = ?", filename).
		Preload("User").Preload("Checklist").Preload("Validator").
		First(&assignment).Error
	if err != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Assignment not found for this submission file"})
	}

	var form SubmissionRecord
	if err := s.Store.ReadJSON(filename, &form); err != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Submission data file not found"})
	}

	return ctx.JSON(fiber.Map{
		"assignment":     assignment,
		"submissionData": form,
	})
}
