package Controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"SaniTrack/Models"
	"SaniTrack/middleware"
)

// AssignmentController exposes the assignment engine over HTTP.
type AssignmentController struct {
	DB     *gorm.DB
	Engine *AssignmentEngine
}

// NewAssignmentController creates a new AssignmentController
func NewAssignmentController(db *gorm.DB, engine *AssignmentEngine) *AssignmentController {
	return &AssignmentController{DB: db, Engine: engine}
}

// Mine returns the caller's current assignment, running rotation if needed.
// Admins always get an empty result.
func (a *AssignmentController) Mine(ctx *fiber.Ctx) error {
	user := middleware.CurrentUser(ctx)
	assignment, err := a.Engine.AssignNextChecklist(&user)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load assignment"})
	}
	return ctx.JSON(fiber.Map{"assignment": assignment})
}

type manualAssignRequest struct {
	UserID           string `json:"userId"`
	ChecklistID      string `json:"checklistId"`
	OverrideExisting bool   `json:"overrideExisting"`
}

// ManualAssign performs an admin-initiated assignment, mapping each engine
// failure to a status code with its structured context.
func (a *AssignmentController) ManualAssign(ctx *fiber.Ctx) error {
	var input manualAssignRequest
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	admin := middleware.CurrentUser(ctx)
	result, err := a.Engine.ManuallyAssignChecklist(ManualAssignOptions{
		UserID:           input.UserID,
		ChecklistID:      input.ChecklistID,
		AdminUserID:      admin.ID,
		OverrideExisting: input.OverrideExisting,
	})
	if err != nil {
		var activeErr *ActiveAssignmentError
		if errors.As(err, &activeErr) {
			return ctx.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":              activeErr.Error(),
				"existingAssignment": activeErr,
			})
		}
		var recentErr *RecentCompletionError
		if errors.As(err, &recentErr) {
			return ctx.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":            recentErr.Error(),
				"recentCompletion": recentErr,
			})
		}
		switch {
		case errors.Is(err, ErrAdminNotFound),
			errors.Is(err, ErrTargetNotFound),
			errors.Is(err, ErrChecklistNotFound):
			return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, ErrNotAdmin), errors.Is(err, ErrTargetIsAdmin):
			return ctx.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, ErrMissingParams),
			errors.Is(err, ErrInvalidUserID),
			errors.Is(err, ErrInvalidChecklist),
			errors.Is(err, ErrInvalidAdminID),
			errors.Is(err, ErrSelfAssignment):
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "An unexpected error occurred while creating the assignment"})
	}

	return ctx.Status(fiber.StatusCreated).JSON(result)
}

// List returns assignments for the admin manage view, honoring the
// userId/status/activeOnly/dateFrom/dateTo query filters.
func (a *AssignmentController) List(ctx *fiber.Ctx) error {
	assignments, err := a.Engine.CurrentAssignments(AssignmentFilters{
		UserID:     ctx.Query("userId"),
		Status:     ctx.Query("status"),
		ActiveOnly: ctx.Query("activeOnly") == "true",
		DateFrom:   ctx.Query("dateFrom"),
		DateTo:     ctx.Query("dateTo"),
	})
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to retrieve assignments"})
	}
	return ctx.JSON(assignments)
}

// AssignableUsers lists users eligible for manual assignment.
func (a *AssignmentController) AssignableUsers(ctx *fiber.Ctx) error {
	users, err := a.Engine.AssignableUsers()
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to retrieve users"})
	}
	return ctx.JSON(users)
}

// Checklists lists checklist templates, optionally filtered by type.
func (a *AssignmentController) Checklists(ctx *fiber.Ctx) error {
	checklistType := ctx.Query("type")
	if checklistType != "" &&
		checklistType != Models.ChecklistTypeDaily &&
		checklistType != Models.ChecklistTypeWeekly &&
		checklistType != Models.ChecklistTypeQuarterly {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid checklist type"})
	}
	checklists, err := a.Engine.AvailableChecklists(checklistType)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to retrieve checklists"})
	}
	return ctx.JSON(checklists)
}
