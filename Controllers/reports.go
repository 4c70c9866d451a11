package Controllers

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
)

// ReportController exports assignment history for offline review.
type ReportController struct {
	Engine *AssignmentEngine
}

// NewReportController creates a new ReportController
func NewReportController(engine *AssignmentEngine) *ReportController {
	return &ReportController{Engine: engine}
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}

// ExportAssignments streams an XLSX of the filtered assignment list. Accepts
// the same query filters as the manage view.
func (r *ReportController) ExportAssignments(ctx *fiber.Ctx) error {
	assignments, err := r.Engine.CurrentAssignments(AssignmentFilters{
		UserID:     ctx.Query("userId"),
		Status:     ctx.Query("status"),
		ActiveOnly: ctx.Query("activeOnly") == "true",
		DateFrom:   ctx.Query("dateFrom"),
		DateTo:     ctx.Query("dateTo"),
	})
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to retrieve assignments"})
	}

	file := excelize.NewFile()
	defer file.Close()

	sheet := "Assignments"
	if err := file.SetSheetName("Sheet1", sheet); err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to build report"})
	}

	headers := []string{"Employee", "Username", "Checklist", "Type", "Status",
		"Assigned At", "Completed At", "Validated At", "Validated By", "Assigned By"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = file.SetCellValue(sheet, cell, header)
	}

	for row, assignment := range assignments {
		values := []string{"", "", "", "", assignment.Status,
			assignment.AssignedAt.Format("2006-01-02 15:04"),
			formatTimePtr(assignment.CompletedAt),
			formatTimePtr(assignment.ValidatedAt),
			"", "Rotation"}
		if assignment.User != nil {
			values[0] = assignment.User.FullName()
			values[1] = assignment.User.Username
		}
		if assignment.Checklist != nil {
			values[2] = assignment.Checklist.Title
			values[3] = assignment.Checklist.Type
		}
		if assignment.Validator != nil {
			values[8] = assignment.Validator.FullName()
		}
		if assignment.AssignedBy != nil {
			values[9] = assignment.AssignedBy.FullName()
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = file.SetCellValue(sheet, cell, value)
		}
	}

	buf, err := file.WriteToBuffer()
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to build report"})
	}

	filename := fmt.Sprintf("assignments_%s.xlsx", time.Now().Format("2006-01-02"))
	ctx.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename=%q`, filename))
	ctx.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	return ctx.Send(buf.Bytes())
}
