package FiberConfig

import (
	"fmt"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/template/html"
	"gorm.io/gorm"

	"SaniTrack/Controllers"
	"SaniTrack/Models"
	"SaniTrack/middleware"
	"SaniTrack/storage"
	"SaniTrack/tokenstore"
)

// SetupRoutes wires every handler onto the app.
func SetupRoutes(app *fiber.App, db *gorm.DB, tokens *tokenstore.Store, store *storage.Store, emailCfg Models.EmailConfig) {
	engine := Controllers.NewAssignmentEngine(db)

	authController := Controllers.NewAuthController(db, engine)
	resetController := Controllers.NewPasswordResetController(db, tokens)
	assignmentController := Controllers.NewAssignmentController(db, engine)
	submissionController := Controllers.NewSubmissionController(db, engine, store, emailCfg)
	validationController := Controllers.NewValidationController(db, store)
	reportController := Controllers.NewReportController(engine)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "healthy",
			"timestamp": time.Now().Format(time.RFC3339),
			"service":   "sanitrack",
		})
	})

	// Auth and account recovery
	auth := app.Group("/api/auth")
	auth.Post("/login", authController.Login)
	auth.Get("/logout", authController.Logout)
	auth.Get("/me", middleware.Verify(false), authController.Me)
	auth.Get("/security-questions", authController.SecurityQuestions)
	auth.Post("/register", middleware.Verify(true), authController.Register)
	auth.Post("/request-password-reset-questions", resetController.RequestQuestions)
	auth.Post("/verify-security-answers", resetController.VerifyAnswers)
	auth.Post("/reset-password", resetController.ResetPassword)

	// Supervisor validation links arrive by email, so no authentication:
	// the single-use check is the gate.
	app.Get("/api/validate/:id", validationController.GetValidationPayload)
	app.Post("/api/validate/:id", validationController.PostValidation)

	// Employee routes
	api := app.Group("/api", middleware.Verify(false))
	api.Post("/submit-form", submissionController.SubmitForm)
	api.Post("/assignments/complete-checklist", submissionController.CompleteChecklist)
	api.Get("/assignments/mine", assignmentController.Mine)
	api.Get("/checklists/view/:id", submissionController.ViewSubmission)

	app.Get("/checklists/view/:id", middleware.Verify(false), submissionController.ViewSubmissionHTML)

	// Admin routes
	admin := app.Group("/api/admin", middleware.Verify(true))
	admin.Post("/assignments/assign", assignmentController.ManualAssign)
	admin.Get("/assignments", assignmentController.List)
	admin.Get("/assignments/export", reportController.ExportAssignments)
	admin.Get("/assignments/submission-data/:filename", submissionController.SubmissionDataByFilename)
	admin.Get("/users/assignable", assignmentController.AssignableUsers)
	admin.Get("/checklists", assignmentController.Checklists)
}

// NewApp builds the Fiber app with views and common middleware.
func NewApp() *fiber.App {
	engine := html.New("./Templates", ".html")
	app := fiber.New(fiber.Config{
		Views: engine,
	})
	app.Use(middleware.RequestLogger())
	app.Use(compress.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: time.Minute,
	}))
	return app
}

// Serve builds the app, wires routes and listens.
func Serve(db *gorm.DB, tokens *tokenstore.Store, store *storage.Store, emailCfg Models.EmailConfig) error {
	app := NewApp()
	SetupRoutes(app, db, tokens, store, emailCfg)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}
	fmt.Println("Server Up...")
	return app.Listen(":" + port)
}
