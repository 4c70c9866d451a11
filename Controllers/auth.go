package Controllers

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"SaniTrack/Models"
	"SaniTrack/logger"
	"SaniTrack/middleware"
)

// SecurityQuestion is a predefined recovery question. IDs are stable; user
// rows reference them by ID only.
type SecurityQuestion struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

var securityQuestions = []SecurityQuestion{
	{ID: 1, Text: "What was your first pet's name?"},
	{ID: 2, Text: "What is your mother's maiden name?"},
	{ID: 3, Text: "What was the name of your elementary school?"},
	{ID: 4, Text: "In what city were you born?"},
}

// SecurityQuestionByID looks up a predefined question.
func SecurityQuestionByID(id int) *SecurityQuestion {
	for i := range securityQuestions {
		if securityQuestions[i].ID == id {
			return &securityQuestions[i]
		}
	}
	return nil
}

// NormalizeAnswer canonicalizes a security answer before hashing or
// comparing, so "Fluffy " and "fluffy" match.
func NormalizeAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}

// HashPassword hashes a password for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

// HashAnswer hashes a normalized security answer.
func HashAnswer(answer string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(NormalizeAnswer(answer)), bcrypt.DefaultCost)
	return string(hash), err
}

// CompareAnswer checks a submitted answer against its stored hash.
func CompareAnswer(submitted, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(NormalizeAnswer(submitted))) == nil
}

// GenerateToken issues a one-hour JWT for the user.
func GenerateToken(user *Models.User) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   user.ID,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(middleware.JWTSecret())
}

// AuthController handles login, registration and identity endpoints.
type AuthController struct {
	DB       *gorm.DB
	Engine   *AssignmentEngine
	Validate *validator.Validate
}

// NewAuthController creates a new AuthController
func NewAuthController(db *gorm.DB, engine *AssignmentEngine) *AuthController {
	return &AuthController{DB: db, Engine: engine, Validate: validator.New()}
}

// SecurityQuestions returns the predefined question catalog.
func (a *AuthController) SecurityQuestions(ctx *fiber.Ctx) error {
	return ctx.JSON(securityQuestions)
}

type registerRequest struct {
	Username            string `json:"username" validate:"required,min=3,max=30"`
	Password            string `json:"password" validate:"required,min=8"`
	FirstName           string `json:"firstName" validate:"required"`
	LastName            string `json:"lastName" validate:"required"`
	SecurityQuestion1ID int    `json:"securityQuestion1Id" validate:"required"`
	SecurityAnswer1     string `json:"securityAnswer1" validate:"required"`
	SecurityQuestion2ID int    `json:"securityQuestion2Id" validate:"required"`
	SecurityAnswer2     string `json:"securityAnswer2" validate:"required"`
	IsAdmin             bool   `json:"isAdmin"`
}

// Register creates a new user account. Admin-only: accounts are provisioned
// by supervisors, there is no self-signup.
func (a *AuthController) Register(ctx *fiber.Ctx) error {
	var input registerRequest
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := a.Validate.Struct(input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if input.SecurityQuestion1ID == input.SecurityQuestion2ID {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Security questions must be unique"})
	}
	if SecurityQuestionByID(input.SecurityQuestion1ID) == nil || SecurityQuestionByID(input.SecurityQuestion2ID) == nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid security question ID provided"})
	}
	if NormalizeAnswer(input.SecurityAnswer1) == "" || NormalizeAnswer(input.SecurityAnswer2) == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Two security answers are required"})
	}

	var count int64
	if err := a.DB.Model(&Models.User{}).Where("username = ?", strings.TrimSpace(input.Username)).Count(&count).Error; err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "An error occurred during validation"})
	}
	if count > 0 {
		return ctx.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Username already exists"})
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create user"})
	}
	answer1Hash, err := HashAnswer(input.SecurityAnswer1)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create user"})
	}
	answer2Hash, err := HashAnswer(input.SecurityAnswer2)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create user"})
	}

	user := Models.User{
		Username:            strings.TrimSpace(input.Username),
		FirstName:           strings.TrimSpace(input.FirstName),
		LastName:            strings.TrimSpace(input.LastName),
		PasswordHash:        string(passwordHash),
		SecurityQuestion1ID: input.SecurityQuestion1ID,
		SecurityAnswer1Hash: answer1Hash,
		SecurityQuestion2ID: input.SecurityQuestion2ID,
		SecurityAnswer2Hash: answer2Hash,
		IsAdmin:             input.IsAdmin,
	}
	if err := a.DB.Create(&user).Error; err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create user"})
	}

	logger.Audit.Info("user created",
		zap.String("username", user.Username),
		zap.Bool("isAdmin", user.IsAdmin),
		zap.String("createdBy", middleware.CurrentUser(ctx).Username))

	return ctx.Status(fiber.StatusCreated).JSON(user)
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login verifies credentials, issues a JWT (returned and set as a cookie)
// and runs rotation so the response already carries the user's active
// assignment.
func (a *AuthController) Login(ctx *fiber.Ctx) error {
	var input loginRequest
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := a.Validate.Struct(input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Username and password are required"})
	}

	var user Models.User
	if err := a.DB.First(&user, "username = ?", input.Username).Error; err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid credentials"})
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid credentials"})
	}

	token, err := GenerateToken(&user)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "An error occurred during login"})
	}

	assignment, err := a.Engine.AssignNextChecklist(&user)
	if err != nil {
		// Rotation failure must not block login.
		logger.Error.Error("rotation on login failed",
			zap.String("username", user.Username), zap.Error(err))
	}

	ctx.Cookie(&fiber.Cookie{
		Name:     "jwt",
		Value:    token,
		Expires:  time.Now().Add(time.Hour),
		HTTPOnly: true,
		SameSite: "Lax",
	})

	return ctx.JSON(fiber.Map{
		"message":    "Login successful",
		"token":      token,
		"user":       user,
		"assignment": assignment,
	})
}

// Logout clears the session cookie.
func (a *AuthController) Logout(ctx *fiber.Ctx) error {
	ctx.Cookie(&fiber.Cookie{
		Name:     "jwt",
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
	})
	return ctx.JSON(fiber.Map{"message": "You have successfully logged out"})
}

// Me returns the authenticated user.
func (a *AuthController) Me(ctx *fiber.Ctx) error {
	return ctx.JSON(middleware.CurrentUser(ctx))
}
