package Controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"SaniTrack/Models"
	"SaniTrack/logger"
	"SaniTrack/tokenstore"
)

// Throttle policy for the security-answer step: after maxResetAttempts
// failures the account locks for resetLockout, tracked on the User row.
const (
	maxResetAttempts = 5
	resetLockout     = 15 * time.Minute
)

// PasswordResetController implements the three-step recovery flow:
// fetch the user's security questions, verify the answers for a short-lived
// reset token, then redeem the token for a new password.
type PasswordResetController struct {
	DB     *gorm.DB
	Tokens *tokenstore.Store
}

// NewPasswordResetController creates a new PasswordResetController
func NewPasswordResetController(db *gorm.DB, tokens *tokenstore.Store) *PasswordResetController {
	return &PasswordResetController{DB: db, Tokens: tokens}
}

func (p *PasswordResetController) lockedOut(user *Models.User, now time.Time) bool {
	if user.PasswordResetAttemptCount < maxResetAttempts || user.LastPasswordResetAttempt == nil {
		return false
	}
	return now.Sub(*user.LastPasswordResetAttempt) < resetLockout
}

// RequestQuestions returns the user's two security questions. The not-found
// message stays generic so usernames cannot be probed.
func (p *PasswordResetController) RequestQuestions(ctx *fiber.Ctx) error {
	var input struct {
		Username string `json:"username"`
	}
	if err := ctx.BodyParser(&input); err != nil || input.Username == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Username is required."})
	}

	var user Models.User
	if err := p.DB.First(&user, "username = ?", input.Username).Error; err != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "User not found or unable to reset password."})
	}

	q1 := SecurityQuestionByID(user.SecurityQuestion1ID)
	q2 := SecurityQuestionByID(user.SecurityQuestion2ID)
	if q1 == nil || q2 == nil {
		logger.Error.Error("user has invalid security question IDs", zap.String("username", user.Username))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Error retrieving security questions configuration for user."})
	}

	return ctx.JSON(fiber.Map{
		"username": user.Username,
		"questions": []fiber.Map{
			{"questionId": q1.ID, "text": q1.Text},
			{"questionId": q2.ID, "text": q2.Text},
		},
	})
}

type securityAnswer struct {
	QuestionID int    `json:"questionId"`
	Answer     string `json:"answer"`
}

// VerifyAnswers checks both security answers and, on success, issues a
// single-use reset token with a 15-minute TTL. Failed attempts count toward
// the per-account lockout.
func (p *PasswordResetController) VerifyAnswers(ctx *fiber.Ctx) error {
	var input struct {
		Username string           `json:"username"`
		Answers  []securityAnswer `json:"answers"`
	}
	if err := ctx.BodyParser(&input); err != nil || input.Username == "" || len(input.Answers) != 2 {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Username and two answers are required."})
	}

	var user Models.User
	if err := p.DB.First(&user, "username = ?", input.Username).Error; err != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "User not found."})
	}

	now := time.Now()
	if p.lockedOut(&user, now) {
		return ctx.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"message": "Too many attempts. Please try again after 15 minutes."})
	}
	if user.PasswordResetAttemptCount >= maxResetAttempts {
		user.PasswordResetAttemptCount = 0
	}

	// Answers may arrive in either order; match each to the stored hash by
	// question ID.
	answer1Correct := false
	answer2Correct := false
	for _, ans := range input.Answers {
		switch ans.QuestionID {
		case user.SecurityQuestion1ID:
			if CompareAnswer(ans.Answer, user.SecurityAnswer1Hash) {
				answer1Correct = true
			}
		case user.SecurityQuestion2ID:
			if CompareAnswer(ans.Answer, user.SecurityAnswer2Hash) {
				answer2Correct = true
			}
		}
	}

	if !answer1Correct || !answer2Correct {
		user.PasswordResetAttemptCount++
		user.LastPasswordResetAttempt = &now
		if err := p.DB.Model(&user).Updates(map[string]any{
			"password_reset_attempt_count": user.PasswordResetAttemptCount,
			"last_password_reset_attempt":  now,
		}).Error; err != nil {
			logger.Error.Error("recording failed reset attempt", zap.Error(err))
		}
		logger.Audit.Warn("incorrect security answers", zap.String("username", user.Username))
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Incorrect security answers."})
	}

	if err := p.DB.Model(&user).Updates(map[string]any{
		"password_reset_attempt_count": 0,
		"last_password_reset_attempt":  nil,
	}).Error; err != nil {
		logger.Error.Error("resetting attempt counter", zap.Error(err))
	}

	token, err := p.Tokens.Issue(ctx.Context(), user.Username)
	if err != nil {
		logger.Error.Error("issuing reset token", zap.Error(err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "An error occurred."})
	}

	return ctx.JSON(fiber.Map{
		"message":            "Security questions verified.",
		"passwordResetToken": token,
	})
}

// ResetPassword redeems a reset token for a new password. Tokens are single
// use regardless of outcome.
func (p *PasswordResetController) ResetPassword(ctx *fiber.Ctx) error {
	var input struct {
		Username           string `json:"username"`
		PasswordResetToken string `json:"passwordResetToken"`
		NewPassword        string `json:"newPassword"`
	}
	if err := ctx.BodyParser(&input); err != nil || input.Username == "" || input.PasswordResetToken == "" || input.NewPassword == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Username, reset token, and new password are required."})
	}
	if len(input.NewPassword) < 8 {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "New password must be at least 8 characters long."})
	}

	ok, err := p.Tokens.Redeem(ctx.Context(), input.Username, input.PasswordResetToken)
	if err != nil {
		logger.Error.Error("redeeming reset token", zap.Error(err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "An error occurred during password reset."})
	}
	if !ok {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid or expired password reset token."})
	}

	var user Models.User
	if err := p.DB.First(&user, "username = ?", input.Username).Error; err != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "User not found."})
	}

	passwordHash, err := HashPassword(input.NewPassword)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "An error occurred during password reset."})
	}
	if err := p.DB.Model(&user).Updates(map[string]any{
		"password_hash":                passwordHash,
		"password_reset_attempt_count": 0,
		"last_password_reset_attempt":  nil,
	}).Error; err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "An error occurred during password reset."})
	}

	logger.Audit.Info("password reset", zap.String("username", user.Username))
	return ctx.JSON(fiber.Map{"message": "Password has been reset successfully."})
}
