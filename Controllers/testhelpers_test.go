package Controllers

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"SaniTrack/Models"
)

// newTestDB opens an isolated in-memory database with the full schema,
// including the partial unique index backstopping single-active-assignment.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, Models.Migrate(db))
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, username string, isAdmin bool) *Models.User {
	t.Helper()
	passwordHash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	answerHash, err := bcrypt.GenerateFromPassword([]byte("fluffy"), bcrypt.MinCost)
	require.NoError(t, err)

	user := Models.User{
		Username:            username,
		FirstName:           username,
		LastName:            "Tester",
		PasswordHash:        string(passwordHash),
		SecurityQuestion1ID: 1,
		SecurityAnswer1Hash: string(answerHash),
		SecurityQuestion2ID: 3,
		SecurityAnswer2Hash: string(answerHash),
		IsAdmin:             isAdmin,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func createTestChecklist(t *testing.T, db *gorm.DB, filename, title string, lastAssignedAt *time.Time) *Models.Checklist {
	t.Helper()
	checklist := Models.Checklist{
		Filename:       filename,
		Title:          title,
		Type:           Models.ChecklistTypeDaily,
		DisplayOrder:   1,
		LastAssignedAt: lastAssignedAt,
	}
	require.NoError(t, db.Create(&checklist).Error)
	return &checklist
}

func timePtr(t time.Time) *time.Time { return &t }
