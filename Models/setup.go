package Models

import (
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"SaniTrack/logger"
)

var DB *gorm.DB

// Connect opens the database, runs migrations and seeds the initial admin
// account. The DB_PATH env var overrides the default sqlite file.
func Connect() error {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "database.db"
	}

	connection, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		return err
	}
	DB = connection

	if err := Migrate(DB); err != nil {
		return err
	}
	seedInitialAdmin(DB)
	seedChecklists(DB)
	return nil
}

// Migrate creates the schema plus the partial unique index that backstops
// the one-active-assignment-per-user invariant at the database level.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&User{}, &Checklist{}, &Assignment{}); err != nil {
		return err
	}
	return db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_assignments_one_active_per_user
		 ON assignments (user_id) WHERE status = 'assigned'`,
	).Error
}

// seedInitialAdmin creates the bootstrap admin account unless one with the
// configured username already exists. Failures are logged, not fatal: an
// operator can still create the admin through the admin API.
func seedInitialAdmin(db *gorm.DB) {
	username := os.Getenv("INITIAL_ADMIN_USERNAME")
	if username == "" {
		username = "admin"
	}
	password := os.Getenv("INITIAL_ADMIN_PASSWORD")
	if password == "" {
		password = "password123"
		logger.System.Warn("initial admin password left at default, set INITIAL_ADMIN_PASSWORD")
	}

	var count int64
	if err := db.Model(&User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		logger.Error.Error("checking for existing admin", zap.Error(err))
		return
	}
	if count > 0 {
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error.Error("hashing initial admin password", zap.Error(err))
		return
	}
	answer1Hash, _ := bcrypt.GenerateFromPassword([]byte("fluffy"), bcrypt.DefaultCost)
	answer2Hash, _ := bcrypt.GenerateFromPassword([]byte("central elementary"), bcrypt.DefaultCost)

	admin := User{
		Username:            username,
		FirstName:           "Admin",
		LastName:            "User",
		PasswordHash:        string(passwordHash),
		SecurityQuestion1ID: 1,
		SecurityAnswer1Hash: string(answer1Hash),
		SecurityQuestion2ID: 3,
		SecurityAnswer2Hash: string(answer2Hash),
		IsAdmin:             true,
	}
	if err := db.Create(&admin).Error; err != nil {
		logger.Error.Error("creating initial admin", zap.Error(err))
		return
	}
	logger.System.Info("initial admin created", zap.String("username", username))
}

// checklistTypeFromFilename derives the template type from the filename, e.g.
// "03_daily_dock_doors.html" is a daily checklist.
func checklistTypeFromFilename(filename string) string {
	lower := strings.ToLower(filename)
	switch {
	case strings.Contains(lower, ChecklistTypeDaily):
		return ChecklistTypeDaily
	case strings.Contains(lower, ChecklistTypeWeekly):
		return ChecklistTypeWeekly
	case strings.Contains(lower, ChecklistTypeQuarterly):
		return ChecklistTypeQuarterly
	default:
		return ""
	}
}

// seedChecklists registers one Checklist row per HTML template found in the
// checklists directory. Filenames follow "<order>_<type>_<words>.html"; files
// without a recognized type are skipped. Already-registered filenames are
// left alone so re-running startup never resets rotation state.
func seedChecklists(db *gorm.DB) {
	dir := os.Getenv("CHECKLISTS_DIR")
	if dir == "" {
		dir = "Public/checklists"
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.System.Warn("checklists directory not readable, skipping seed",
			zap.String("dir", dir), zap.Error(err))
		return
	}

	for _, entry := range entries {
		filename := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(filename, ".html") {
			continue
		}
		checklistType := checklistTypeFromFilename(filename)
		if checklistType == "" {
			continue
		}

		var count int64
		if err := db.Model(&Checklist{}).Where("filename = ?", filename).Count(&count).Error; err != nil {
			logger.Error.Error("checking for existing checklist", zap.Error(err))
			continue
		}
		if count > 0 {
			continue
		}

		parts := strings.Split(strings.TrimSuffix(filename, ".html"), "_")
		order, _ := strconv.Atoi(parts[0])
		title := strings.Join(parts[1:], " ")

		checklist := Checklist{
			Filename:     filename,
			Title:        title,
			Type:         checklistType,
			DisplayOrder: order,
		}
		if err := db.Create(&checklist).Error; err != nil {
			logger.Error.Error("seeding checklist", zap.String("filename", filename), zap.Error(err))
			continue
		}
		logger.System.Info("checklist registered",
			zap.String("filename", filename), zap.String("type", checklistType))
	}
}
