package Models

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return db
}

func TestChecklistTypeFromFilename(t *testing.T) {
	assert.Equal(t, ChecklistTypeDaily, checklistTypeFromFilename("01_Daily_Floors.html"))
	assert.Equal(t, ChecklistTypeWeekly, checklistTypeFromFilename("07_weekly_racking.html"))
	assert.Equal(t, ChecklistTypeQuarterly, checklistTypeFromFilename("12_Quarterly_Deep_Clean.html"))
	assert.Equal(t, "", checklistTypeFromFilename("notes.html"))
}

func TestSeedChecklists(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"01_daily_floors.html",
		"02_daily_dock_doors.html",
		"07_weekly_racking.html",
		"readme.txt",        // not a template
		"99_hourly_x.html",  // unknown type
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("<html></html>"), 0644))
	}
	t.Setenv("CHECKLISTS_DIR", dir)

	db := newTestDB(t)
	seedChecklists(db)

	var checklists []Checklist
	require.NoError(t, db.Order("display_order ASC").Find(&checklists).Error)
	require.Len(t, checklists, 3)
	assert.Equal(t, "daily floors", checklists[0].Title)
	assert.Equal(t, ChecklistTypeDaily, checklists[0].Type)
	assert.Equal(t, 1, checklists[0].DisplayOrder)
	assert.Equal(t, ChecklistTypeWeekly, checklists[2].Type)

	// Re-running never duplicates or resets rows.
	now := db.Model(&Checklist{}).Where("filename = ?", "01_daily_floors.html").
		Update("last_assigned_at", gorm.Expr("CURRENT_TIMESTAMP"))
	require.NoError(t, now.Error)
	seedChecklists(db)

	var count int64
	require.NoError(t, db.Model(&Checklist{}).Count(&count).Error)
	assert.EqualValues(t, 3, count)
	var stamped Checklist
	require.NoError(t, db.First(&stamped, "filename = ?", "01_daily_floors.html").Error)
	assert.NotNil(t, stamped.LastAssignedAt)
}
