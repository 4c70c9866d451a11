package Controllers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SaniTrack/Models"
)

func TestRotationIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	engine := NewAssignmentEngine(db)
	user := createTestUser(t, db, "worker", false)
	createTestChecklist(t, db, "01_daily_floors.html", "Daily Floors", nil)
	createTestChecklist(t, db, "02_daily_docks.html", "Daily Docks", nil)

	first, err := engine.AssignNextChecklist(user)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := engine.AssignNextChecklist(user)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID, "repeated rotation must return the same assignment")

	var count int64
	require.NoError(t, db.Model(&Models.Assignment{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestRotationSkipsAdmins(t *testing.T) {
	db := newTestDB(t)
	engine := NewAssignmentEngine(db)
	admin := createTestUser(t, db, "boss", true)
	createTestChecklist(t, db, "01_daily_floors.html", "Daily Floors", nil)

	assignment, err := engine.AssignNextChecklist(admin)
	require.NoError(t, err)
	assert.Nil(t, assignment)

	var count int64
	require.NoError(t, db.Model(&Models.Assignment{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestRotationPrefersNeverAssigned(t *testing.T) {
	db := newTestDB(t)
	engine := NewAssignmentEngine(db)
	user := createTestUser(t, db, "worker", false)
	createTestChecklist(t, db, "01_daily_old.html", "Old", timePtr(time.Now().Add(-48*time.Hour)))
	fresh := createTestChecklist(t, db, "02_daily_fresh.html", "Fresh", nil)

	assignment, err := engine.AssignNextChecklist(user)
	require.NoError(t, err)
	require.NotNil(t, assignment)
	assert.Equal(t, fresh.ID, assignment.ChecklistID, "never-assigned checklist must win")
}

func TestRotationOrdersByOldestAssignment(t *testing.T) {
	db := newTestDB(t)
	engine := NewAssignmentEngine(db)
	user := createTestUser(t, db, "worker", false)
	oldest := createTestChecklist(t, db, "01_daily_oldest.html", "Oldest", timePtr(time.Now().Add(-72*time.Hour)))
	createTestChecklist(t, db, "02_daily_newer.html", "Newer", timePtr(time.Now().Add(-24*time.Hour)))

	assignment, err := engine.AssignNextChecklist(user)
	require.NoError(t, err)
	require.NotNil(t, assignment)
	assert.Equal(t, oldest.ID, assignment.ChecklistID)
}

func TestRotationWithNoEligibleChecklist(t *testing.T) {
	db := newTestDB(t)
	engine := NewAssignmentEngine(db)
	user := createTestUser(t, db, "worker", false)
	// Assigned today: out of rotation until the daily cutoff passes.
	createTestChecklist(t, db, "01_daily_done.html", "Done Today", timePtr(time.Now()))

	assignment, err := engine.AssignNextChecklist(user)
	require.NoError(t, err)
	assert.Nil(t, assignment, "no eligible checklist is a valid terminal state")
}

func TestRotationStampsChecklist(t *testing.T) {
	db := newTestDB(t)
	engine := NewAssignmentEngine(db)
	user := createTestUser(t, db, "worker", false)
	checklist := createTestChecklist(t, db, "01_daily_floors.html", "Daily Floors", nil)

	_, err := engine.AssignNextChecklist(user)
	require.NoError(t, err)

	var reloaded Models.Checklist
	require.NoError(t, db.First(&reloaded, "id = ?", checklist.ID).Error)
	require.NotNil(t, reloaded.LastAssignedAt, "rotation must stamp lastAssignedAt")
}

func TestCompletionThenRotationYieldsNewAssignment(t *testing.T) {
	db := newTestDB(t)
	engine := NewAssignmentEngine(db)
	user := createTestUser(t, db, "worker", false)
	createTestChecklist(t, db, "01_daily_floors.html", "Daily Floors", nil)
	createTestChecklist(t, db, "02_daily_docks.html", "Daily Docks", nil)

	first, err := engine.AssignNextChecklist(user)
	require.NoError(t, err)
	require.NotNil(t, first)

	var checklist Models.Checklist
	require.NoError(t, db.First(&checklist, "id = ?", first.ChecklistID).Error)

	completed, err := engine.CompleteChecklist(user, checklist.Filename)
	require.NoError(t, err)
	assert.Equal(t, first.ID, completed.ID)

	var reloaded Models.Assignment
	require.NoError(t, db.First(&reloaded, "id = ?", first.ID).Error)
	assert.Equal(t, Models.StatusCompleted, reloaded.Status)
	require.NotNil(t, reloaded.CompletedAt)

	// CompleteChecklist already rotated; the active assignment must be a
	// fresh row on the other checklist.
	next, err := engine.AssignNextChecklist(user)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.NotEqual(t, first.ID, next.ID)
	assert.NotEqual(t, first.ChecklistID, next.ChecklistID)
}

func TestManualAssignValidationOrder(t *testing.T) {
	db := newTestDB(t)
	engine := NewAssignmentEngine(db)
	admin := createTestUser(t, db, "boss", true)
	worker := createTestUser(t, db, "worker", false)
	otherAdmin := createTestUser(t, db, "boss2", true)
	checklist := createTestChecklist(t, db, "01_daily_floors.html", "Daily Floors", nil)

	cases := []struct {
		name string
		opts ManualAssignOptions
		want error
	}{
		{"missing params", ManualAssignOptions{}, ErrMissingParams},
		{"bad user id", ManualAssignOptions{UserID: "nope", ChecklistID: checklist.ID, AdminUserID: admin.ID}, ErrInvalidUserID},
		{"bad checklist id", ManualAssignOptions{UserID: worker.ID, ChecklistID: "nope", AdminUserID: admin.ID}, ErrInvalidChecklist},
		{"bad admin id", ManualAssignOptions{UserID: worker.ID, ChecklistID: checklist.ID, AdminUserID: "nope"}, ErrInvalidAdminID},
		{"self assignment", ManualAssignOptions{UserID: admin.ID, ChecklistID: checklist.ID, AdminUserID: admin.ID}, ErrSelfAssignment},
		{"admin missing", ManualAssignOptions{UserID: worker.ID, ChecklistID: checklist.ID, AdminUserID: "11111111-1111-4111-8111-111111111111"}, ErrAdminNotFound},
		{"actor not admin", ManualAssignOptions{UserID: admin.ID, ChecklistID: checklist.ID, AdminUserID: worker.ID}, ErrNotAdmin},
		{"target missing", ManualAssignOptions{UserID: "11111111-1111-4111-8111-111111111111", ChecklistID: checklist.ID, AdminUserID: admin.ID}, ErrTargetNotFound},
		{"target is admin", ManualAssignOptions{UserID: otherAdmin.ID, ChecklistID: checklist.ID, AdminUserID: admin.ID}, ErrTargetIsAdmin},
		{"checklist missing", ManualAssignOptions{UserID: worker.ID, ChecklistID: "11111111-1111-4111-8111-111111111111", AdminUserID: admin.ID}, ErrChecklistNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.ManuallyAssignChecklist(tc.opts)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	// None of the failures may have created state.
	var count int64
	require.NoError(t, db.Model(&Models.Assignment{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestManualAssignConflictWithoutOverride(t *testing.T) {
	db := newTestDB(t)
	engine := NewAssignmentEngine(db)
	admin := createTestUser(t, db, "boss", true)
	worker := createTestUser(t, db, "worker", false)
	createTestChecklist(t, db, "01_daily_floors.html", "Daily Floors", nil)
	other := createTestChecklist(t, db, "02_daily_docks.html", "Daily Docks", nil)

	existing, err := engine.AssignNextChecklist(worker)
	require.NoError(t, err)
	require.NotNil(t, existing)

	_, err = engine.ManuallyAssignChecklist(ManualAssignOptions{
		UserID: worker.ID, ChecklistID: other.ID, AdminUserID: admin.ID,
	})
	var activeErr *ActiveAssignmentError
	require.ErrorAs(t, err, &activeErr)
	assert.Equal(t, existing.ID, activeErr.AssignmentID)
	assert.Equal(t, "Daily Floors", activeErr.ChecklistTitle)
	assert.False(t, activeErr.SameChecklist)

	// Same checklist gets the distinct same-checklist flavor.
	_, err = engine.ManuallyAssignChecklist(ManualAssignOptions{
		UserID: worker.ID, ChecklistID: existing.ChecklistID, AdminUserID: admin.ID,
	})
	require.ErrorAs(t, err, &activeErr)
	assert.True(t, activeErr.SameChecklist)
}

func TestManualAssignRecentCompletion(t *testing.T) {
	db := newTestDB(t)
	engine := NewAssignmentEngine(db)
	admin := createTestUser(t, db, "boss", true)
	worker := createTestUser(t, db, "worker", false)
	checklist := createTestChecklist(t, db, "01_daily_floors.html", "Daily Floors", nil)

	completed := Models.Assignment{
		UserID:      worker.ID,
		ChecklistID: checklist.ID,
		Status:      Models.StatusCompleted,
		AssignedAt:  time.Now().Add(-2 * time.Hour),
		CompletedAt: timePtr(time.Now().Add(-time.Hour)),
	}
	require.NoError(t, db.Create(&completed).Error)

	_, err := engine.ManuallyAssignChecklist(ManualAssignOptions{
		UserID: worker.ID, ChecklistID: checklist.ID, AdminUserID: admin.ID,
	})
	var recentErr *RecentCompletionError
	require.ErrorAs(t, err, &recentErr)
	assert.Equal(t, completed.ID, recentErr.AssignmentID)

	// With override the churn guard steps aside.
	result, err := engine.ManuallyAssignChecklist(ManualAssignOptions{
		UserID: worker.ID, ChecklistID: checklist.ID, AdminUserID: admin.ID, OverrideExisting: true,
	})
	require.NoError(t, err)
	assert.False(t, result.OverridePerformed, "no active assignment was replaced")
}

func TestManualAssignOldCompletionDoesNotBlock(t *testing.T) {
	db := newTestDB(t)
	engine := NewAssignmentEngine(db)
	admin := createTestUser(t, db, "boss", true)
	worker := createTestUser(t, db, "worker", false)
	checklist := createTestChecklist(t, db, "01_daily_floors.html", "Daily Floors", nil)

	stale := Models.Assignment{
		UserID:      worker.ID,
		ChecklistID: checklist.ID,
		Status:      Models.StatusCompleted,
		AssignedAt:  time.Now().Add(-72 * time.Hour),
		CompletedAt: timePtr(time.Now().Add(-48 * time.Hour)),
	}
	require.NoError(t, db.Create(&stale).Error)

	result, err := engine.ManuallyAssignChecklist(ManualAssignOptions{
		UserID: worker.ID, ChecklistID: checklist.ID, AdminUserID: admin.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, Models.StatusAssigned, result.Assignment.Status)
}

func TestManualOverrideScenario(t *testing.T) {
	db := newTestDB(t)
	engine := NewAssignmentEngine(db)
	admin := createTestUser(t, db, "boss", true)
	worker := createTestUser(t, db, "worker", false)
	c1 := createTestChecklist(t, db, "01_daily_c1.html", "C1", nil)
	c2 := createTestChecklist(t, db, "02_daily_c2.html", "C2", timePtr(time.Now().Add(-24*time.Hour)))

	// Rotation picks C1 (never assigned wins).
	first, err := engine.AssignNextChecklist(worker)
	require.NoError(t, err)
	require.NotNil(t, first)
	require.Equal(t, c1.ID, first.ChecklistID)

	result, err := engine.ManuallyAssignChecklist(ManualAssignOptions{
		UserID:           worker.ID,
		ChecklistID:      c2.ID,
		AdminUserID:      admin.ID,
		OverrideExisting: true,
	})
	require.NoError(t, err)
	assert.True(t, result.OverridePerformed)
	assert.Contains(t, result.Message, "C2")
	require.NotNil(t, result.Assignment.AssignedBy)
	assert.Equal(t, admin.ID, result.Assignment.AssignedBy.ID)

	// Prior assignment is cancelled, never deleted, with the cancel
	// attribution on its own fields.
	var prior Models.Assignment
	require.NoError(t, db.First(&prior, "id = ?", first.ID).Error)
	assert.Equal(t, Models.StatusCancelled, prior.Status)
	require.NotNil(t, prior.CancelledAt)
	require.NotNil(t, prior.CancelledByUserID)
	assert.Equal(t, admin.ID, *prior.CancelledByUserID)
	assert.Nil(t, prior.ValidatedAt, "cancellation must not masquerade as validation")

	// C1 is re-queued.
	var reloadedC1 Models.Checklist
	require.NoError(t, db.First(&reloadedC1, "id = ?", c1.ID).Error)
	assert.Nil(t, reloadedC1.LastAssignedAt)

	// Exactly one active row, pointing at C2.
	var active []Models.Assignment
	require.NoError(t, db.Where("user_id = ? AND status = ?", worker.ID, Models.StatusAssigned).Find(&active).Error)
	require.Len(t, active, 1)
	assert.Equal(t, c2.ID, active[0].ChecklistID)
}

func TestSingleActiveAssignmentIndexBackstop(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "worker", false)
	c1 := createTestChecklist(t, db, "01_daily_c1.html", "C1", nil)
	c2 := createTestChecklist(t, db, "02_daily_c2.html", "C2", nil)

	first := Models.Assignment{UserID: user.ID, ChecklistID: c1.ID, Status: Models.StatusAssigned}
	require.NoError(t, db.Create(&first).Error)

	second := Models.Assignment{UserID: user.ID, ChecklistID: c2.ID, Status: Models.StatusAssigned}
	err := db.Create(&second).Error
	require.Error(t, err, "partial unique index must reject a second active assignment")

	// A non-active row for the same user is fine.
	third := Models.Assignment{
		UserID: user.ID, ChecklistID: c2.ID, Status: Models.StatusCompleted,
		CompletedAt: timePtr(time.Now()),
	}
	require.NoError(t, db.Create(&third).Error)
}

func TestCurrentAssignmentsFilters(t *testing.T) {
	db := newTestDB(t)
	engine := NewAssignmentEngine(db)
	worker := createTestUser(t, db, "worker", false)
	other := createTestUser(t, db, "other", false)
	admin := createTestUser(t, db, "boss", true)
	c1 := createTestChecklist(t, db, "01_daily_c1.html", "C1", nil)
	c2 := createTestChecklist(t, db, "02_daily_c2.html", "C2", nil)

	require.NoError(t, db.Create(&Models.Assignment{
		UserID: worker.ID, ChecklistID: c1.ID, Status: Models.StatusAssigned,
	}).Error)
	require.NoError(t, db.Create(&Models.Assignment{
		UserID: other.ID, ChecklistID: c2.ID, Status: Models.StatusCompleted,
		CompletedAt: timePtr(time.Now()),
	}).Error)
	// Admin-owned rows are excluded even if they somehow exist.
	require.NoError(t, db.Create(&Models.Assignment{
		UserID: admin.ID, ChecklistID: c1.ID, Status: Models.StatusCompleted,
		CompletedAt: timePtr(time.Now()),
	}).Error)

	all, err := engine.CurrentAssignments(AssignmentFilters{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := engine.CurrentAssignments(AssignmentFilters{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, worker.ID, active[0].UserID)
	require.NotNil(t, active[0].Checklist)
	assert.Equal(t, "C1", active[0].Checklist.Title)

	byUser, err := engine.CurrentAssignments(AssignmentFilters{UserID: other.ID})
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, Models.StatusCompleted, byUser[0].Status)

	none, err := engine.CurrentAssignments(AssignmentFilters{
		DateFrom: time.Now().Add(48 * time.Hour).Format("2006-01-02"),
	})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAssignableUsersExcludesAdmins(t *testing.T) {
	db := newTestDB(t)
	engine := NewAssignmentEngine(db)
	createTestUser(t, db, "zed", false)
	createTestUser(t, db, "amy", false)
	createTestUser(t, db, "boss", true)

	users, err := engine.AssignableUsers()
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "amy", users[0].Username, "ordered by first name")
}
