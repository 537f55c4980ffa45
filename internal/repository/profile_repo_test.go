package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/depix/seem_server/internal/model"
	"github.com/depix/seem_server/internal/testutil"
)

func TestProfileRepository_GetByID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewProfileRepository(db)
	created := testutil.TestProfile(t, db, testutil.WithCredits(25))

	found, err := repo.GetByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Email, found.Email)
	assert.Equal(t, 25, found.Credits)
	assert.True(t, found.IsActive)
	assert.Equal(t, model.PlanNone, found.SelectedPlan)
}

func TestProfileRepository_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewProfileRepository(db)

	_, err := repo.GetByID("missing")
	assert.True(t, IsNotFound(err))
}

func TestProfileRepository_GetByEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewProfileRepository(db)
	testutil.TestProfile(t, db, testutil.WithEmail("ada@example.com"))

	found, err := repo.GetByEmail("ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", found.Email)

	exists, err := repo.ExistsByEmail("ada@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByEmail("bob@example.com")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestProfileRepository_CreateIfMissing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewProfileRepository(db)

	created, err := repo.CreateIfMissing(&model.Profile{ID: "u1", Email: "u1@example.com", Credits: 10, IsActive: true, SelectedPlan: model.PlanNone})
	require.NoError(t, err)
	assert.True(t, created)

	// 第二次不会覆盖余额
	created, err = repo.CreateIfMissing(&model.Profile{ID: "u1", Email: "u1@example.com", Credits: 999, IsActive: true, SelectedPlan: model.PlanNone})
	require.NoError(t, err)
	assert.False(t, created)

	balance, err := repo.Balance("u1")
	require.NoError(t, err)
	assert.Equal(t, 10, balance)
}

func TestProfileRepository_Deduct(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewProfileRepository(db)
	profile := testutil.TestProfile(t, db, testutil.WithCredits(10))

	balance, clamped, err := repo.Deduct(profile.ID, 4)
	require.NoError(t, err)
	assert.False(t, clamped)
	assert.Equal(t, 6, balance)

	balance, clamped, err = repo.Deduct(profile.ID, 6)
	require.NoError(t, err)
	assert.False(t, clamped)
	assert.Equal(t, 0, balance)
}

func TestProfileRepository_Deduct_ClampsAtZero(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewProfileRepository(db)
	profile := testutil.TestProfile(t, db, testutil.WithCredits(3))

	balance, clamped, err := repo.Deduct(profile.ID, 5)
	require.NoError(t, err)
	assert.True(t, clamped)
	assert.Equal(t, 0, balance)

	balance, err = repo.Balance(profile.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)
}

func TestProfileRepository_Deduct_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewProfileRepository(db)

	_, _, err := repo.Deduct("missing", 1)
	assert.True(t, IsNotFound(err))
}

func TestProfileRepository_AssignPlan(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewProfileRepository(db)
	profile := testutil.TestProfile(t, db, testutil.WithCredits(7))

	require.NoError(t, repo.AssignPlan(profile.ID, model.PlanPro, 400))

	found, err := repo.GetByID(profile.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanPro, found.SelectedPlan)
	assert.Equal(t, 400, found.Credits)

	require.NoError(t, repo.ClearPlan(profile.ID))
	found, _ = repo.GetByID(profile.ID)
	assert.Equal(t, model.PlanNone, found.SelectedPlan)
	assert.Equal(t, 400, found.Credits)

	assert.True(t, IsNotFound(repo.AssignPlan("missing", model.PlanPro, 1)))
}

func TestProfileRepository_SetActive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewProfileRepository(db)
	profile := testutil.TestProfile(t, db)

	require.NoError(t, repo.SetActive(profile.ID, false))
	found, _ := repo.GetByID(profile.ID)
	assert.False(t, found.IsActive)

	assert.True(t, IsNotFound(repo.SetActive("missing", true)))
}

func TestProfileRepository_WithTx_Rollback(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewProfileRepository(db)
	profile := testutil.TestProfile(t, db, testutil.WithCredits(10))

	err := db.Transaction(func(tx *gorm.DB) error {
		if _, _, err := repo.WithTx(tx).Deduct(profile.ID, 5); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	balance, err := repo.Balance(profile.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, balance)
}

func TestTestProfile_Inactive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	profile := testutil.TestProfile(t, db, testutil.Inactive())

	found, err := NewProfileRepository(db).GetByID(profile.ID)
	require.NoError(t, err)
	assert.False(t, found.IsActive)
}
