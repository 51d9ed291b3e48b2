package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/campushelp/helpdesk-api/internal/models"
)

func seedAccount(t *testing.T, db *gorm.DB, user models.User) models.User {
	t.Helper()

	if user.Status == "" {
		user.Status = models.UserStatusActive
	}
	if user.PasswordHash == "" {
		user.PasswordHash = "x"
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func TestRecordLoginFailureAndSuccess(t *testing.T) {
	db := testDB(t)
	users := NewUserRepository(db)

	account := seedAccount(t, db, models.User{Name: "Dina", Email: "dina@campus.edu", Role: models.RoleStudent})

	until := time.Now().Add(30 * time.Minute).UTC()
	require.NoError(t, users.RecordLoginFailure(context.Background(), account.ID, 5, &until))

	locked, err := users.FindByID(context.Background(), account.ID)
	require.NoError(t, err)
	require.Equal(t, 5, locked.FailedLoginAttempts)
	require.NotNil(t, locked.LockedUntil)

	at := time.Now().UTC()
	require.NoError(t, users.RecordLoginSuccess(context.Background(), account.ID, at))

	fresh, err := users.FindByID(context.Background(), account.ID)
	require.NoError(t, err)
	require.Zero(t, fresh.FailedLoginAttempts)
	require.Nil(t, fresh.LockedUntil)
	require.NotNil(t, fresh.LastLoginAt)
}

func TestListActiveByDepartmentFilters(t *testing.T) {
	db := testDB(t)
	users := NewUserRepository(db)

	match := seedAccount(t, db, models.User{Name: "Rudi", Email: "rudi@campus.edu", Role: models.RoleResolver, Department: "ICT - Network"})
	seedAccount(t, db, models.User{Name: "Eka", Email: "eka@campus.edu", Role: models.RoleResolver, Department: "ICT - Email"})
	seedAccount(t, db, models.User{Name: "Ben", Email: "ben@campus.edu", Role: models.RoleResolver, Department: "ICT - Network", Status: models.UserStatusInactive})
	seedAccount(t, db, models.User{Name: "Tia", Email: "tia@campus.edu", Role: models.RoleStudent, Department: "ICT - Network"})

	got, err := users.ListActiveByDepartment(context.Background(), models.RoleResolver, "ICT - Network")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, match.ID, got[0].ID)
}

func TestEmailIsUnique(t *testing.T) {
	db := testDB(t)

	seedAccount(t, db, models.User{Name: "Dina", Email: "dina@campus.edu", Role: models.RoleStudent})

	dup := models.User{Name: "Clone", Email: "dina@campus.edu", Role: models.RoleStudent, Status: models.UserStatusActive, PasswordHash: "x"}
	require.ErrorIs(t, db.Create(&dup).Error, gorm.ErrDuplicatedKey)
}
