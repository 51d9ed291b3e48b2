package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/campushelp/helpdesk-api/internal/dto"
	"github.com/campushelp/helpdesk-api/internal/models"
	"github.com/campushelp/helpdesk-api/internal/repository"
)

func TestUserCreateDerivesInitialPassword(t *testing.T) {
	db := testDB(t)
	svc := NewUserService(repository.NewUserRepository(db), testValidator(), testLogger())

	created, err := svc.Create(context.Background(), dto.UserCreateRequest{
		Name:       "Rudi Hartono",
		Email:      "Rudi.Hartono@campus.edu",
		Role:       models.RoleResolver,
		Department: "ICT - Network",
	})
	require.NoError(t, err)
	require.Equal(t, "rudi.hartono@campus.edu", created.User.Email)
	require.Equal(t, "rudi.hartono_resolver", created.InitialPassword)

	var stored models.User
	require.NoError(t, db.First(&stored, created.User.ID).Error)
	require.Equal(t, models.UserStatusActive, stored.Status)
	require.True(t, stored.NotifyTicketUpdates)
	require.True(t, stored.NotifyChatMessages)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte(created.InitialPassword)))
}

func TestUserCreateDuplicateEmailConflicts(t *testing.T) {
	db := testDB(t)
	svc := NewUserService(repository.NewUserRepository(db), testValidator(), testLogger())

	req := dto.UserCreateRequest{Name: "Dina", Email: "dina@campus.edu", Role: models.RoleStudent}
	_, err := svc.Create(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), req)
	require.Error(t, err)
	require.True(t, IsConflict(err))
}

func TestUserUpdateAppliesOnlyProvidedFields(t *testing.T) {
	db := testDB(t)
	svc := NewUserService(repository.NewUserRepository(db), testValidator(), testLogger())
	account := seedUser(t, db, models.User{Name: "Dina", Email: "dina@campus.edu", Role: models.RoleStudent, Department: "Physics"})

	name := "Dina Putri"
	status := models.UserStatusInactive
	updated, err := svc.Update(context.Background(), account.ID, dto.UserUpdateRequest{Name: &name, Status: &status})
	require.NoError(t, err)
	require.Equal(t, "Dina Putri", updated.Name)
	require.Equal(t, models.UserStatusInactive, updated.Status)
	require.Equal(t, "Physics", updated.Department)
}

func TestUpdatePreferencesIgnoresOtherFields(t *testing.T) {
	db := testDB(t)
	svc := NewUserService(repository.NewUserRepository(db), testValidator(), testLogger())
	account := seedUser(t, db, models.User{Name: "Dina", Email: "dina@campus.edu", Role: models.RoleStudent})

	name := "Hijacked"
	off := false
	updated, err := svc.UpdatePreferences(context.Background(), account.ID, dto.UserUpdateRequest{
		Name:               &name,
		NotifyChatMessages: &off,
	})
	require.NoError(t, err)
	require.Equal(t, "Dina", updated.Name)
	require.False(t, updated.NotifyChatMessages)
	require.True(t, updated.NotifyTicketUpdates)
}

func TestUserListCapsLimit(t *testing.T) {
	db := testDB(t)
	svc := NewUserService(repository.NewUserRepository(db), testValidator(), testLogger())
	for i := 0; i < 3; i++ {
		seedUser(t, db, models.User{Name: "Listed", Email: fmt.Sprintf("user%d@campus.edu", i), Role: models.RoleStudent})
	}

	users, err := svc.List(context.Background(), 2, 0)
	require.NoError(t, err)
	require.Len(t, users, 2)

	rest, err := svc.List(context.Background(), 0, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
}

func TestUserDelete(t *testing.T) {
	db := testDB(t)
	svc := NewUserService(repository.NewUserRepository(db), testValidator(), testLogger())
	account := seedUser(t, db, models.User{Name: "Dina", Email: "dina@campus.edu", Role: models.RoleStudent})

	require.NoError(t, svc.Delete(context.Background(), account.ID))

	_, err := svc.Get(context.Background(), account.ID)
	require.Error(t, err)
}
