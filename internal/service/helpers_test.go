package service

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/campushelp/helpdesk-api/internal/models"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Ticket{},
		&models.TicketSequence{},
		&models.ChatMessage{},
		&models.Notification{},
		&models.SystemSetting{},
		&models.UploadRecord{},
	))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, user models.User) models.User {
	t.Helper()

	if user.Status == "" {
		user.Status = models.UserStatusActive
	}
	if user.PasswordHash == "" {
		user.PasswordHash = "x"
	}
	user.NotifyTicketUpdates = true
	user.NotifyChatMessages = true
	require.NoError(t, db.Create(&user).Error)
	return user
}
