package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/campushelp/helpdesk-api/internal/config"
	"github.com/campushelp/helpdesk-api/internal/handler"
	"github.com/campushelp/helpdesk-api/internal/middleware"
	"github.com/campushelp/helpdesk-api/internal/models"
	"github.com/campushelp/helpdesk-api/internal/repository"
	"github.com/campushelp/helpdesk-api/internal/router"
	"github.com/campushelp/helpdesk-api/internal/service"
)

const testSecret = "handler-test-secret"

type testEnv struct {
	app *fiber.App
	db  *gorm.DB
	mr  *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
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

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	logger := zerolog.New(io.Discard)
	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	ticketRepo := repository.NewTicketRepository(db)
	sequenceRepo := repository.NewSequenceRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	settingRepo := repository.NewSettingRepository(db)

	settingService := service.NewSettingService(settingRepo, logger)
	authService := service.NewAuthService(userRepo, settingService, redisClient, testSecret, validate, logger)
	userService := service.NewUserService(userRepo, validate, logger)
	notificationService := service.NewNotificationService(notificationRepo, userRepo, nil, "", nil, logger)
	ticketService := service.NewTicketService(db, ticketRepo, sequenceRepo, notificationService, validate, logger)
	assignmentService := service.NewAssignmentService(ticketRepo, userRepo, notificationService, logger)

	cfg := config.Config{AppName: "Campus Helpdesk API", JWTSecret: testSecret}

	app := fiber.New()
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:         handler.NewAuthHandler(authService, userService, logger),
		TicketHandler:       handler.NewTicketHandler(ticketService, assignmentService, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, logger, time.Second),
		UserHandler:         handler.NewUserHandler(userService, logger),
		SettingHandler:      handler.NewSettingHandler(settingService, logger),

		JWTMiddleware:         middleware.JWTProtected(cfg.JWTSecret),
		SessionMiddleware:     middleware.SessionGuard(authService, logger),
		MaintenanceMiddleware: middleware.Maintenance(settingService),
		AdminMiddleware:       middleware.RequireAdminAccount(userRepo),
	})

	return &testEnv{app: app, db: db, mr: mr}
}

func (e *testEnv) seedAccount(t *testing.T, name, email, role, department string) models.User {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte("pass-"+email), bcrypt.MinCost)
	require.NoError(t, err)

	user := models.User{
		Name:                name,
		Email:               email,
		Role:                role,
		Department:          department,
		Status:              models.UserStatusActive,
		PasswordHash:        string(hashed),
		NotifyTicketUpdates: true,
		NotifyChatMessages:  true,
	}
	require.NoError(t, e.db.Create(&user).Error)
	return user
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *testEnv) request(t *testing.T, method, path, token string, body interface{}) (*http.Response, apiEnvelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)

	var envelope apiEnvelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &envelope))
	}
	return resp, envelope
}

func (e *testEnv) login(t *testing.T, email string) string {
	t.Helper()

	resp, envelope := e.request(t, fiber.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": "pass-" + email,
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(envelope.Data, &login))
	require.NotEmpty(t, login.Token)
	return login.Token
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	requester := env.seedAccount(t, "Dina", "dina@campus.edu", models.RoleStudent, "")
	resolver := env.seedAccount(t, "Rudi", "rudi@campus.edu", models.RoleResolver, "ICT - Network")
	env.seedAccount(t, "Root", "root@campus.edu", models.RoleAdmin, "")

	requesterToken := env.login(t, "dina@campus.edu")
	resolverToken := env.login(t, "rudi@campus.edu")
	adminToken := env.login(t, "root@campus.edu")

	// Only requesters can file tickets.
	resp, _ := env.request(t, fiber.MethodPost, "/api/v1/tickets", resolverToken, map[string]string{
		"title":       "Wifi drops",
		"description": "Connection drops every few minutes in the library.",
		"category":    "Network",
	})
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, envelope := env.request(t, fiber.MethodPost, "/api/v1/tickets", requesterToken, map[string]string{
		"title":       "Wifi drops",
		"description": "Connection drops every few minutes in the library.",
		"category":    "Network",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var ticket struct {
		ID     uint   `json:"id"`
		Key    string `json:"key"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(envelope.Data, &ticket))
	require.Regexp(t, `^TKT-\d{4}-001$`, ticket.Key)
	require.Equal(t, models.TicketStatusOpen, ticket.Status)

	base := fmt.Sprintf("/api/v1/tickets/%d", ticket.ID)

	// Routing is an admin call.
	resp, _ = env.request(t, fiber.MethodPost, base+"/assign", requesterToken, nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, envelope = env.request(t, fiber.MethodPost, base+"/assign", adminToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var assignment struct {
		Assigned bool   `json:"assigned"`
		Group    []uint `json:"group"`
	}
	require.NoError(t, json.Unmarshal(envelope.Data, &assignment))
	require.True(t, assignment.Assigned)
	require.Contains(t, assignment.Group, resolver.ID)

	resp, _ = env.request(t, fiber.MethodPost, base+"/start", resolverToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// Resolution without notes is rejected.
	resp, _ = env.request(t, fiber.MethodPost, base+"/resolve", resolverToken, map[string]string{"notes": ""})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = env.request(t, fiber.MethodPost, base+"/resolve", resolverToken, map[string]string{
		"notes": "Replaced the access point.",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// The requester confirms and the ticket closes.
	resp, envelope = env.request(t, fiber.MethodPost, base+"/acknowledge", requesterToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(envelope.Data, &ticket))
	require.Equal(t, models.TicketStatusClosed, ticket.Status)

	// The resolution landed in the requester's notifications.
	resp, envelope = env.request(t, fiber.MethodGet, "/api/v1/notifications/", requesterToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var notifications []struct {
		Title  string `json:"title"`
		UserID uint   `json:"user_id"`
	}
	require.NoError(t, json.Unmarshal(envelope.Data, &notifications))
	require.NotEmpty(t, notifications)
	require.Equal(t, requester.ID, notifications[0].UserID)
}

func TestLoginLockoutSetsRetryAfter(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "Dina", "dina@campus.edu", models.RoleStudent, "")

	for i := 0; i < 4; i++ {
		resp, _ := env.request(t, fiber.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"email":    "dina@campus.edu",
			"password": "wrong",
		})
		require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		require.Empty(t, resp.Header.Get("Retry-After"))
	}

	resp, _ := env.request(t, fiber.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "dina@campus.edu",
		"password": "wrong",
	})
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "1800", resp.Header.Get("Retry-After"))
}

func TestExpiredSessionRejected(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "Dina", "dina@campus.edu", models.RoleStudent, "")
	token := env.login(t, "dina@campus.edu")

	resp, _ := env.request(t, fiber.MethodGet, "/api/v1/tickets/", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	env.mr.FastForward(31 * time.Minute)

	resp, _ = env.request(t, fiber.MethodGet, "/api/v1/tickets/", token, nil)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestLogoutRevokesSession(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "Dina", "dina@campus.edu", models.RoleStudent, "")
	token := env.login(t, "dina@campus.edu")

	resp, _ := env.request(t, fiber.MethodPost, "/api/v1/auth/logout", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = env.request(t, fiber.MethodGet, "/api/v1/tickets/", token, nil)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestMaintenanceModeBlocksNonAdmins(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "Dina", "dina@campus.edu", models.RoleStudent, "")
	env.seedAccount(t, "Root", "root@campus.edu", models.RoleAdmin, "")

	requesterToken := env.login(t, "dina@campus.edu")
	adminToken := env.login(t, "root@campus.edu")

	resp, _ := env.request(t, fiber.MethodPut, "/api/v1/admin/settings/maintenance_mode", adminToken, map[string]string{"value": "true"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = env.request(t, fiber.MethodGet, "/api/v1/tickets/", requesterToken, nil)
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	// Admins stay in so they can switch it back off.
	resp, _ = env.request(t, fiber.MethodGet, "/api/v1/tickets/", adminToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAdminRoutesRejectNonAdmins(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "Dina", "dina@campus.edu", models.RoleStudent, "")
	token := env.login(t, "dina@campus.edu")

	resp, _ := env.request(t, fiber.MethodGet, "/api/v1/admin/users/", token, nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.request(t, fiber.MethodGet, "/api/v1/tickets/", "", nil)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
