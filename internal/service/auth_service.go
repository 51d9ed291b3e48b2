package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/campushelp/helpdesk-api/internal/dto"
	"github.com/campushelp/helpdesk-api/internal/models"
	"github.com/campushelp/helpdesk-api/internal/observability"
	"github.com/campushelp/helpdesk-api/internal/repository"
)

const (
	lockoutDuration  = 30 * time.Minute
	tokenLifetime    = 24 * time.Hour
	sessionKeyPrefix = "session:"
	touchInterval    = time.Minute
)

// AuthService authenticates accounts, enforces the failed-login lockout and
// tracks live sessions in redis with an idle deadline.
type AuthService interface {
	Login(ctx context.Context, req dto.LoginRequest) (dto.LoginResponse, error)
	ChangePassword(ctx context.Context, userID uint, req dto.PasswordChangeRequest) error
	CheckSession(ctx context.Context, jti string) (uint, error)
	TouchSession(ctx context.Context, jti string) error
	RevokeSession(ctx context.Context, jti string) error
}

type authService struct {
	users     repository.UserRepository
	settings  SettingService
	redis     *redis.Client
	secret    string
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAuthService creates the authentication service.
func NewAuthService(users repository.UserRepository, settings SettingService, redisClient *redis.Client, secret string, validate *validator.Validate, logger zerolog.Logger) AuthService {
	return &authService{
		users:     users,
		settings:  settings,
		redis:     redisClient,
		secret:    secret,
		validator: validate,
		logger:    logger.With().Str("component", "auth_service").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (dto.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.LoginResponse{}, &ValidationError{Message: err.Error()}
	}

	now := s.now()

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.LoginAttempts("failed").Inc()
			return dto.LoginResponse{}, authf("invalid email or password")
		}
		return dto.LoginResponse{}, dependency("find account", err)
	}

	if !user.IsActive() {
		observability.LoginAttempts("inactive").Inc()
		return dto.LoginResponse{}, authf("account is deactivated")
	}

	if user.LockedUntil != nil && user.LockedUntil.After(now) {
		observability.LoginAttempts("locked").Inc()
		return dto.LoginResponse{}, &AuthError{
			Message:    "account temporarily locked due to repeated failed sign-ins",
			RetryAfter: user.LockedUntil.Sub(now),
		}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return dto.LoginResponse{}, s.recordFailure(ctx, user, now)
	}

	if err := s.users.RecordLoginSuccess(ctx, user.ID, now); err != nil {
		return dto.LoginResponse{}, dependency("record login", err)
	}

	jti := uuid.NewString()
	expiresAt := now.Add(tokenLifetime)

	claims := jwt.MapClaims{
		"sub":  fmt.Sprintf("%d", user.ID),
		"role": user.Role,
		"jti":  jti,
		"iat":  now.Unix(),
		"exp":  expiresAt.Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.secret))
	if err != nil {
		return dto.LoginResponse{}, dependency("sign token", err)
	}

	if err := s.createSession(ctx, jti, user.ID); err != nil {
		return dto.LoginResponse{}, err
	}

	observability.LoginAttempts("ok").Inc()
	s.logger.Info().Uint("user_id", user.ID).Str("role", user.Role).Msg("user signed in")

	return dto.LoginResponse{
		Token:     token,
		ExpiresIn: int64(expiresAt.Sub(now).Seconds()),
		User:      dto.NewUserResponse(user),
	}, nil
}

// recordFailure bumps the failure counter and trips the lockout once the
// configured threshold is reached. Failures to persist the counter are
// logged but never turn a rejected password into a dependency error.
func (s *authService) recordFailure(ctx context.Context, user models.User, now time.Time) error {
	attempts := user.FailedLoginAttempts + 1

	maxAttempts, err := s.settings.GetInt(ctx, models.SettingMaxLoginAttempts)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to read max login attempts, using default")
		maxAttempts = 5
	}

	var lockedUntil *time.Time
	if attempts >= maxAttempts {
		until := now.Add(lockoutDuration)
		lockedUntil = &until
	}

	if err := s.users.RecordLoginFailure(ctx, user.ID, attempts, lockedUntil); err != nil {
		s.logger.Error().Err(err).Uint("user_id", user.ID).Msg("failed to record login failure")
	}

	if lockedUntil != nil {
		observability.AccountLockouts().Inc()
		observability.LoginAttempts("locked").Inc()
		s.logger.Warn().Uint("user_id", user.ID).Int("attempts", attempts).Time("locked_until", *lockedUntil).Msg("account locked after repeated failures")
		return &AuthError{
			Message:    "account temporarily locked due to repeated failed sign-ins",
			RetryAfter: lockoutDuration,
		}
	}

	observability.LoginAttempts("failed").Inc()
	return authf("invalid email or password")
}

func (s *authService) ChangePassword(ctx context.Context, userID uint, req dto.PasswordChangeRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return &ValidationError{Message: err.Error()}
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return authf("account not found")
		}
		return dependency("find account", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return authf("current password is incorrect")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return dependency("hash password", err)
	}

	user.PasswordHash = string(hashed)
	if err := s.users.Update(ctx, &user); err != nil {
		return dependency("update password", err)
	}

	s.logger.Info().Uint("user_id", userID).Msg("password changed")
	return nil
}

func (s *authService) createSession(ctx context.Context, jti string, userID uint) error {
	if s.redis == nil {
		return nil
	}

	ttl, err := s.sessionTTL(ctx)
	if err != nil {
		return err
	}

	key := sessionKeyPrefix + jti
	if err := s.redis.Set(ctx, key, userID, ttl).Err(); err != nil {
		return dependency("create session", err)
	}
	return nil
}

// CheckSession verifies the session key is still alive. A missing key means
// the idle deadline elapsed or the session was revoked.
func (s *authService) CheckSession(ctx context.Context, jti string) (uint, error) {
	if s.redis == nil {
		return 0, nil
	}

	userID, err := s.redis.Get(ctx, sessionKeyPrefix+jti).Uint64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, authf("session expired")
		}
		return 0, dependency("check session", err)
	}
	return uint(userID), nil
}

// TouchSession slides the idle deadline forward, at most once per minute per
// session so a chatty client does not hammer redis on every request.
func (s *authService) TouchSession(ctx context.Context, jti string) error {
	if s.redis == nil {
		return nil
	}

	markerKey := sessionKeyPrefix + jti + ":touched"
	set, err := s.redis.SetNX(ctx, markerKey, 1, touchInterval).Result()
	if err != nil {
		return dependency("touch session", err)
	}
	if !set {
		return nil
	}

	ttl, err := s.sessionTTL(ctx)
	if err != nil {
		return err
	}

	ok, err := s.redis.Expire(ctx, sessionKeyPrefix+jti, ttl).Result()
	if err != nil {
		return dependency("touch session", err)
	}
	if !ok {
		return authf("session expired")
	}
	return nil
}

func (s *authService) RevokeSession(ctx context.Context, jti string) error {
	if s.redis == nil {
		return nil
	}
	if err := s.redis.Del(ctx, sessionKeyPrefix+jti, sessionKeyPrefix+jti+":touched").Err(); err != nil {
		return dependency("revoke session", err)
	}
	return nil
}

func (s *authService) sessionTTL(ctx context.Context) (time.Duration, error) {
	minutes, err := s.settings.GetInt(ctx, models.SettingSessionTimeoutMinutes)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to read session timeout, using default")
		minutes = 30
	}
	return time.Duration(minutes) * time.Minute, nil
}
