package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/campushelp/helpdesk-api/internal/dto"
	"github.com/campushelp/helpdesk-api/internal/models"
	"github.com/campushelp/helpdesk-api/internal/repository"
)

// UserService provisions and manages accounts via the admin surface.
type UserService interface {
	Create(ctx context.Context, req dto.UserCreateRequest) (dto.UserCreatedResponse, error)
	Get(ctx context.Context, id uint) (dto.UserResponse, error)
	List(ctx context.Context, limit, offset int) ([]dto.UserResponse, error)
	Update(ctx context.Context, id uint, req dto.UserUpdateRequest) (dto.UserResponse, error)
	Delete(ctx context.Context, id uint) error
	UpdatePreferences(ctx context.Context, id uint, req dto.UserUpdateRequest) (dto.UserResponse, error)
}

type userService struct {
	users     repository.UserRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewUserService creates the account management service.
func NewUserService(users repository.UserRepository, validate *validator.Validate, logger zerolog.Logger) UserService {
	return &userService{
		users:     users,
		validator: validate,
		logger:    logger.With().Str("component", "user_service").Logger(),
	}
}

// Create provisions a new account. The initial password is derived from the
// email local part and the role, and is returned exactly once in the
// response so the administrator can hand it over out of band.
func (s *userService) Create(ctx context.Context, req dto.UserCreateRequest) (dto.UserCreatedResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.UserCreatedResponse{}, &ValidationError{Message: err.Error()}
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	initialPassword := initialPasswordFor(email, req.Role)

	hashed, err := bcrypt.GenerateFromPassword([]byte(initialPassword), bcrypt.DefaultCost)
	if err != nil {
		return dto.UserCreatedResponse{}, dependency("hash password", err)
	}

	user := models.User{
		Name:                strings.TrimSpace(req.Name),
		Email:               email,
		PasswordHash:        string(hashed),
		Role:                req.Role,
		Department:          strings.TrimSpace(req.Department),
		Status:              models.UserStatusActive,
		NotifyTicketUpdates: true,
		NotifyChatMessages:  true,
	}

	if err := s.users.Create(ctx, &user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.UserCreatedResponse{}, conflictf("an account with email %s already exists", email)
		}
		return dto.UserCreatedResponse{}, dependency("create account", err)
	}

	s.logger.Info().Uint("user_id", user.ID).Str("role", user.Role).Msg("account provisioned")

	return dto.UserCreatedResponse{
		User:            dto.NewUserResponse(user),
		InitialPassword: initialPassword,
	}, nil
}

func (s *userService) Get(ctx context.Context, id uint) (dto.UserResponse, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, validationf("account %d not found", id)
		}
		return dto.UserResponse{}, dependency("find account", err)
	}
	return dto.NewUserResponse(user), nil
}

func (s *userService) List(ctx context.Context, limit, offset int) ([]dto.UserResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, dependency("list accounts", err)
	}
	return dto.NewUserResponseSlice(users), nil
}

func (s *userService) Update(ctx context.Context, id uint, req dto.UserUpdateRequest) (dto.UserResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.UserResponse{}, &ValidationError{Message: err.Error()}
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, validationf("account %d not found", id)
		}
		return dto.UserResponse{}, dependency("find account", err)
	}

	applyUserUpdate(&user, req)

	if err := s.users.Update(ctx, &user); err != nil {
		return dto.UserResponse{}, dependency("update account", err)
	}

	s.logger.Info().Uint("user_id", user.ID).Msg("account updated")
	return dto.NewUserResponse(user), nil
}

// UpdatePreferences lets an account owner adjust their own notification
// flags without exposing the admin-only fields.
func (s *userService) UpdatePreferences(ctx context.Context, id uint, req dto.UserUpdateRequest) (dto.UserResponse, error) {
	scoped := dto.UserUpdateRequest{
		NotifyTicketUpdates: req.NotifyTicketUpdates,
		NotifyChatMessages:  req.NotifyChatMessages,
	}
	return s.Update(ctx, id, scoped)
}

func (s *userService) Delete(ctx context.Context, id uint) error {
	if _, err := s.users.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return validationf("account %d not found", id)
		}
		return dependency("find account", err)
	}

	if err := s.users.Delete(ctx, id); err != nil {
		return dependency("delete account", err)
	}

	s.logger.Info().Uint("user_id", id).Msg("account deleted")
	return nil
}

func applyUserUpdate(user *models.User, req dto.UserUpdateRequest) {
	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Department != nil {
		user.Department = strings.TrimSpace(*req.Department)
	}
	if req.Status != nil {
		user.Status = *req.Status
	}
	if req.NotifyTicketUpdates != nil {
		user.NotifyTicketUpdates = *req.NotifyTicketUpdates
	}
	if req.NotifyChatMessages != nil {
		user.NotifyChatMessages = *req.NotifyChatMessages
	}
}

func initialPasswordFor(email, role string) string {
	local := email
	if idx := strings.Index(email, "@"); idx > 0 {
		local = email[:idx]
	}
	return local + "_" + role
}
