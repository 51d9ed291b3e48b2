package dto

import (
	"time"

	"github.com/campushelp/helpdesk-api/internal/models"
)

// UserCreateRequest provisions a new account via the admin surface.
type UserCreateRequest struct {
	Name       string `json:"name" validate:"required,min=2,max=255"`
	Email      string `json:"email" validate:"required,email,max=255"`
	Role       string `json:"role" validate:"required,oneof=student faculty resolver admin"`
	Department string `json:"department" validate:"omitempty,max=128"`
}

// UserUpdateRequest partially updates an account. Nil fields are untouched.
type UserUpdateRequest struct {
	Name                *string `json:"name" validate:"omitempty,min=2,max=255"`
	Department          *string `json:"department" validate:"omitempty,max=128"`
	Status              *string `json:"status" validate:"omitempty,oneof=active inactive"`
	NotifyTicketUpdates *bool   `json:"notify_ticket_updates"`
	NotifyChatMessages  *bool   `json:"notify_chat_messages"`
}

// UserResponse is the serialised account representation.
type UserResponse struct {
	ID                  uint       `json:"id"`
	Name                string     `json:"name"`
	Email               string     `json:"email"`
	Role                string     `json:"role"`
	Department          string     `json:"department,omitempty"`
	Status              string     `json:"status"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty"`
	NotifyTicketUpdates bool       `json:"notify_ticket_updates"`
	NotifyChatMessages  bool       `json:"notify_chat_messages"`
	CreatedAt           time.Time  `json:"created_at"`
}

// UserCreatedResponse includes the generated initial password exactly once.
type UserCreatedResponse struct {
	User            UserResponse `json:"user"`
	InitialPassword string       `json:"initial_password"`
}

// NewUserResponse converts a user model into a DTO.
func NewUserResponse(user models.User) UserResponse {
	return UserResponse{
		ID:                  user.ID,
		Name:                user.Name,
		Email:               user.Email,
		Role:                user.Role,
		Department:          user.Department,
		Status:              user.Status,
		LastLoginAt:         user.LastLoginAt,
		NotifyTicketUpdates: user.NotifyTicketUpdates,
		NotifyChatMessages:  user.NotifyChatMessages,
		CreatedAt:           user.CreatedAt,
	}
}

// NewUserResponseSlice converts a slice of user models into DTOs.
func NewUserResponseSlice(users []models.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, user := range users {
		out = append(out, NewUserResponse(user))
	}
	return out
}
