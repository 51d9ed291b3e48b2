package dto

import (
	"time"

	"github.com/campushelp/helpdesk-api/internal/models"
)

// BroadcastRequest is an administrator announcement fanned out to a role.
type BroadcastRequest struct {
	Title string `json:"title" validate:"required,min=1,max=255"`
	Body  string `json:"body" validate:"required,min=1,max=4000"`
	Role  string `json:"role" validate:"omitempty,oneof=student faculty resolver admin"`
	Type  string `json:"type" validate:"omitempty,oneof=info success warning error"`
}

// NotificationResponse represents notification data returned to clients.
type NotificationResponse struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"user_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Type      string    `json:"type"`
	TicketID  *uint     `json:"ticket_id,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// NewNotificationResponse converts a notification model to DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        model.ID,
		UserID:    model.UserID,
		Title:     model.Title,
		Body:      model.Body,
		Type:      model.Type,
		TicketID:  model.TicketID,
		Read:      model.Read,
		CreatedAt: model.CreatedAt,
	}
}

// NewNotificationResponseSlice converts a slice of models into DTOs.
func NewNotificationResponseSlice(models []models.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(models))
	for _, model := range models {
		out = append(out, NewNotificationResponse(model))
	}
	return out
}
