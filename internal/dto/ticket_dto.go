package dto

import (
	"time"

	"github.com/campushelp/helpdesk-api/internal/models"
)

// TicketCreateRequest is the payload a requester submits to open a ticket.
type TicketCreateRequest struct {
	Title         string `json:"title" validate:"required,min=3,max=255"`
	Description   string `json:"description" validate:"required,min=3,max=8000"`
	Category      string `json:"category" validate:"required,oneof=Network Hardware Software Accounts Email"`
	Urgency       string `json:"urgency" validate:"omitempty,oneof=low medium high"`
	AttachmentURL string `json:"attachment_url" validate:"omitempty,url,max=512"`
}

// TicketResolveRequest carries the resolution submitted by a resolver.
type TicketResolveRequest struct {
	Notes   string `json:"notes" validate:"required,min=1,max=8000"`
	FileURL string `json:"file_url" validate:"omitempty,url,max=512"`
}

// TicketOverrideRequest is the unguarded administrator status edit.
type TicketOverrideRequest struct {
	Status string `json:"status" validate:"required,oneof=open in_progress pending resolved closed"`
}

// TicketListQuery filters ticket listings.
type TicketListQuery struct {
	Status   string `query:"status" validate:"omitempty,oneof=open in_progress pending resolved closed"`
	Category string `query:"category" validate:"omitempty,max=64"`
	Limit    int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Offset   int    `query:"offset" validate:"omitempty,min=0"`
}

// TicketResponse is the serialised ticket representation.
type TicketResponse struct {
	ID                uint       `json:"id"`
	Key               string     `json:"key"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Category          string     `json:"category"`
	Urgency           string     `json:"urgency"`
	Status            string     `json:"status"`
	RequesterID       uint       `json:"requester_id"`
	Resolvers         []uint     `json:"resolvers"`
	AttachmentURL     string     `json:"attachment_url,omitempty"`
	ResolutionNotes   string     `json:"resolution_notes,omitempty"`
	ResolutionFileURL string     `json:"resolution_file_url,omitempty"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`
	AcknowledgedAt    *time.Time `json:"acknowledged_at,omitempty"`
	ClosedAt          *time.Time `json:"closed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// NewTicketResponse converts a ticket model into a DTO.
func NewTicketResponse(ticket models.Ticket) TicketResponse {
	resolvers := make([]uint, len(ticket.Resolvers))
	copy(resolvers, ticket.Resolvers)

	return TicketResponse{
		ID:                ticket.ID,
		Key:               ticket.Key,
		Title:             ticket.Title,
		Description:       ticket.Description,
		Category:          ticket.Category,
		Urgency:           ticket.Urgency,
		Status:            ticket.Status,
		RequesterID:       ticket.RequesterID,
		Resolvers:         resolvers,
		AttachmentURL:     ticket.AttachmentURL,
		ResolutionNotes:   ticket.ResolutionNotes,
		ResolutionFileURL: ticket.ResolutionFileURL,
		ResolvedAt:        ticket.ResolvedAt,
		AcknowledgedAt:    ticket.AcknowledgedAt,
		ClosedAt:          ticket.ClosedAt,
		CreatedAt:         ticket.CreatedAt,
		UpdatedAt:         ticket.UpdatedAt,
	}
}

// NewTicketResponseSlice converts a slice of ticket models into DTOs.
func NewTicketResponseSlice(tickets []models.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for _, ticket := range tickets {
		out = append(out, NewTicketResponse(ticket))
	}
	return out
}

// AssignmentResponse reports the outcome of routing a ticket to its
// resolver group. Assigned is false when no active resolver matched.
type AssignmentResponse struct {
	Ticket   TicketResponse `json:"ticket"`
	Assigned bool           `json:"assigned"`
	Group    []uint         `json:"group"`
}
