package dto

import (
	"time"

	"github.com/campushelp/helpdesk-api/internal/models"
)

// ChatSendRequest is the payload clients push over the websocket.
type ChatSendRequest struct {
	ReceiverID uint   `json:"receiver_id" validate:"required"`
	Content    string `json:"content" validate:"required,min=1,max=4000"`
}

// ChatHistoryQuery filters conversation history.
type ChatHistoryQuery struct {
	PeerID          uint       `query:"peer_id" validate:"required"`
	Before          *time.Time `query:"before"`
	Limit           int        `query:"limit" validate:"omitempty,min=1,max=100"`
	IncludeArchived bool       `query:"include_archived"`
}

// ChatMessageResponse is the serialised representation of a chat message.
type ChatMessageResponse struct {
	ID         uint       `json:"id"`
	RoomID     string     `json:"room_id"`
	SenderID   uint       `json:"sender_id"`
	ReceiverID uint       `json:"receiver_id"`
	Content    string     `json:"content"`
	TicketID   *uint      `json:"ticket_id,omitempty"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewChatMessageResponse converts a model into a DTO.
func NewChatMessageResponse(message models.ChatMessage) ChatMessageResponse {
	return ChatMessageResponse{
		ID:         message.ID,
		RoomID:     message.RoomID,
		SenderID:   message.SenderID,
		ReceiverID: message.ReceiverID,
		Content:    message.Content,
		TicketID:   message.TicketID,
		ArchivedAt: message.ArchivedAt,
		CreatedAt:  message.CreatedAt,
	}
}

// NewChatMessageResponseSlice converts a slice of models into DTOs.
func NewChatMessageResponseSlice(messages []models.ChatMessage) []ChatMessageResponse {
	out := make([]ChatMessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewChatMessageResponse(message))
	}
	return out
}
