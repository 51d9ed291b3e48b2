package models

import "time"

// ChatMessage is a direct message between two users. RoomID is derived from
// the participant pair, so both directions of a conversation share one room.
// ArchivedAt is stamped when the linked ticket resolves; archived messages
// drop out of default history but stay queryable for audit.
type ChatMessage struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	RoomID     string     `gorm:"size:64;index;not null" json:"room_id"`
	SenderID   uint       `gorm:"not null;index" json:"sender_id"`
	ReceiverID uint       `gorm:"not null;index" json:"receiver_id"`
	Content    string     `gorm:"type:text;not null" json:"content"`
	TicketID   *uint      `gorm:"index" json:"ticket_id,omitempty"`
	ArchivedAt *time.Time `gorm:"index" json:"archived_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
