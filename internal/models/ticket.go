package models

import (
	"time"

	"gorm.io/datatypes"
)

// Ticket statuses. Pending is never traversed automatically; it exists only
// for manual administrator edits.
const (
	TicketStatusOpen       = "open"
	TicketStatusInProgress = "in_progress"
	TicketStatusPending    = "pending"
	TicketStatusResolved   = "resolved"
	TicketStatusClosed     = "closed"
)

// Ticket urgencies.
const (
	TicketUrgencyLow    = "low"
	TicketUrgencyMedium = "medium"
	TicketUrgencyHigh   = "high"
)

// Ticket categories routable to an ICT department.
var TicketCategories = []string{"Network", "Hardware", "Software", "Accounts", "Email"}

// Ticket is a tracked support request. Key follows TKT-YYMM-NNN. Resolvers
// holds the full resolver group as a typed identifier set; a single-assignee
// or encoded-array shape is never stored.
type Ticket struct {
	ID                  uint                      `gorm:"primaryKey" json:"id"`
	Key                 string                    `gorm:"size:16;uniqueIndex;not null" json:"key"`
	Title               string                    `gorm:"size:255;not null" json:"title"`
	Description         string                    `gorm:"type:text;not null" json:"description"`
	Category            string                    `gorm:"size:64;not null;index" json:"category"`
	Urgency             string                    `gorm:"size:16;not null;default:medium" json:"urgency"`
	Status              string                    `gorm:"size:16;not null;default:open;index" json:"status"`
	RequesterID         uint                      `gorm:"not null;index" json:"requester_id"`
	Resolvers           datatypes.JSONSlice[uint] `json:"resolvers"`
	AttachmentURL       string                    `gorm:"size:512" json:"attachment_url,omitempty"`
	ResolutionNotes     string                    `gorm:"type:text" json:"resolution_notes,omitempty"`
	ResolutionFileURL   string                    `gorm:"size:512" json:"resolution_file_url,omitempty"`
	ResolvedBy          *uint                     `json:"resolved_by,omitempty"`
	ResolvedAt          *time.Time                `json:"resolved_at,omitempty"`
	AcknowledgedAt      *time.Time                `json:"acknowledged_at,omitempty"`
	ClosedAt            *time.Time                `json:"closed_at,omitempty"`
	CreatedAt           time.Time                 `json:"created_at"`
	UpdatedAt           time.Time                 `json:"updated_at"`
}

// Assigned reports whether the ticket already carries a resolver group.
func (t Ticket) Assigned() bool {
	return len(t.Resolvers) > 0
}

// HasResolver reports whether the given user belongs to the resolver group.
func (t Ticket) HasResolver(userID uint) bool {
	for _, id := range t.Resolvers {
		if id == userID {
			return true
		}
	}
	return false
}

// TicketSequence is the per-month counter backing ticket key allocation.
// Bucket is the YYMM segment of the key.
type TicketSequence struct {
	Bucket    string    `gorm:"primaryKey;size:8"`
	Value     int       `gorm:"not null"`
	UpdatedAt time.Time
}
