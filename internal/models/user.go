package models

import "time"

// User roles.
const (
	RoleStudent  = "student"
	RoleFaculty  = "faculty"
	RoleResolver = "resolver"
	RoleAdmin    = "admin"
)

// User account statuses.
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// User represents a helpdesk account in any of the four roles.
// Department is only meaningful for resolver accounts and carries the
// "ICT - <category>" label used by assignment routing.
type User struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	Name                string     `gorm:"size:255;not null" json:"name"`
	Email               string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash        string     `gorm:"size:255;not null" json:"-"`
	Role                string     `gorm:"size:32;not null;index" json:"role"`
	Department          string     `gorm:"size:128;index" json:"department,omitempty"`
	Status              string     `gorm:"size:16;not null;default:active" json:"status"`
	FailedLoginAttempts int        `gorm:"not null;default:0" json:"-"`
	LockedUntil         *time.Time `json:"-"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty"`
	NotifyTicketUpdates bool       `gorm:"not null;default:true" json:"notify_ticket_updates"`
	NotifyChatMessages  bool       `gorm:"not null;default:true" json:"notify_chat_messages"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// IsActive reports whether the account may hold a session.
func (u User) IsActive() bool {
	return u.Status == UserStatusActive
}

// IsRequester reports whether the account files tickets rather than works them.
func (u User) IsRequester() bool {
	return u.Role == RoleStudent || u.Role == RoleFaculty
}
