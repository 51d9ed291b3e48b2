package models

import "time"

// Well-known system setting keys.
const (
	SettingSessionTimeoutMinutes = "session_timeout_minutes"
	SettingMaxLoginAttempts      = "max_login_attempts"
	SettingMaintenanceMode       = "maintenance_mode"
)

// SystemSetting is a key/value policy row. Rows are created with defaults on
// first read and mutated only by administrators.
type SystemSetting struct {
	Key       string    `gorm:"primaryKey;size:64" json:"key"`
	Value     string    `gorm:"size:255;not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
