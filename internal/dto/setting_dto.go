package dto

import (
	"time"

	"github.com/campushelp/helpdesk-api/internal/models"
)

// SettingUpdateRequest mutates a single policy value.
type SettingUpdateRequest struct {
	Value string `json:"value" validate:"required,max=255"`
}

// SettingResponse is the serialised setting representation.
type SettingResponse struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSettingResponse converts a setting model into a DTO.
func NewSettingResponse(setting models.SystemSetting) SettingResponse {
	return SettingResponse{
		Key:       setting.Key,
		Value:     setting.Value,
		UpdatedAt: setting.UpdatedAt,
	}
}

// NewSettingResponseSlice converts a slice of setting models into DTOs.
func NewSettingResponseSlice(settings []models.SystemSetting) []SettingResponse {
	out := make([]SettingResponse, 0, len(settings))
	for _, setting := range settings {
		out = append(out, NewSettingResponse(setting))
	}
	return out
}

// UploadResponse describes a stored attachment.
type UploadResponse struct {
	URL       string `json:"url"`
	FileName  string `json:"file_name"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}
