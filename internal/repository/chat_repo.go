package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/campushelp/helpdesk-api/internal/models"
)

// ChatRepository persists direct messages. Archive stamps every live message
// in a room with the archive time and ticket back-reference; the
// archived_at IS NULL filter makes repeat calls a no-op.
type ChatRepository interface {
	Save(ctx context.Context, message *models.ChatMessage) error
	ListByRoom(ctx context.Context, roomID string, before time.Time, limit int, includeArchived bool) ([]models.ChatMessage, error)
	Archive(ctx context.Context, roomID string, ticketID uint, at time.Time) (int64, error)
	LatestByRoom(ctx context.Context, roomID string) (models.ChatMessage, error)
}

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository constructs a chat repository backed by GORM.
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) Save(ctx context.Context, message *models.ChatMessage) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *chatRepository) ListByRoom(ctx context.Context, roomID string, before time.Time, limit int, includeArchived bool) ([]models.ChatMessage, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := r.db.WithContext(ctx).Where("room_id = ?", roomID)
	if !includeArchived {
		query = query.Where("archived_at IS NULL")
	}
	if !before.IsZero() {
		query = query.Where("created_at < ?", before)
	}

	var messages []models.ChatMessage
	if err := query.Order("created_at DESC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, err
	}

	// Reverse to chronological order ascending for clients.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (r *chatRepository) Archive(ctx context.Context, roomID string, ticketID uint, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Where("room_id = ? AND archived_at IS NULL", roomID).
		Updates(map[string]interface{}{
			"archived_at": at,
			"ticket_id":   ticketID,
		})
	return result.RowsAffected, result.Error
}

func (r *chatRepository) LatestByRoom(ctx context.Context, roomID string) (models.ChatMessage, error) {
	var message models.ChatMessage
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND archived_at IS NULL", roomID).
		Order("created_at DESC").
		First(&message).Error
	if err != nil {
		return models.ChatMessage{}, err
	}
	return message, nil
}
