package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/campushelp/helpdesk-api/internal/models"
)

// TicketFilter narrows ticket listings.
type TicketFilter struct {
	RequesterID *uint
	ResolverID  *uint
	Status      string
	Category    string
	Limit       int
	Offset      int
}

// TicketRepository handles persistence for tickets. TransitionStatus is the
// compare-and-swap primitive that linearises concurrent status writers: the
// update only applies while the ticket is still in one of the expected
// states, and the caller must treat zero affected rows as a lost race.
type TicketRepository interface {
	Create(ctx context.Context, ticket *models.Ticket) error
	FindByID(ctx context.Context, id uint) (models.Ticket, error)
	FindByKey(ctx context.Context, key string) (models.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]models.Ticket, error)
	Update(ctx context.Context, ticket *models.Ticket) error
	TransitionStatus(ctx context.Context, id uint, from []string, updates map[string]interface{}) (int64, error)
	Delete(ctx context.Context, id uint) error
}

type ticketRepository struct {
	db *gorm.DB
}

// NewTicketRepository constructs a repository backed by GORM.
func NewTicketRepository(db *gorm.DB) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	return r.db.WithContext(ctx).Create(ticket).Error
}

func (r *ticketRepository) FindByID(ctx context.Context, id uint) (models.Ticket, error) {
	var ticket models.Ticket
	if err := r.db.WithContext(ctx).First(&ticket, id).Error; err != nil {
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (r *ticketRepository) FindByKey(ctx context.Context, key string) (models.Ticket, error) {
	var ticket models.Ticket
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&ticket).Error; err != nil {
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]models.Ticket, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := r.db.WithContext(ctx).Model(&models.Ticket{})
	if filter.RequesterID != nil {
		query = query.Where("requester_id = ?", *filter.RequesterID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	// Resolver membership lives in a JSON column; the containment check must
	// run inside SQL so that LIMIT/OFFSET paginate the already-filtered set.
	if filter.ResolverID != nil {
		switch r.db.Dialector.Name() {
		case "postgres":
			query = query.Where("resolvers @> ?::jsonb", fmt.Sprintf("[%d]", *filter.ResolverID))
		default:
			query = query.Where("EXISTS (SELECT 1 FROM json_each(tickets.resolvers) WHERE json_each.value = ?)", *filter.ResolverID)
		}
	}

	var tickets []models.Ticket
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&tickets).Error; err != nil {
		return nil, err
	}

	return tickets, nil
}

func (r *ticketRepository) Update(ctx context.Context, ticket *models.Ticket) error {
	return r.db.WithContext(ctx).Save(ticket).Error
}

func (r *ticketRepository) TransitionStatus(ctx context.Context, id uint, from []string, updates map[string]interface{}) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *ticketRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Ticket{}, id).Error
}
