package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/campushelp/helpdesk-api/internal/dto"
	"github.com/campushelp/helpdesk-api/internal/models"
	"github.com/campushelp/helpdesk-api/internal/observability"
	"github.com/campushelp/helpdesk-api/internal/repository"
)

// Actor identifies the authenticated caller of a ticket operation.
type Actor struct {
	ID   uint
	Role string
}

// TicketService owns the ticket lifecycle state machine. Status is only ever
// written here; transitions re-read current state through guarded
// compare-and-swap updates so concurrent writers on the same ticket cannot
// both succeed.
type TicketService interface {
	Create(ctx context.Context, requester Actor, req dto.TicketCreateRequest) (dto.TicketResponse, error)
	Get(ctx context.Context, actor Actor, id uint) (dto.TicketResponse, error)
	List(ctx context.Context, actor Actor, query dto.TicketListQuery) ([]dto.TicketResponse, error)
	StartProgress(ctx context.Context, resolver Actor, id uint) (dto.TicketResponse, error)
	Resolve(ctx context.Context, resolver Actor, id uint, req dto.TicketResolveRequest) (dto.TicketResponse, error)
	Acknowledge(ctx context.Context, requester Actor, id uint) (dto.TicketResponse, error)
	Override(ctx context.Context, admin Actor, id uint, status string) (dto.TicketResponse, error)
	Delete(ctx context.Context, admin Actor, id uint) error
}

type ticketService struct {
	db        *gorm.DB
	tickets   repository.TicketRepository
	sequences repository.SequenceRepository
	notifier  NotificationService
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	sanitizer *bluemonday.Policy
	now       func() time.Time
}

// NewTicketService constructs the ticket service. The gorm handle is used to
// run resolve+archive as a single transaction.
func NewTicketService(db *gorm.DB, tickets repository.TicketRepository, sequences repository.SequenceRepository, notifier NotificationService, validate *validator.Validate, logger zerolog.Logger) TicketService {
	return &ticketService{
		db:        db,
		tickets:   tickets,
		sequences: sequences,
		notifier:  notifier,
		validator: validate,
		logger:    logger.With().Str("component", "ticket_service").Logger(),
		tracer:    otel.Tracer("github.com/campushelp/helpdesk-api/internal/service/ticket"),
		sanitizer: bluemonday.StrictPolicy(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *ticketService) Create(ctx context.Context, requester Actor, req dto.TicketCreateRequest) (dto.TicketResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.TicketResponse{}, &ValidationError{Message: err.Error()}
	}

	spanCtx, span := s.tracer.Start(ctx, "tickets.create", trace.WithAttributes(
		attribute.String("ticket.category", req.Category),
	))
	defer span.End()

	urgency := req.Urgency
	if urgency == "" {
		urgency = models.TicketUrgencyMedium
	}

	ticket := models.Ticket{
		Title:         strings.TrimSpace(s.sanitizer.Sanitize(req.Title)),
		Description:   strings.TrimSpace(s.sanitizer.Sanitize(req.Description)),
		Category:      req.Category,
		Urgency:       urgency,
		Status:        models.TicketStatusOpen,
		RequesterID:   requester.ID,
		AttachmentURL: req.AttachmentURL,
	}
	if ticket.Title == "" || ticket.Description == "" {
		return dto.TicketResponse{}, validationf("title and description are required")
	}

	bucket := s.now().Format("0601")

	// The counter makes collisions rare; the unique key index catches the
	// remainder, in which case one retry picks up a fresh number.
	for attempt := 0; attempt < 2; attempt++ {
		seq, err := s.sequences.Next(spanCtx, bucket)
		if err != nil {
			span.RecordError(err)
			return dto.TicketResponse{}, dependency("allocate ticket number", err)
		}
		ticket.Key = fmt.Sprintf("TKT-%s-%03d", bucket, seq)

		err = s.tickets.Create(spanCtx, &ticket)
		if err == nil {
			break
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if attempt == 0 {
				s.logger.Warn().Str("key", ticket.Key).Msg("ticket key collision, retrying with next number")
				continue
			}
			span.RecordError(err)
			return dto.TicketResponse{}, conflictf("ticket number %s already taken, retry the submission", ticket.Key)
		}
		span.RecordError(err)
		return dto.TicketResponse{}, dependency("create ticket", err)
	}

	observability.TicketsCreated().WithLabelValues(ticket.Category, ticket.Urgency).Inc()
	s.logger.Info().Str("key", ticket.Key).Uint("requester_id", requester.ID).Msg("ticket created")

	s.notify(spanCtx, Event{
		Kind:          EventTicketCreated,
		TicketID:      &ticket.ID,
		ActorID:       requester.ID,
		BroadcastRole: models.RoleAdmin,
		Title:         fmt.Sprintf("New ticket %s", ticket.Key),
		Body:          ticket.Title,
		Type:          models.NotificationInfo,
	})

	return dto.NewTicketResponse(ticket), nil
}

func (s *ticketService) Get(ctx context.Context, actor Actor, id uint) (dto.TicketResponse, error) {
	ticket, err := s.load(ctx, id)
	if err != nil {
		return dto.TicketResponse{}, err
	}
	if !s.canView(actor, ticket) {
		return dto.TicketResponse{}, authf("access denied")
	}
	return dto.NewTicketResponse(ticket), nil
}

func (s *ticketService) List(ctx context.Context, actor Actor, query dto.TicketListQuery) ([]dto.TicketResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	filter := repository.TicketFilter{
		Status:   query.Status,
		Category: query.Category,
		Limit:    query.Limit,
		Offset:   query.Offset,
	}
	switch actor.Role {
	case models.RoleAdmin:
		// Unscoped.
	case models.RoleResolver:
		filter.ResolverID = &actor.ID
	default:
		filter.RequesterID = &actor.ID
	}

	tickets, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, dependency("list tickets", err)
	}
	return dto.NewTicketResponseSlice(tickets), nil
}

func (s *ticketService) StartProgress(ctx context.Context, resolver Actor, id uint) (dto.TicketResponse, error) {
	ticket, err := s.load(ctx, id)
	if err != nil {
		return dto.TicketResponse{}, err
	}
	if !ticket.HasResolver(resolver.ID) {
		return dto.TicketResponse{}, authf("access denied")
	}

	now := s.now()
	affected, err := s.tickets.TransitionStatus(ctx, id, []string{models.TicketStatusOpen}, map[string]interface{}{
		"status":     models.TicketStatusInProgress,
		"updated_at": now,
	})
	if err != nil {
		return dto.TicketResponse{}, dependency("start progress", err)
	}
	if affected == 0 {
		return dto.TicketResponse{}, conflictf("ticket %s is no longer open", ticket.Key)
	}

	observability.TicketTransitions().WithLabelValues(models.TicketStatusOpen, models.TicketStatusInProgress).Inc()

	return s.Get(ctx, resolver, id)
}

// Resolve moves the ticket to resolved and archives the conversation between
// the requester and the resolving staff member. The status flip and the
// archival commit or fail together; the requester notification runs after
// commit and is the only non-transactional step.
func (s *ticketService) Resolve(ctx context.Context, resolver Actor, id uint, req dto.TicketResolveRequest) (dto.TicketResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.TicketResponse{}, &ValidationError{Message: err.Error()}
	}
	notes := strings.TrimSpace(s.sanitizer.Sanitize(req.Notes))
	if notes == "" {
		return dto.TicketResponse{}, validationf("resolution notes are required")
	}

	ticket, err := s.load(ctx, id)
	if err != nil {
		return dto.TicketResponse{}, err
	}
	if !ticket.HasResolver(resolver.ID) && resolver.Role != models.RoleAdmin {
		return dto.TicketResponse{}, authf("access denied")
	}

	spanCtx, span := s.tracer.Start(ctx, "tickets.resolve", trace.WithAttributes(
		attribute.String("ticket.key", ticket.Key),
	))
	defer span.End()

	now := s.now()
	room := ConversationID(ticket.RequesterID, resolver.ID)

	err = s.db.WithContext(spanCtx).Transaction(func(tx *gorm.DB) error {
		tickets := repository.NewTicketRepository(tx)
		chats := repository.NewChatRepository(tx)

		affected, err := tickets.TransitionStatus(spanCtx, id,
			[]string{models.TicketStatusOpen, models.TicketStatusInProgress},
			map[string]interface{}{
				"status":              models.TicketStatusResolved,
				"resolution_notes":    notes,
				"resolution_file_url": req.FileURL,
				"resolved_by":         resolver.ID,
				"resolved_at":         now,
				"updated_at":          now,
			})
		if err != nil {
			return err
		}
		if affected == 0 {
			return conflictf("ticket %s cannot be resolved from its current status", ticket.Key)
		}

		archived, err := chats.Archive(spanCtx, room, id, now)
		if err != nil {
			return err
		}
		observability.ChatMessagesArchived().Add(float64(archived))
		return nil
	})
	if err != nil {
		span.RecordError(err)
		if IsConflict(err) {
			return dto.TicketResponse{}, err
		}
		return dto.TicketResponse{}, dependency("resolve ticket", err)
	}

	observability.TicketTransitions().WithLabelValues(ticket.Status, models.TicketStatusResolved).Inc()
	s.logger.Info().Str("key", ticket.Key).Uint("resolver_id", resolver.ID).Msg("ticket resolved")

	s.notify(spanCtx, Event{
		Kind:       EventTicketResolved,
		TicketID:   &id,
		ActorID:    resolver.ID,
		Recipients: []uint{ticket.RequesterID},
		Title:      fmt.Sprintf("Ticket %s resolved", ticket.Key),
		Body:       notes,
		Type:       models.NotificationSuccess,
	})

	return s.Get(ctx, resolver, id)
}

func (s *ticketService) Acknowledge(ctx context.Context, requester Actor, id uint) (dto.TicketResponse, error) {
	ticket, err := s.load(ctx, id)
	if err != nil {
		return dto.TicketResponse{}, err
	}
	if ticket.RequesterID != requester.ID {
		return dto.TicketResponse{}, authf("access denied")
	}

	now := s.now()
	affected, err := s.tickets.TransitionStatus(ctx, id, []string{models.TicketStatusResolved}, map[string]interface{}{
		"status":          models.TicketStatusClosed,
		"acknowledged_at": now,
		"closed_at":       now,
		"updated_at":      now,
	})
	if err != nil {
		return dto.TicketResponse{}, dependency("acknowledge ticket", err)
	}
	if affected == 0 {
		return dto.TicketResponse{}, validationf("ticket %s is not awaiting acknowledgment", ticket.Key)
	}

	observability.TicketTransitions().WithLabelValues(models.TicketStatusResolved, models.TicketStatusClosed).Inc()
	s.logger.Info().Str("key", ticket.Key).Msg("ticket closed")

	s.notify(ctx, Event{
		Kind:       EventTicketAcknowledged,
		TicketID:   &id,
		ActorID:    requester.ID,
		Recipients: ticket.Resolvers,
		Title:      fmt.Sprintf("Ticket %s acknowledged", ticket.Key),
		Body:       "The requester confirmed the resolution.",
		Type:       models.NotificationSuccess,
	})

	return s.Get(ctx, requester, id)
}

// Override is the unguarded administrator escape hatch. It reconciles the
// resolution timestamps so resolved_at stays non-null exactly for resolved
// and closed tickets.
func (s *ticketService) Override(ctx context.Context, admin Actor, id uint, status string) (dto.TicketResponse, error) {
	ticket, err := s.load(ctx, id)
	if err != nil {
		return dto.TicketResponse{}, err
	}

	now := s.now()
	previous := ticket.Status
	ticket.Status = status

	switch status {
	case models.TicketStatusResolved, models.TicketStatusClosed:
		if ticket.ResolvedAt == nil {
			ticket.ResolvedAt = &now
		}
		if status == models.TicketStatusClosed && ticket.ClosedAt == nil {
			ticket.ClosedAt = &now
		}
	default:
		ticket.ResolvedAt = nil
		ticket.AcknowledgedAt = nil
		ticket.ClosedAt = nil
	}

	if err := s.tickets.Update(ctx, &ticket); err != nil {
		return dto.TicketResponse{}, dependency("override ticket status", err)
	}

	observability.TicketTransitions().WithLabelValues(previous, status).Inc()
	s.logger.Warn().
		Str("key", ticket.Key).
		Str("from", previous).
		Str("to", status).
		Uint("admin_id", admin.ID).
		Msg("administrator status override")

	return dto.NewTicketResponse(ticket), nil
}

func (s *ticketService) Delete(ctx context.Context, admin Actor, id uint) error {
	ticket, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.tickets.Delete(ctx, id); err != nil {
		return dependency("delete ticket", err)
	}
	s.logger.Warn().Str("key", ticket.Key).Uint("admin_id", admin.ID).Msg("ticket deleted")
	return nil
}

func (s *ticketService) load(ctx context.Context, id uint) (models.Ticket, error) {
	ticket, err := s.tickets.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Ticket{}, validationf("ticket %d not found", id)
	}
	if err != nil {
		return models.Ticket{}, dependency("load ticket", err)
	}
	return ticket, nil
}

func (s *ticketService) canView(actor Actor, ticket models.Ticket) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleResolver:
		return ticket.HasResolver(actor.ID)
	default:
		return ticket.RequesterID == actor.ID
	}
}

// notify dispatches a best-effort notification; failures are logged, never
// propagated into the ticket operation.
func (s *ticketService) notify(ctx context.Context, event Event) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Dispatch(ctx, event); err != nil {
		s.logger.Error().Err(err).Str("kind", event.Kind).Msg("notification dispatch failed")
	}
}
