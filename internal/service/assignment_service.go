package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/campushelp/helpdesk-api/internal/dto"
	"github.com/campushelp/helpdesk-api/internal/models"
	"github.com/campushelp/helpdesk-api/internal/observability"
	"github.com/campushelp/helpdesk-api/internal/repository"
)

// DepartmentForCategory maps a ticket category to the resolver department
// label responsible for it.
func DepartmentForCategory(category string) string {
	return "ICT - " + category
}

// AssignmentService routes an unassigned ticket to its resolver group: every
// active resolver whose department matches the ticket category. Assignment
// is a shared-queue model, not single ownership.
type AssignmentService interface {
	Assign(ctx context.Context, admin Actor, ticketID uint) (dto.AssignmentResponse, error)
}

type assignmentService struct {
	tickets  repository.TicketRepository
	users    repository.UserRepository
	notifier NotificationService
	logger   zerolog.Logger
}

// NewAssignmentService constructs the assignment router.
func NewAssignmentService(tickets repository.TicketRepository, users repository.UserRepository, notifier NotificationService, logger zerolog.Logger) AssignmentService {
	return &assignmentService{
		tickets:  tickets,
		users:    users,
		notifier: notifier,
		logger:   logger.With().Str("component", "assignment_service").Logger(),
	}
}

func (s *assignmentService) Assign(ctx context.Context, admin Actor, ticketID uint) (dto.AssignmentResponse, error) {
	ticket, err := s.tickets.FindByID(ctx, ticketID)
	if err != nil {
		return dto.AssignmentResponse{}, dependency("load ticket", err)
	}
	if ticket.Assigned() {
		return dto.AssignmentResponse{}, conflictf("ticket %s is already assigned", ticket.Key)
	}

	department := DepartmentForCategory(ticket.Category)
	resolvers, err := s.users.ListActiveByDepartment(ctx, models.RoleResolver, department)
	if err != nil {
		return dto.AssignmentResponse{}, dependency("list resolvers", err)
	}

	if len(resolvers) == 0 {
		// Reported, not fatal: the ticket stays unassigned until a resolver
		// for the department exists.
		s.logger.Warn().Str("key", ticket.Key).Str("department", department).Msg("no active resolver for department")
		observability.AssignmentsTotal().WithLabelValues("unmatched").Inc()
		return dto.AssignmentResponse{Ticket: dto.NewTicketResponse(ticket), Assigned: false}, nil
	}

	group := make([]uint, 0, len(resolvers))
	for _, resolver := range resolvers {
		group = append(group, resolver.ID)
	}
	ticket.Resolvers = datatypes.NewJSONSlice(group)

	if err := s.tickets.Update(ctx, &ticket); err != nil {
		return dto.AssignmentResponse{}, dependency("attach resolver group", err)
	}

	observability.AssignmentsTotal().WithLabelValues("assigned").Inc()
	s.logger.Info().Str("key", ticket.Key).Str("department", department).Ints("group", toInts(group)).Msg("ticket assigned")

	if s.notifier != nil {
		if _, err := s.notifier.Dispatch(ctx, Event{
			Kind:       EventTicketAssigned,
			TicketID:   &ticket.ID,
			ActorID:    admin.ID,
			Recipients: group,
			Title:      fmt.Sprintf("Ticket %s assigned to %s", ticket.Key, department),
			Body:       ticket.Title,
			Type:       models.NotificationInfo,
		}); err != nil {
			s.logger.Error().Err(err).Str("key", ticket.Key).Msg("assignment notification failed")
		}
	}

	return dto.AssignmentResponse{Ticket: dto.NewTicketResponse(ticket), Assigned: true, Group: group}, nil
}

func toInts(ids []uint) []int {
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out
}
