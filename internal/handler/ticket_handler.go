package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/campushelp/helpdesk-api/internal/dto"
	"github.com/campushelp/helpdesk-api/internal/middleware"
	"github.com/campushelp/helpdesk-api/internal/service"
	"github.com/campushelp/helpdesk-api/internal/utils"
)

// TicketHandler exposes the ticket lifecycle endpoints.
type TicketHandler struct {
	tickets     service.TicketService
	assignments service.AssignmentService
	logger      zerolog.Logger
}

// NewTicketHandler constructs a handler instance.
func NewTicketHandler(tickets service.TicketService, assignments service.AssignmentService, logger zerolog.Logger) *TicketHandler {
	return &TicketHandler{
		tickets:     tickets,
		assignments: assignments,
		logger:      logger.With().Str("component", "ticket_handler").Logger(),
	}
}

// Register binds the ticket routes.
func (h *TicketHandler) Register(router fiber.Router) {
	router.Post("/", middleware.WithAuth(h.create, middleware.AuthOptions{Role: middleware.AuthRoleRequester}))
	router.Get("/", h.list)
	router.Get("/:id", h.get)
	router.Post("/:id/assign", middleware.WithAuth(h.assign, middleware.AuthOptions{Role: middleware.AuthRoleAdmin}))
	router.Post("/:id/start", middleware.WithAuth(h.start, middleware.AuthOptions{Role: middleware.AuthRoleResolver}))
	router.Post("/:id/resolve", middleware.WithAuth(h.resolve, middleware.AuthOptions{Role: middleware.AuthRoleResolver}))
	router.Post("/:id/acknowledge", middleware.WithAuth(h.acknowledge, middleware.AuthOptions{Role: middleware.AuthRoleRequester}))
	router.Patch("/:id/status", middleware.WithAuth(h.override, middleware.AuthOptions{Role: middleware.AuthRoleAdmin}))
	router.Delete("/:id", middleware.WithAuth(h.delete, middleware.AuthOptions{Role: middleware.AuthRoleAdmin}))
}

func (h *TicketHandler) create(c *fiber.Ctx) error {
	var payload dto.TicketCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	ticket, err := h.tickets.Create(withRequestContext(c), actorFromContext(c), payload)
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "ticket created", ticket)
}

func (h *TicketHandler) list(c *fiber.Ctx) error {
	var query dto.TicketListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query")
	}

	tickets, err := h.tickets.List(withRequestContext(c), actorFromContext(c), query)
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "tickets", tickets)
}

func (h *TicketHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid ticket id")
	}

	ticket, err := h.tickets.Get(withRequestContext(c), actorFromContext(c), id)
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "ticket", ticket)
}

func (h *TicketHandler) assign(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid ticket id")
	}

	result, err := h.assignments.Assign(withRequestContext(c), actorFromContext(c), id)
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	message := "ticket assigned"
	if !result.Assigned {
		message = "no matching resolver group"
	}
	return utils.SendSuccess(c, message, result)
}

func (h *TicketHandler) start(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid ticket id")
	}

	ticket, err := h.tickets.StartProgress(withRequestContext(c), actorFromContext(c), id)
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "ticket in progress", ticket)
}

func (h *TicketHandler) resolve(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid ticket id")
	}

	var payload dto.TicketResolveRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	ticket, err := h.tickets.Resolve(withRequestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "ticket resolved", ticket)
}

func (h *TicketHandler) acknowledge(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid ticket id")
	}

	ticket, err := h.tickets.Acknowledge(withRequestContext(c), actorFromContext(c), id)
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "ticket closed", ticket)
}

func (h *TicketHandler) override(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid ticket id")
	}

	var payload dto.TicketOverrideRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	ticket, err := h.tickets.Override(withRequestContext(c), actorFromContext(c), id, payload.Status)
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "ticket status overridden", ticket)
}

func (h *TicketHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid ticket id")
	}

	if err := h.tickets.Delete(withRequestContext(c), actorFromContext(c), id); err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "ticket deleted", nil)
}
