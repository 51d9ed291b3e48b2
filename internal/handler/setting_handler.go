package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/campushelp/helpdesk-api/internal/dto"
	"github.com/campushelp/helpdesk-api/internal/service"
	"github.com/campushelp/helpdesk-api/internal/utils"
)

// SettingHandler exposes the runtime policy endpoints.
type SettingHandler struct {
	service service.SettingService
	logger  zerolog.Logger
}

// NewSettingHandler constructs a handler instance.
func NewSettingHandler(service service.SettingService, logger zerolog.Logger) *SettingHandler {
	return &SettingHandler{
		service: service,
		logger:  logger.With().Str("component", "setting_handler").Logger(),
	}
}

// Register binds the setting routes.
func (h *SettingHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
	router.Put("/:key", h.update)
}

func (h *SettingHandler) list(c *fiber.Ctx) error {
	settings, err := h.service.List(withRequestContext(c))
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "settings", settings)
}

func (h *SettingHandler) update(c *fiber.Ctx) error {
	key := strings.TrimSpace(c.Params("key"))
	if key == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "setting key required")
	}

	var payload dto.SettingUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	setting, err := h.service.Update(withRequestContext(c), key, payload.Value)
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "setting updated", setting)
}
