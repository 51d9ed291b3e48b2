package middleware

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/campushelp/helpdesk-api/internal/models"
	"github.com/campushelp/helpdesk-api/internal/utils"
)

// SettingsSource reads runtime settings.
type SettingsSource interface {
	GetBool(ctx context.Context, key string) (bool, error)
}

// Maintenance returns 503 for non-admin traffic while maintenance mode is
// switched on. Admins stay in so they can switch it back off.
func Maintenance(settings SettingsSource) fiber.Handler {
	return func(c *fiber.Ctx) error {
		enabled, err := settings.GetBool(c.UserContext(), models.SettingMaintenanceMode)
		if err != nil || !enabled {
			return c.Next()
		}

		if role := normalizeRoleValue(c.Locals("user_role")); role == models.RoleAdmin {
			return c.Next()
		}

		return utils.SendError(c, fiber.StatusServiceUnavailable, "the helpdesk is undergoing maintenance")
	}
}
