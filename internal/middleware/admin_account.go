package middleware

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/campushelp/helpdesk-api/internal/models"
	"github.com/campushelp/helpdesk-api/internal/utils"
)

// AccountSource loads accounts for re-validation.
type AccountSource interface {
	FindByID(ctx context.Context, id uint) (models.User, error)
}

// RequireAdminAccount re-validates the stored account on every admin request
// rather than trusting the token's role claim. A demoted or deactivated
// administrator is cut off even while their token is still valid.
func RequireAdminAccount(accounts AccountSource) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := c.Locals("user_id").(uint)
		if !ok || userID == 0 {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}

		user, err := accounts.FindByID(c.UserContext(), userID)
		if err != nil {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		if user.Role != models.RoleAdmin || !user.IsActive() {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}

		return c.Next()
	}
}
