package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/campushelp/helpdesk-api/internal/utils"
)

// Auth role constants used by the WithAuth helper. Requester covers the two
// ticket-submitting roles; resolver implicitly admits administrators.
const (
	AuthRoleAny       = "any"
	AuthRoleAdmin     = "admin"
	AuthRoleResolver  = "resolver"
	AuthRoleRequester = "requester"
)

// AuthOptions configures the WithAuth helper. Anonymous access is denied
// unless AllowAnonymous is set, and only the Any role may opt in.
type AuthOptions struct {
	Role           string
	AllowAnonymous bool
}

// WithAuth wraps a handler with basic authentication/authorization guards.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	role := strings.ToLower(strings.TrimSpace(opts.Role))
	if role == "" {
		role = AuthRoleAny
	}

	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id")
		if userID == nil {
			if role == AuthRoleAny && opts.AllowAnonymous {
				return handler(c)
			}
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}

		if role == AuthRoleAny {
			return handler(c)
		}

		currentRole := normalizeRoleValue(c.Locals("user_role"))
		switch role {
		case AuthRoleRequester:
			if currentRole != "student" && currentRole != "faculty" {
				return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
			}
		case AuthRoleResolver:
			if currentRole != "resolver" && currentRole != "admin" {
				return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
			}
		case AuthRoleAdmin:
			if currentRole != "admin" {
				return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
			}
		default:
			if currentRole != role {
				return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
			}
		}

		return handler(c)
	}
}
