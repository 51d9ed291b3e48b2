package middleware

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/campushelp/helpdesk-api/internal/utils"
)

// SessionChecker verifies and extends live sessions.
type SessionChecker interface {
	CheckSession(ctx context.Context, jti string) (uint, error)
	TouchSession(ctx context.Context, jti string) error
}

// SessionGuard rejects requests whose session idle deadline has elapsed and
// slides the deadline forward on activity. It must run after JWTProtected,
// which binds the session id.
func SessionGuard(sessions SessionChecker, logger zerolog.Logger) fiber.Handler {
	log := logger.With().Str("component", "session_guard").Logger()

	return func(c *fiber.Ctx) error {
		jti, ok := c.Locals("session_id").(string)
		if !ok || jti == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "session expired")
		}

		ctx := c.UserContext()
		if _, err := sessions.CheckSession(ctx, jti); err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, "session expired")
		}

		if err := sessions.TouchSession(ctx, jti); err != nil {
			log.Warn().Err(err).Msg("failed to extend session deadline")
		}

		return c.Next()
	}
}
