package server

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// newAuthMiddleware validates the Authorization header on admin routes.
// With no key configured the admin API is disabled outright rather than
// left open.
func newAuthMiddleware(apiKey string, logger zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if apiKey == "" {
			return fiber.NewError(fiber.StatusForbidden, "admin API is not enabled")
		}

		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Authorization header is required")
		}
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "Authorization header must use Bearer scheme")
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			logger.Warn().Str("ip", c.IP()).Str("path", c.Path()).Msg("admin auth rejected")
			return fiber.NewError(fiber.StatusUnauthorized, "invalid API key")
		}
		return c.Next()
	}
}
