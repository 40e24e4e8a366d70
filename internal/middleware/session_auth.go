package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/wagate/wagate-backend/internal/storage"
)

// RequireSessionKey validates that the request carries the bearer key set
// at session creation for the session named in the route.
func RequireSessionKey() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := c.Params("id")

		auth := c.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing bearer token",
			})
		}
		key := strings.TrimPrefix(auth, "Bearer ")

		session, err := storage.GetStore().GetSession(sessionID)
		if err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Session not found",
			})
		}

		if subtle.ConstantTimeCompare([]byte(key), []byte(session.APIKey)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid API key",
			})
		}

		return c.Next()
	}
}
