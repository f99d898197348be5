package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// RequireIdentity extracts the opaque caller identity issued by the
// auth layer. Token verification happens upstream; the core only needs
// to know who is calling.
func RequireIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-ID")
		if userID == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing identity token")
		}
		c.Locals("userID", userID)
		return c.Next()
	}
}
