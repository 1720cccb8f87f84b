package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"shortreg/internal/auth"
)

const accountIDKey = "account_id"

// Auth resolves a Bearer token to an account identity when one is
// presented. An absent header leaves the request anonymous; a present but
// invalid token is rejected, since a caller who sent credentials expects
// them to count.
func Auth(tokens *auth.TokenSigner) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return c.Next()
		}

		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authorization header must use the Bearer scheme",
			})
		}

		id, err := tokens.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid or expired token",
			})
		}

		c.Locals(accountIDKey, id.AccountID)
		return c.Next()
	}
}

// RequireAuth rejects requests that did not authenticate.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if CallerID(c) == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authentication required",
			})
		}
		return c.Next()
	}
}

// CallerID returns the authenticated account ID, or "" for anonymous
// requests.
func CallerID(c *fiber.Ctx) string {
	if v, ok := c.Locals(accountIDKey).(string); ok {
		return v
	}
	return ""
}
