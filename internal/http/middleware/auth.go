package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const userIDKey = "user_id"

// Auth resolves the acting user from the bearer token. Signature validation
// happens at the identity gateway in front of this service; here the token is
// only read for its subject claim. Requests without a token proceed
// anonymously.
func Auth() fiber.Handler {
	parser := jwt.NewParser()
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return c.Next()
		}

		raw := strings.TrimPrefix(header, "Bearer ")
		if raw == header {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authorization header must carry a bearer token",
			})
		}

		token, _, err := parser.ParseUnverified(raw, jwt.MapClaims{})
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "malformed token",
			})
		}

		subject, err := token.Claims.GetSubject()
		if err != nil || subject == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "token carries no subject",
			})
		}

		userID, err := uuid.Parse(subject)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "token subject is not a valid user id",
			})
		}

		c.Locals(userIDKey, userID)
		return c.Next()
	}
}

// RequireUser rejects requests that did not authenticate.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := UserID(c); !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authentication required",
			})
		}
		return c.Next()
	}
}

// UserID returns the authenticated user's id, when present.
func UserID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, ok := c.Locals(userIDKey).(uuid.UUID)
	return id, ok
}
