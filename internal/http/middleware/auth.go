package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// UserIDLocalKey is the key used to store the authenticated user ID in Fiber's
// context locals.
const UserIDLocalKey = "user_id"

// Auth verifies the bearer token on every request and stores the token
// subject as the caller's user ID. Tokens are issued elsewhere; this
// middleware only verifies HS256 signatures against the shared secret.
//
// Behavior:
// - Reads the Authorization header and strips the "Bearer " prefix.
// - Rejects missing, malformed, expired, or badly signed tokens with 401.
// - Stores the subject claim in context locals under UserIDLocalKey.
func Auth(secret string) fiber.Handler {
	key := []byte(secret)

	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		token := strings.TrimPrefix(header, "Bearer ")
		if header == "" || token == header {
			return unauthorized(c, "missing bearer token")
		}

		parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
			return key, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !parsed.Valid {
			return unauthorized(c, "invalid token")
		}

		sub, err := parsed.Claims.GetSubject()
		if err != nil || sub == "" {
			return unauthorized(c, "token has no subject")
		}

		c.Locals(UserIDLocalKey, sub)
		return c.Next()
	}
}

// UserID returns the authenticated user ID stored by Auth, or "" when the
// request never passed through it.
func UserID(c *fiber.Ctx) string {
	if v, ok := c.Locals(UserIDLocalKey).(string); ok {
		return v
	}
	return ""
}

// unauthorized writes the standard error envelope directly; the middleware
// cannot import the handler package without a cycle.
func unauthorized(c *fiber.Ctx, message string) error {
	rid, _ := c.Locals(RequestIDLocalKey).(string)
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"request_id": rid,
		"error": fiber.Map{
			"code":    "UNAUTHORIZED",
			"message": message,
		},
	})
}
