package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/minhhoang-dev/estate_crm_be/internal/utils"
)

func RequireRoles(allowed ...string) fiber.Handler {
	allowedSet := map[string]bool{}
	for _, r := range allowed {
		allowedSet[strings.ToLower(r)] = true
	}

	return func(c *fiber.Ctx) error {
		raw := c.Locals("user")
		if raw == nil {
			return fiber.ErrUnauthorized
		}

		token, ok := raw.(*jwt.Token)
		if !ok || token == nil {
			return fiber.ErrUnauthorized
		}

		claims, ok := token.Claims.(*utils.Claims)
		if !ok {
			return fiber.ErrUnauthorized
		}

		role := strings.ToLower(strings.TrimSpace(claims.Role))
		if !allowedSet[role] {
			return fiber.NewError(fiber.StatusForbidden, "forbidden: insufficient role")
		}

		return c.Next()
	}
}

// capabilities maps an action to the roles allowed to perform it. Handlers
// consult this instead of re-deriving role comparisons inline.
var capabilities = map[string][]string{
	"booking.delete":   {"admin", "manager"},
	"booking.approve":  {"admin", "manager"},
	"property.correct": {"admin"},
	"report.view":      {"admin", "manager"},
	"activity.view":    {"admin"},
}

// Can reports whether a role may perform the named action.
func Can(role, action string) bool {
	for _, r := range capabilities[action] {
		if r == strings.ToLower(role) {
			return true
		}
	}
	return false
}

// RequireCapability gates a route on the capability table.
func RequireCapability(action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals("role").(string)
		if !Can(role, action) {
			return fiber.NewError(fiber.StatusForbidden, "forbidden: insufficient role")
		}
		return c.Next()
	}
}
