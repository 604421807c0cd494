// middleware/auth.go
package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const AdminRole = "admin"

// AdminContextMiddleware reads the operator identity the gateway forwards in
// X-User-ID / X-User-Roles and only lets admins through.
func AdminContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-ID")
		if userID == "" {
			log.Printf("❌ [USER_CTX] X-User-ID required but missing on admin route: %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID, request must come through gateway with auth context",
			})
		}

		roles := parseRoles(c.Get("X-User-Roles"))
		if !hasRole(roles, AdminRole) {
			log.Printf("🚫 [USER_CTX] UserID=%s with roles %v denied on %s", userID, roles, c.Path())
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "admin role required",
			})
		}

		c.Locals("user_id", userID)
		c.Locals("user_roles", roles)

		log.Printf("👤 [USER_CTX] UserID=%s, Roles=%v | Path: %s", userID, roles, c.Path())
		return c.Next()
	}
}

func parseRoles(raw string) []string {
	var roles []string
	for _, r := range strings.Split(raw, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, strings.ToLower(r))
		}
	}
	return roles
}

func hasRole(roles []string, want string) bool {
	for _, r := range roles {
		if r == want {
			return true
		}
	}
	return false
}
