package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"reward-engine/apierr"
	"reward-engine/logger"
)

// Locals keys shared by every auth mode.
const (
	LocalUserID    = "user_id"
	LocalUserRoles = "user_roles"
	LocalRequestID = "request_id"
)

// Role names with elevated access.
const (
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

func setIdentity(c *fiber.Ctx, userID string, roles []string) {
	c.Locals(LocalUserID, userID)
	c.Locals(LocalUserRoles, roles)
}

// UserID returns the authenticated learner, or "" when the request is anonymous.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}

func Roles(c *fiber.Ctx) []string {
	roles, _ := c.Locals(LocalUserRoles).([]string)
	return roles
}

func HasRole(c *fiber.Ctx, roles ...string) bool {
	for _, have := range Roles(c) {
		for _, want := range roles {
			if strings.EqualFold(have, want) {
				return true
			}
		}
	}
	return false
}

func splitRoles(raw string) []string {
	var roles []string
	for _, r := range strings.Split(raw, ",") {
		r = strings.ToLower(strings.TrimSpace(r))
		if r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}

// UserContextMiddleware reads the identity the gateway forwards in X-User-ID / X-User-Roles.
// Anonymous requests pass through; RequireUser rejects them where identity is mandatory.
func UserContextMiddleware(log *logger.Logger) fiber.Handler {
	log = logger.OrNop(log).With("middleware", "UserContext")
	return func(c *fiber.Ctx) error {
		// Header values alias the request buffer; copy what outlives the request.
		userID := utils.CopyString(strings.TrimSpace(c.Get("X-User-ID")))
		roles := splitRoles(utils.CopyString(c.Get("X-User-Roles")))
		setIdentity(c, userID, roles)
		if userID != "" {
			log.Debug("👤 User context", "user_id", userID, "roles", roles, "path", c.Path())
		}
		return c.Next()
	}
}

// RequireUser fails with AuthRequired when no auth mode resolved a learner.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if UserID(c) == "" {
			return apierr.AuthRequired("missing user identity")
		}
		return c.Next()
	}
}
