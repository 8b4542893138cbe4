package middleware

import (
	"github.com/gofiber/fiber/v2"

	"reward-engine/apierr"
)

// RoleMiddlewareWithCustomError admits callers holding any of allowedRoles.
func RoleMiddlewareWithCustomError(allowedRoles []string, customForbiddenMessage string) fiber.Handler {
	if customForbiddenMessage == "" {
		customForbiddenMessage = "you are not authorized to access this resource"
	}
	return func(c *fiber.Ctx) error {
		if UserID(c) == "" {
			return apierr.AuthRequired("missing user identity")
		}
		if !HasRole(c, allowedRoles...) {
			return apierr.Forbidden(customForbiddenMessage)
		}
		return c.Next()
	}
}

func OnlyRoles(customMessage string, roles ...string) fiber.Handler {
	return RoleMiddlewareWithCustomError(roles, customMessage)
}
