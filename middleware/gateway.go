package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"reward-engine/apierr"
	"reward-engine/logger"
)

func bearer(header string) string {
	token := strings.TrimSpace(header)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}

func tokensEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// GatewayAuthMiddleware only admits requests carrying the gateway's bearer token.
// Paths starting with any of open (e.g. /health) are exempt.
func GatewayAuthMiddleware(expectedToken string, log *logger.Logger, open ...string) fiber.Handler {
	log = logger.OrNop(log).With("middleware", "GatewayAuth")
	if expectedToken == "" {
		log.Fatal("❌ SERVICE_TOKEN is not set, cannot authenticate Gateway")
	}
	return func(c *fiber.Ctx) error {
		for _, prefix := range open {
			if strings.HasPrefix(c.Path(), prefix) {
				return c.Next()
			}
		}
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			log.Warn("🚫 Missing Authorization header", "path", c.Path())
			return apierr.AuthRequired("gateway authentication token missing")
		}
		if !tokensEqual(bearer(authHeader), expectedToken) {
			log.Warn("❌ Invalid gateway token", "path", c.Path())
			return apierr.AuthRequired("invalid gateway authentication token")
		}
		return c.Next()
	}
}

// ServiceTokenMiddleware guards service-to-service routes with the X-Service-Token header.
func ServiceTokenMiddleware(expectedToken string, log *logger.Logger) fiber.Handler {
	log = logger.OrNop(log).With("middleware", "ServiceToken")
	return func(c *fiber.Ctx) error {
		token := c.Get("X-Service-Token")
		if token == "" || expectedToken == "" {
			return apierr.AuthRequired("service token missing")
		}
		if !tokensEqual(token, expectedToken) {
			log.Warn("❌ Invalid service token", "path", c.Path())
			return apierr.Forbidden("invalid service token")
		}
		return c.Next()
	}
}
