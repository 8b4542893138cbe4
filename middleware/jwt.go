package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"reward-engine/apierr"
	"reward-engine/logger"
)

// Claims carried by locally verified access tokens.
type Claims struct {
	UserID string   `json:"user_id,omitempty"`
	Role   string   `json:"role,omitempty"`
	Roles  []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) subject() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}

func (c *Claims) roleList() []string {
	roles := make([]string, 0, len(c.Roles)+1)
	for _, r := range c.Roles {
		roles = append(roles, strings.ToLower(r))
	}
	if c.Role != "" {
		roles = append(roles, strings.ToLower(c.Role))
	}
	return roles
}

// ParseToken verifies an HS256 token signed with secret.
func ParseToken(raw, secret string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if claims.subject() == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	return claims, nil
}

// JWTMiddleware resolves the learner from a locally verified bearer token.
// Requests without a token pass through anonymously.
func JWTMiddleware(secret string, log *logger.Logger) fiber.Handler {
	log = logger.OrNop(log).With("middleware", "JWT")
	if secret == "" {
		log.Fatal("❌ JWT_SECRET is not set")
	}
	return func(c *fiber.Ctx) error {
		raw := bearer(c.Get(fiber.HeaderAuthorization))
		if raw == "" {
			setIdentity(c, "", nil)
			return c.Next()
		}
		claims, err := ParseToken(raw, secret)
		if err != nil {
			log.Debug("Token rejected", "path", c.Path(), "error", err)
			return apierr.AuthRequired("invalid or expired access token")
		}
		setIdentity(c, claims.subject(), claims.roleList())
		return c.Next()
	}
}
