package middleware

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"

	"reward-engine/apierr"
	"reward-engine/logger"
)

// AuthServiceClient validates learner access tokens against the external auth service.
type AuthServiceClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

type ValidateResponse struct {
	UserID   string   `json:"user_id"`
	DeviceID string   `json:"device_id"`
	Roles    []string `json:"roles"`
}

func NewAuthServiceClient(baseURL, token string) *AuthServiceClient {
	return &AuthServiceClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// ValidateToken calls POST /auth/validate on the auth service.
func (c *AuthServiceClient) ValidateToken(ctx context.Context, accessToken, deviceID string) (*ValidateResponse, error) {
	url := c.BaseURL + "/auth/validate"

	jsonData, err := sonic.Marshal(map[string]interface{}{
		"access_token": accessToken,
		"device_id":    deviceID,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth validation failed: %d", resp.StatusCode)
	}

	var out ValidateResponse
	if err := sonic.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if out.UserID == "" {
		return nil, fmt.Errorf("auth validation returned no user")
	}
	return &out, nil
}

// AuthServiceMiddleware resolves the learner from "Authorization: Bearer <token>" and X-Device-ID.
// Requests without a token pass through anonymously.
func AuthServiceMiddleware(client *AuthServiceClient, log *logger.Logger) fiber.Handler {
	log = logger.OrNop(log).With("middleware", "AuthService")
	return func(c *fiber.Ctx) error {
		accessToken := bearer(c.Get(fiber.HeaderAuthorization))
		if accessToken == "" {
			setIdentity(c, "", nil)
			return c.Next()
		}
		deviceID := strings.TrimSpace(c.Get("X-Device-ID"))

		resp, err := client.ValidateToken(c.UserContext(), accessToken, deviceID)
		if err != nil {
			log.Warn("❌ Token validation failed", "path", c.Path(), "error", err)
			return apierr.AuthRequired("invalid or expired access token")
		}

		roles := make([]string, 0, len(resp.Roles))
		for _, r := range resp.Roles {
			roles = append(roles, strings.ToLower(strings.TrimSpace(r)))
		}
		setIdentity(c, resp.UserID, roles)
		return c.Next()
	}
}
