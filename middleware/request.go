package middleware

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"reward-engine/logger"
)

// RequestContext tags each request with an id, bounds it with timeout, and logs the outcome.
func RequestContext(timeout time.Duration, log *logger.Logger) fiber.Handler {
	log = logger.OrNop(log).With("middleware", "Request")
	return func(c *fiber.Ctx) error {
		id := c.Get(fiber.HeaderXRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(fiber.HeaderXRequestID, id)
		c.Locals(LocalRequestID, id)

		start := time.Now()
		if timeout > 0 {
			ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
			defer cancel()
			c.SetUserContext(ctx)
		}

		err := c.Next()
		if err != nil {
			// Render now so the logged status is the one sent.
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		log.Info("[REQ]",
			"request_id", id,
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"duration", time.Since(start),
			"user_id", UserID(c),
		)
		return nil
	}
}
