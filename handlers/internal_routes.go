package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"reward-engine/logger"
	"reward-engine/middleware"
	"reward-engine/services"
)

type completeReferralRequest struct {
	UserID string `json:"user_id" validate:"required,max=128"`
}

// SetupInternalRoutes serves signals from other services, authenticated by X-Service-Token.
func SetupInternalRoutes(router fiber.Router, engine *services.Engine, serviceToken string, v *validator.Validate, log *logger.Logger) {
	internal := router.Group("/internal", middleware.ServiceTokenMiddleware(serviceToken, log))

	internal.Post("/referrals/complete", func(c *fiber.Ctx) error {
		var req completeReferralRequest
		if err := bindJSON(c, v, &req); err != nil {
			return err
		}
		completed, err := engine.CompleteReferral(c.UserContext(), req.UserID)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"completed": completed})
	})
}
