package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"reward-engine/middleware"
	"reward-engine/services"
)

type redeemRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

func SetupReferralRoutes(router fiber.Router, engine *services.Engine, v *validator.Validate) {
	referral := router.Group("/referral")

	// Reachable before sign-up completes, so no user context is required.
	referral.Get("/validate", func(c *fiber.Ctx) error {
		res, err := engine.Referrals.Validate(c.UserContext(), c.Query("code"))
		if err != nil {
			return err
		}
		return c.JSON(res)
	})

	referral.Get("/", middleware.RequireUser(), func(c *fiber.Ctx) error {
		summary, err := engine.Referrals.Summary(c.UserContext(), middleware.UserID(c), c.Get("X-User-Name"))
		if err != nil {
			return err
		}
		if summary.IsExcluded {
			return c.JSON(fiber.Map{"isExcluded": true})
		}
		return c.JSON(summary)
	})

	referral.Post("/redeem", middleware.RequireUser(), func(c *fiber.Ctx) error {
		var req redeemRequest
		if err := bindJSON(c, v, &req); err != nil {
			return err
		}
		res, err := engine.Referrals.Register(c.UserContext(), middleware.UserID(c), req.Code)
		if err != nil {
			return err
		}
		return c.JSON(res)
	})
}
