package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"reward-engine/middleware"
	"reward-engine/models"
	"reward-engine/services"
)

type creditRequest struct {
	Source   string                 `json:"source" validate:"required,oneof=chapter_clear listening_daily login_bonus temporary_quest"`
	Metadata map[string]interface{} `json:"metadata"`
}

func SetupRewardRoutes(router fiber.Router, engine *services.Engine, v *validator.Validate) {
	rewards := router.Group("/rewards", middleware.RequireUser())

	rewards.Post("/credit", func(c *fiber.Ctx) error {
		var req creditRequest
		if err := bindJSON(c, v, &req); err != nil {
			return err
		}
		out, err := engine.CreditAction(c.UserContext(), middleware.UserID(c), models.RewardSource(req.Source), req.Metadata)
		if err != nil {
			return err
		}
		return c.JSON(out)
	})

	rewards.Get("/streak", func(c *fiber.Ctx) error {
		view, err := engine.Streaks.Current(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return err
		}
		return c.JSON(view)
	})

	rewards.Get("/points", func(c *fiber.Ctx) error {
		standing, err := engine.Ranking.Standing(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return err
		}
		return c.JSON(standing)
	})

	rewards.Get("/badges", func(c *fiber.Ctx) error {
		progress, err := engine.Badges.Progress(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return err
		}
		return c.JSON(progress)
	})

	rewards.Get("/ranking",
		middleware.OnlyRoles("ranking is restricted to teachers", middleware.RoleTeacher, middleware.RoleAdmin),
		func(c *fiber.Ctx) error {
			period, err := services.ParsePeriod(c.Query("period"))
			if err != nil {
				return err
			}
			board, err := engine.Ranking.Ranking(c.UserContext(), period)
			if err != nil {
				return err
			}
			return c.JSON(board)
		})
}
