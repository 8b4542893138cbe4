package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"reward-engine/middleware"
	"reward-engine/services"
)

type exclusionRequest struct {
	UserIDs []string `json:"userIds" validate:"required,max=1000,dive,required,max=128"`
	Version *int64   `json:"version" validate:"omitempty,min=0"`
}

func SetupSettingsRoutes(router fiber.Router, engine *services.Engine, v *validator.Validate) {
	settings := router.Group("/settings",
		middleware.OnlyRoles("settings are restricted to teachers", middleware.RoleTeacher, middleware.RoleAdmin))

	settings.Get("/ranking-exclusion", func(c *fiber.Ctx) error {
		list, err := engine.Exclusion.Get(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(list)
	})

	settings.Put("/ranking-exclusion", func(c *fiber.Ctx) error {
		var req exclusionRequest
		if err := bindJSON(c, v, &req); err != nil {
			return err
		}
		list, err := engine.Exclusion.Set(c.UserContext(), req.UserIDs, req.Version, middleware.UserID(c))
		if err != nil {
			return err
		}
		return c.JSON(list)
	})
}
