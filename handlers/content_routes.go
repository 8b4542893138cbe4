package handlers

import (
	"cloud.google.com/go/civil"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"reward-engine/apierr"
	"reward-engine/calendar"
	"reward-engine/services"
)

type dailyQuery struct {
	Date string `query:"date" json:"date" validate:"omitempty,max=10"`
	Kind string `query:"kind" json:"kind" validate:"omitempty,max=64"`
}

func SetupContentRoutes(router fiber.Router, engine *services.Engine, v *validator.Validate) {
	router.Get("/content/daily", func(c *fiber.Ctx) error {
		var q dailyQuery
		if err := c.QueryParser(&q); err != nil {
			return apierr.Validation("malformed query", nil)
		}
		if err := v.Struct(q); err != nil {
			return validationError(err)
		}

		var date civil.Date
		if q.Date != "" {
			d, err := calendar.ParseDate(q.Date)
			if err != nil {
				return apierr.Field("date", "must be YYYY-MM-DD")
			}
			date = d
		}

		sel, err := engine.Daily.ForDate(c.UserContext(), date, q.Kind)
		if err != nil {
			return err
		}
		return c.JSON(sel)
	})
}
