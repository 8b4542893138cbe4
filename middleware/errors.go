package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"reward-engine/apierr"
	"reward-engine/logger"
)

// ErrorHandler renders every error as {"error", "code", "fields"} with the taxonomy's status.
func ErrorHandler(log *logger.Logger) fiber.ErrorHandler {
	log = logger.OrNop(log).With("component", "ErrorHandler")
	return func(c *fiber.Ctx, err error) error {
		if ae, ok := apierr.As(err); ok {
			if ae.Status >= fiber.StatusInternalServerError {
				log.Error("Request failed", "path", c.Path(), "code", ae.Code, "error", err)
			}
			body := fiber.Map{"error": ae.Message, "code": ae.Code}
			if len(ae.Fields) > 0 {
				body["fields"] = ae.Fields
			}
			return c.Status(ae.Status).JSON(body)
		}

		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message, "code": fiberCode(fe.Code)})
		}

		log.Error("Unhandled error", "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
			"code":  apierr.CodeStoreFailure,
		})
	}
}

func fiberCode(status int) string {
	switch status {
	case fiber.StatusUnauthorized:
		return apierr.CodeAuthRequired
	case fiber.StatusForbidden:
		return apierr.CodeForbidden
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
		return apierr.CodeValidation
	case fiber.StatusNotFound, fiber.StatusMethodNotAllowed:
		return apierr.CodeNotFound
	case fiber.StatusConflict:
		return apierr.CodeConflict
	}
	return "HTTP_ERROR"
}
